package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/syncengine/infrastructure/metrics"
	"github.com/R3E-Network/syncengine/internal/syncacl"
	"github.com/R3E-Network/syncengine/internal/syncdag"
	"github.com/R3E-Network/syncengine/internal/syncdest"
	"github.com/R3E-Network/syncengine/internal/syncerr"
	"github.com/R3E-Network/syncengine/internal/syncjob"
	"github.com/R3E-Network/syncengine/internal/syncorch"
	"github.com/R3E-Network/syncengine/internal/syncprogress"
	"github.com/R3E-Network/syncengine/internal/syncsource"
)

// RunSync builds the connectors, DAG, and orchestrator a definition
// describes, drives one job through the lifecycle state machine, and
// returns the run's final stats. Destination connectors opened along the
// way are always closed before returning, success or failure.
func RunSync(ctx context.Context, d *deps, def *syncDefinition) (*syncorch.JobStats, error) {
	src, err := d.registry.BuildSource(ctx, def.Source.ShortName, syncsource.Config{
		OrganizationID: def.OrganizationID,
		SyncID:         def.SyncID,
		Credentials:    def.Source.Credentials,
		Settings:       def.Source.Settings,
	})
	if err != nil {
		return nil, syncerr.Validation("source", err.Error())
	}
	if err := src.Validate(ctx); err != nil {
		return nil, err
	}

	if aclSrc, ok := src.(syncsource.ACLSource); ok {
		if err := reconcileACL(ctx, d, def, aclSrc); err != nil {
			return nil, err
		}
	}

	destinations := make(map[string]syncdest.Destination, len(def.Destinations))
	defer func() {
		for _, dest := range destinations {
			dest.Close(ctx)
		}
	}()

	// sync_destination is the authoritative many-to-many join (spec.md §9
	// open question 2); the definition file is how a sync's intended
	// destination list gets there in the absence of a separate "define
	// sync" command, so each run seeds it before reading it back.
	seedDestinations := make([]syncjob.Destination, 0, len(def.Destinations))
	for _, dd := range def.Destinations {
		seedDestinations = append(seedDestinations, syncjob.Destination{
			SyncID:        def.SyncID,
			DestinationID: dd.ShortName,
			Config:        dd.Config,
		})
	}
	if err := d.jobStore.ReplaceDestinations(ctx, def.SyncID, seedDestinations); err != nil {
		return nil, err
	}

	attached, err := d.jobStore.ListDestinations(ctx, def.SyncID)
	if err != nil {
		return nil, err
	}

	for _, dd := range attached {
		dest, err := d.registry.BuildDestination(ctx, dd.DestinationID, dd.Config)
		if err != nil {
			return nil, syncerr.Validation("destination", err.Error())
		}
		if err := dest.SetupCollection(ctx, def.SyncID); err != nil {
			return nil, err
		}
		destinations[dd.DestinationID] = dest
	}

	dag, err := buildDAG(def)
	if err != nil {
		return nil, syncerr.Validation("dag", err.Error())
	}
	router := syncdag.NewRouter(dag)

	producerNodeID := ""
	for _, n := range def.DAG.Nodes {
		if n.Kind == "source" {
			producerNodeID = n.ID
			break
		}
	}
	if producerNodeID == "" {
		return nil, syncerr.Validation("dag", fmt.Sprintf("sync %s: dag has no source node", def.SyncID))
	}

	job := &syncjob.SyncJob{
		ID:             uuid.NewString(),
		OrganizationID: def.OrganizationID,
		SyncID:         def.SyncID,
	}
	if err := d.jobStore.Create(ctx, job); err != nil {
		return nil, err
	}

	lifecycle := &syncjob.Lifecycle{Store: d.jobStore}
	if err := lifecycle.Start(ctx, job.ID); err != nil {
		return nil, err
	}

	m := metrics.Global()
	orch := &syncorch.Orchestrator{
		MaxWorkers:   d.cfg.Orchestrator.MaxWorkers,
		StreamBuffer: d.cfg.Orchestrator.StreamBuffer,
		Router:       router,
		State:        d.state,
		Destinations: destinations,
		Relations:    def.relationDescriptors(),
		Progress:     syncprogress.NewBus(),
		Metrics:      m,
		Log:          d.log.Logger,
	}

	gaugeCtx, stopGauge := context.WithCancel(ctx)
	defer stopGauge()
	go (&syncorch.ResourceGauge{Log: d.log.Logger, Metrics: m}).Run(gaugeCtx)

	stats, runErr := orch.RunJob(ctx, syncorch.JobRequest{
		OrganizationID: def.OrganizationID,
		SyncID:         def.SyncID,
		SyncJobID:      job.ID,
		ProducerNodeID: producerNodeID,
		FullSync:       def.FullSync,
		Entities:       src.GenerateEntities,
	})

	if runErr != nil {
		if failErr := lifecycle.Fail(ctx, job.ID, runErr, stats.Inserted, stats.Updated, stats.Kept, stats.Skipped, stats.Failed); failErr != nil {
			d.log.WithField("job_id", job.ID).WithError(failErr).Error("failed to record job failure")
		}
		return stats, runErr
	}

	if err := lifecycle.Complete(ctx, job.ID, stats.Inserted, stats.Updated, stats.Kept, stats.Skipped, stats.Failed, nil); err != nil {
		return stats, err
	}

	return stats, nil
}

// reconcileACL pulls one page of directory-sync ACL changes from src and
// applies them to access_control_membership, using the sync's own ID as the
// source_connection_id: this tree has no separate "source connection"
// concept distinct from a sync. The new cursor the source hands back is
// logged, not persisted anywhere; operators carry it forward by copying it
// into source.acl_cursor in the next definition file (no dedicated cursor
// table exists for ACL feeds, unlike entity sync's cursor_data column).
func reconcileACL(ctx context.Context, d *deps, def *syncDefinition, aclSrc syncsource.ACLSource) error {
	result, err := aclSrc.GetACLChanges(ctx, def.Source.ACLCursor)
	if err != nil {
		return syncerr.Validation("acl", err.Error())
	}

	pipeline := &syncacl.Pipeline{Store: syncacl.NewSqlxMembershipStore(sqlx.NewDb(d.db, "postgres"))}
	if err := pipeline.Reconcile(ctx, def.SyncID, def.OrganizationID, def.Source.ShortName, result); err != nil {
		return err
	}

	d.log.WithField("sync_id", def.SyncID).
		WithField("acl_cursor", result.Cookie).
		WithField("acl_changes", len(result.Changes)).
		Info("acl membership reconciled")
	return nil
}
