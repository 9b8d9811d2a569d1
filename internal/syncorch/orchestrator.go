// Package syncorch is the per-job pipeline (SPEC_FULL §4.5): it drains a
// source stream under a bounded worker pool, decides INSERT/UPDATE/KEEP
// against the entity state store, routes each changed entity through the
// sync's transformer DAG, fans the result out to every destination it
// reaches, and reports progress as it goes.
package syncorch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/syncengine/infrastructure/metrics"
	"github.com/R3E-Network/syncengine/internal/syncdag"
	"github.com/R3E-Network/syncengine/internal/syncdest"
	"github.com/R3E-Network/syncengine/internal/syncentity"
	"github.com/R3E-Network/syncengine/internal/syncerr"
	"github.com/R3E-Network/syncengine/internal/syncprogress"
	"github.com/R3E-Network/syncengine/internal/syncstate"
	"github.com/R3E-Network/syncengine/internal/syncstream"
)

// Action is the per-entity decision the orchestrator makes before routing.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionKeep   Action = "keep"
)

// JobRequest describes one sync run for RunJob.
type JobRequest struct {
	OrganizationID string
	SyncID         string
	SyncJobID      string
	// ProducerNodeID is the DAG source node entities are routed from.
	ProducerNodeID string
	// FullSync, when true, reconciles the entity state table at the end of
	// the run: any previously-seen entity_id not observed this run is
	// deleted from every configured destination (spec.md §4.5 step 6).
	FullSync bool
	Entities func(ctx context.Context, emit func(syncentity.Entity) error) error
}

// JobStats accounts the outcome of a completed run.
type JobStats struct {
	Inserted int64
	Updated  int64
	Kept     int64
	Skipped  int64
	Failed   int64
	Deleted  int64
}

// Orchestrator wires the pipeline's collaborators. One Orchestrator serves
// many jobs; nothing here is job-scoped state.
type Orchestrator struct {
	MaxWorkers   int
	StreamBuffer int

	Router       *syncdag.Router
	State        syncstate.Store
	Destinations map[string]syncdest.Destination
	Relations    []syncdag.RelationDescriptor
	Progress     *syncprogress.Bus
	Metrics      *metrics.Metrics

	Log *logrus.Logger
}

// entityType reads the connector-declared entity type off an entity for DAG
// type gating. Deletion entities carry no type of their own and route on
// their Kind.
func entityType(e syncentity.Entity) string {
	switch v := e.(type) {
	case *syncentity.ChunkEntity:
		return v.EntityType
	case *syncentity.FileEntity:
		return v.EntityType
	default:
		return string(e.Kind())
	}
}

// RunJob drains req.Entities under MaxWorkers bounded concurrency and
// returns the accounting for the run. A per-entity failure, including a
// failed state-store read or write for that entity, is counted and logged
// but never aborts the job; only a source stream failure, or a state-store
// failure during end-of-run deletion reconciliation, is returned as an
// error.
func (o *Orchestrator) RunJob(ctx context.Context, req JobRequest) (*JobStats, error) {
	stream := syncstream.Open(ctx, o.streamBuffer(), req.Entities)
	defer stream.Close()

	stats := &JobStats{}
	seen := newEntitySet()

	sem := make(chan struct{}, o.maxWorkers())
	var wg sync.WaitGroup
	var inFlight int64

	for e := range stream.Items() {
		seen.add(e.Identity().EntityID)

		sem <- struct{}{}
		wg.Add(1)
		n := atomic.AddInt64(&inFlight, 1)
		o.setWorkerGauge(n)
		go func(e syncentity.Entity) {
			defer wg.Done()
			defer func() {
				<-sem
				o.setWorkerGauge(atomic.AddInt64(&inFlight, -1))
			}()
			o.processEntity(ctx, req, stats, e)
		}(e)
	}
	wg.Wait()

	if err := stream.Err(); err != nil {
		return stats, syncerr.TransientIO("source_stream", err)
	}

	if req.FullSync {
		deleted, err := o.reconcileDeletions(ctx, req, seen)
		if err != nil {
			return stats, err
		}
		stats.Deleted = deleted
	}

	return stats, nil
}

func (o *Orchestrator) maxWorkers() int {
	if o.MaxWorkers <= 0 {
		return 16
	}
	return o.MaxWorkers
}

func (o *Orchestrator) streamBuffer() int {
	if o.StreamBuffer <= 0 {
		return 256
	}
	return o.StreamBuffer
}

func (o *Orchestrator) setWorkerGauge(inFlight int64) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.SetWorkerPool(o.maxWorkers(), int(inFlight))
}

func (o *Orchestrator) processEntity(ctx context.Context, req JobRequest, stats *JobStats, e syncentity.Entity) {
	start := time.Now()
	id := e.Identity()

	hash, err := e.ContentHash()
	if err != nil {
		o.fail(req, stats, id.EntityID, syncerr.EntityProcessing(id.EntityID, err))
		return
	}

	action := ActionInsert
	prev, err := o.State.GetByEntityAndSync(ctx, req.SyncID, id.EntityID)
	switch {
	case errors.Is(err, syncstate.ErrNotFound):
		action = ActionInsert
	case err != nil:
		o.fail(req, stats, id.EntityID, syncerr.StateStoreFailed("get", err))
		return
	case prev.Hash == hash:
		action = ActionKeep
	default:
		action = ActionUpdate
	}

	if action == ActionKeep {
		atomic.AddInt64(&stats.Kept, 1)
		o.publish(req.SyncJobID, syncprogress.EventEntitySkipped, id.EntityID, "")
		o.recordAction(req.SyncID, string(ActionKeep), start)
		return
	}

	outputs, err := o.Router.ProcessEntity(ctx, req.ProducerNodeID, entityType(e), e)
	if err != nil {
		o.fail(req, stats, id.EntityID, syncerr.EntityProcessing(id.EntityID, err))
		return
	}

	if err := o.fanOut(ctx, req, outputs, entityType(e), action, id.EntityID); err != nil {
		o.fail(req, stats, id.EntityID, err)
		return
	}

	if _, err := o.State.Upsert(ctx, &syncstate.Record{
		OrganizationID: req.OrganizationID,
		SyncID:         req.SyncID,
		EntityID:       id.EntityID,
		Hash:           hash,
		SyncJobID:      req.SyncJobID,
	}); err != nil {
		o.fail(req, stats, id.EntityID, syncerr.StateStoreFailed("upsert", err))
		return
	}

	switch action {
	case ActionInsert:
		atomic.AddInt64(&stats.Inserted, 1)
		o.publish(req.SyncJobID, syncprogress.EventEntityInserted, id.EntityID, "")
	case ActionUpdate:
		atomic.AddInt64(&stats.Updated, 1)
		o.publish(req.SyncJobID, syncprogress.EventEntityUpdated, id.EntityID, "")
	}
	o.recordAction(req.SyncID, string(action), start)
}

func (o *Orchestrator) recordAction(syncID, action string, start time.Time) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.RecordEntityAction(syncID, action, time.Since(start))
}

// fanOut writes every output entity to every destination reachable from the
// job's producer node for the entity's original type, then emits any
// configured relationships against destinations capable of graph writes. On
// ActionUpdate, each destination's prior row is deleted before the
// re-insert (spec.md §4.5 step 4: UPDATE is Delete followed by BulkInsert).
func (o *Orchestrator) fanOut(ctx context.Context, req JobRequest, outputs []syncentity.Entity, rootType string, action Action, entityID string) error {
	names := o.Router.DestinationsFor(req.ProducerNodeID, rootType)
	if len(names) == 0 {
		return nil
	}

	for _, name := range names {
		dest, ok := o.Destinations[name]
		if !ok {
			continue
		}
		if action == ActionUpdate {
			if err := dest.Delete(ctx, entityID); err != nil {
				return syncerr.DestinationFailed(name, entityID, err)
			}
		}
		if err := dest.BulkInsert(ctx, outputs); err != nil {
			return syncerr.DestinationFailed(name, outputsIDs(outputs), err)
		}

		graphDest, ok := dest.(syncdest.GraphDestination)
		if !ok || len(o.Relations) == 0 {
			continue
		}
		if err := o.emitRelationships(ctx, graphDest, outputs); err != nil {
			return syncerr.DestinationFailed(name, outputsIDs(outputs), err)
		}
	}
	return nil
}

func (o *Orchestrator) emitRelationships(ctx context.Context, dest syncdest.GraphDestination, outputs []syncentity.Entity) error {
	for _, e := range outputs {
		for _, desc := range o.Relations {
			rels, err := syncdag.ExtractRelationships(e, desc)
			if err != nil {
				return err
			}
			for _, rel := range rels {
				if err := dest.CreateRelationship(ctx, rel.SourceEntityID, rel.TargetEntityID, rel.RelationType, nil); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// reconcileDeletions removes every entity_id not present in seen from the
// state store and deletes it from every destination in o.Destinations,
// without consulting the DAG route.
func (o *Orchestrator) reconcileDeletions(ctx context.Context, req JobRequest, seen *entitySet) (int64, error) {
	existing, err := o.State.ListEntityIDs(ctx, req.SyncID)
	if err != nil {
		return 0, syncerr.StateStoreFailed("list", err)
	}

	var toDelete []string
	for _, id := range existing {
		if !seen.has(id) {
			toDelete = append(toDelete, id)
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	for _, dest := range o.Destinations {
		for _, id := range toDelete {
			if err := dest.Delete(ctx, id); err != nil {
				o.log().WithError(err).WithField("entity_id", id).Warn("destination delete failed during reconciliation")
			}
		}
	}

	if _, err := o.State.DeleteNotIn(ctx, req.SyncID, seen.slice()); err != nil {
		return 0, syncerr.StateStoreFailed("delete_not_in", err)
	}

	return int64(len(toDelete)), nil
}

func (o *Orchestrator) fail(req JobRequest, stats *JobStats, entityID string, err error) {
	atomic.AddInt64(&stats.Failed, 1)
	o.log().WithError(err).WithField("entity_id", entityID).Warn("entity processing failed")
	o.publish(req.SyncJobID, syncprogress.EventEntityFailed, entityID, err.Error())
	if o.Metrics != nil {
		o.Metrics.RecordError("orchestrator", string(syncerr.CodeOf(err)))
	}
}

func (o *Orchestrator) publish(syncJobID string, kind syncprogress.EventKind, entityID, message string) {
	if o.Progress == nil {
		return
	}
	o.Progress.Publish(syncprogress.Event{Kind: kind, SyncJobID: syncJobID, EntityID: entityID, Message: message})
}

func (o *Orchestrator) log() *logrus.Logger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}

func outputsIDs(outputs []syncentity.Entity) string {
	if len(outputs) == 0 {
		return ""
	}
	return outputs[0].Identity().EntityID
}

type entitySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newEntitySet() *entitySet {
	return &entitySet{seen: make(map[string]struct{})}
}

func (s *entitySet) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[id] = struct{}{}
}

func (s *entitySet) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

func (s *entitySet) slice() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.seen))
	for id := range s.seen {
		out = append(out, id)
	}
	return out
}
