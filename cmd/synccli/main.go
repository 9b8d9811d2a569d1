// Command synccli is the scheduler-facing entry point for running, watching,
// and cancelling sync jobs (SPEC_FULL §6): a thin CLI over the same
// orchestrator, job lifecycle, and connector registry the service would
// wire into an HTTP handler.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/syncengine/connectors/githubsource"
	"github.com/R3E-Network/syncengine/connectors/neo4jdestination"
	"github.com/R3E-Network/syncengine/connectors/qdrantdestination"
	"github.com/R3E-Network/syncengine/connectors/sharepointsource"
	"github.com/R3E-Network/syncengine/infrastructure/metrics"
	"github.com/R3E-Network/syncengine/internal/platform/database"
	"github.com/R3E-Network/syncengine/internal/platform/migrations"
	"github.com/R3E-Network/syncengine/internal/registry"
	"github.com/R3E-Network/syncengine/internal/syncerr"
	"github.com/R3E-Network/syncengine/internal/syncjob"
	"github.com/R3E-Network/syncengine/internal/synccrypto"
	"github.com/R3E-Network/syncengine/internal/syncstate"
	"github.com/R3E-Network/syncengine/pkg/config"
	"github.com/R3E-Network/syncengine/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return exitValidation
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "-h", "--help", "help":
		printUsage()
		return exitOK
	case "run":
		return runCmd(rest)
	case "cancel":
		return cancelCmd(rest)
	case "status":
		return statusCmd(rest)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		printUsage()
		return exitValidation
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `synccli - run and manage sync engine jobs

Usage:
  synccli run --sync-id ID --definition FILE [--full]
      Start and drive a sync job to completion.
  synccli cancel --job-id ID
      Mark a running (or pending) job cancelled.
  synccli status --job-id ID
      Print a job's current status and counters.

Environment: DB_URL, MAX_WORKERS, STREAM_BUFFER, LOG_LEVEL, LOG_FORMAT,
CREDENTIAL_ENCRYPTION_KEY.

Exit codes: 0 success, 1 validation error, 2 operational error,
3 cancelled, 4 timed out.
`)
}

// deps bundles the collaborators every subcommand needs, built once from
// environment configuration.
type deps struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *sql.DB
	jobStore *syncjob.PostgresStore
	state    *syncstate.PostgresStore
	registry *registry.Registry
}

func bootstrap(ctx context.Context) (*deps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, syncerr.Validation("config", err.Error())
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, syncerr.StateStoreFailed("database_open", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	metrics.Global().SetDatabaseConnections(db.Stats().OpenConnections)

	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(ctx, db); err != nil {
			db.Close()
			return nil, nil, syncerr.StateStoreFailed("migrate", err)
		}
	}

	reg := registry.New()
	githubsource.Register(reg)
	sharepointsource.Register(reg)
	qdrantdestination.Register(reg)
	neo4jdestination.Register(reg)

	d := &deps{
		cfg:      cfg,
		log:      log,
		db:       db,
		jobStore: syncjob.NewPostgresStore(db),
		state:    syncstate.NewPostgresStore(db),
		registry: reg,
	}
	return d, func() { db.Close() }, nil
}

// masterKey derives the credential-encryption master key from configuration,
// or returns nil if none is configured (definitions must then carry
// plaintext credentials).
func masterKey(cfg *config.Config) []byte {
	if cfg.Security.EncryptionKey == "" {
		return nil
	}
	if cfg.Security.EncryptionKeyIsPassphrase {
		return synccrypto.DeriveMasterKey([]byte(cfg.Security.EncryptionKey), []byte(cfg.Security.EncryptionKeySalt))
	}
	return []byte(cfg.Security.EncryptionKey)
}

func withSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitCodeFor(err)
}

func runCmd(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	syncID := fs.String("sync-id", "", "sync to run")
	definitionPath := fs.String("definition", "", "path to the sync definition JSON file")
	fullSync := fs.Bool("full", false, "run a full sync (reconcile deletions)")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if *syncID == "" || *definitionPath == "" {
		return fail(syncerr.Validation("run", "--sync-id and --definition are required"))
	}

	ctx, cancel := withSignalContext()
	defer cancel()

	d, closeDeps, err := bootstrap(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeDeps()

	def, err := loadSyncDefinition(*definitionPath, masterKey(d.cfg))
	if err != nil {
		return fail(syncerr.Validation("definition", err.Error()))
	}
	if def.SyncID != *syncID {
		return fail(syncerr.Validation("sync-id", "definition's sync_id does not match --sync-id"))
	}
	def.FullSync = def.FullSync || *fullSync

	stats, err := RunSync(ctx, d, def)
	if err != nil {
		return fail(err)
	}

	console.Info().
		Str("sync_id", *syncID).
		Int64("inserted", stats.Inserted).
		Int64("updated", stats.Updated).
		Int64("kept", stats.Kept).
		Int64("failed", stats.Failed).
		Int64("deleted", stats.Deleted).
		Msg("sync completed")
	return exitOK
}

func cancelCmd(args []string) int {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	jobID := fs.String("job-id", "", "job to cancel")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if *jobID == "" {
		return fail(syncerr.Validation("cancel", "--job-id is required"))
	}

	ctx, cancel := withSignalContext()
	defer cancel()

	d, closeDeps, err := bootstrap(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeDeps()

	lifecycle := &syncjob.Lifecycle{Store: d.jobStore}
	if err := lifecycle.Cancel(ctx, *jobID); err != nil {
		return fail(err)
	}

	console.Info().Str("job_id", *jobID).Msg("job cancelled")
	return exitOK
}

func statusCmd(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	jobID := fs.String("job-id", "", "job to inspect")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if *jobID == "" {
		return fail(syncerr.Validation("status", "--job-id is required"))
	}

	ctx, cancel := withSignalContext()
	defer cancel()

	d, closeDeps, err := bootstrap(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeDeps()

	job, err := d.jobStore.Get(ctx, *jobID)
	if err != nil {
		return fail(err)
	}

	evt := console.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int64("inserted", job.Inserted).
		Int64("updated", job.Updated).
		Int64("kept", job.Kept).
		Int64("skipped", job.Skipped).
		Int64("failed", job.Failed)
	if job.Error != "" {
		evt = evt.Str("error", job.Error)
	}
	evt.Msg("job status")
	return exitOK
}
