// Package app wires configuration into the ledger, reconciliation and job
// components shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/archive"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/notionsync"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/rs/zerolog"
)

// App holds the long-lived components built from one configuration.
type App struct {
	Config    config.Config
	Log       zerolog.Logger
	DB        *sqlite.DB
	Ledger    *ledger.Ledger
	Transfers *ledger.TransferCoordinator

	archiver *archive.Archiver
	closers  []func() error
}

// New opens the database and builds the ledger. The snapshot archive is
// connected when a bucket is configured.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	l := ledger.New(db, log)
	a := &App{
		Config:    cfg,
		Log:       log,
		DB:        db,
		Ledger:    l,
		Transfers: ledger.NewTransferCoordinator(l),
		closers:   []func() error{db.Close},
	}

	if cfg.Sync.ArchiveBucket != "" {
		store, err := archive.NewGCSStore(ctx, cfg.Sync.ArchiveBucket, cfg.Sync.CredentialsFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.archiver = archive.New(store, "snapshots", log)
		log.Info().Str("bucket", cfg.Sync.ArchiveBucket).Msg("Snapshot archive enabled")
	}

	log.Info().Str("db_path", db.Path()).Msg("Ledger opened")
	return a, nil
}

// Close releases everything New opened, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) engineConfig(dryRun bool) reconcile.Config {
	return reconcile.Config{
		IncomeCategory: a.Config.Sync.IncomeCategory,
		FetchTimeout:   a.Config.Sync.FetchTimeout,
		MaxAttempts:    a.Config.Sync.MaxAttempts,
		RetryBackoff:   a.Config.Sync.RetryBackoff,
		DryRun:         dryRun,
	}
}

// Engine builds a reconciliation engine reading from the configured Notion
// database.
func (a *App) Engine(dryRun bool) (*reconcile.Engine, error) {
	if err := a.Config.NotionConfigured(); err != nil {
		return nil, fmt.Errorf("Engine: %w", err)
	}

	client := notionsync.NewNotionClient(a.Config.Notion.Token)
	provider := notionsync.NewProvider(client, a.Config.Notion.DatabaseID, a.Config.Notion.PageSize)

	e := reconcile.New(a.engineConfig(dryRun), provider, a.Ledger, a.Log)
	if a.archiver != nil && !dryRun {
		e.SetArchiver(a.archiver)
	}
	return e, nil
}

// ReplayEngine builds an engine that reconciles against an archived snapshot
// instead of Notion.
func (a *App) ReplayEngine(ctx context.Context, object string, dryRun bool) (*reconcile.Engine, error) {
	if a.archiver == nil {
		return nil, fmt.Errorf("ReplayEngine: no archive bucket configured (set sync.archive_bucket or %s)", config.EnvArchiveBucket)
	}
	snap, err := a.archiver.Load(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("ReplayEngine: %w", err)
	}

	a.Log.Info().
		Str("object", object).
		Str("original_pass_id", snap.PassID).
		Int("records", len(snap.Records)).
		Msg("Replaying archived snapshot")
	return reconcile.New(a.engineConfig(dryRun), archive.NewReplayProvider(snap), a.Ledger, a.Log), nil
}

// SyncJobHandler runs one reconciliation pass per job and records its stats
// on the job.
func SyncJobHandler(e *reconcile.Engine, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		syncJob, ok := job.(*jobs.SyncJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", syncJob.JobID).
			Str("trigger", syncJob.Trigger).
			Int("retry", syncJob.RetryCount).
			Msg("Processing reconciliation job")

		stats, err := e.Run(ctx)
		syncJob.Stats = &stats
		if err != nil {
			log.Error().Err(err).Str("job_id", syncJob.JobID).Msg("Reconciliation job failed")
			return err
		}

		log.Info().
			Str("job_id", syncJob.JobID).
			Str("pass_id", stats.PassID).
			Msg("Reconciliation job completed")
		return nil
	}
}
