// Package reconcile brings the local transactions and income tables in line
// with an external record source. A pass fetches the full snapshot, diffs it
// against storage by external id and applies the difference, balance effects
// included, as one unit of work.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/infra/sqlite"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// State is the phase a pass is in, or ended in.
type State string

const (
	StateFetching   State = "fetching"
	StateDiffing    State = "diffing"
	StateApplying   State = "applying"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
	StateFailed     State = "failed"

	// StateDryRun ends a pass that computed its plan and wrote nothing.
	StateDryRun State = "dry_run"
)

// Stats summarizes one pass.
type Stats struct {
	PassID     string    `json:"pass_id"`
	State      State     `json:"state"`
	DryRun     bool      `json:"dry_run,omitempty"`
	Total      int       `json:"total"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Deleted    int       `json:"deleted"`
	Unchanged  int       `json:"unchanged"`
	Errors     int       `json:"errors"`
	Warnings   int       `json:"warnings"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Config controls a reconciliation engine.
type Config struct {
	// IncomeCategory is the category value that marks a record as income.
	// The comparison is case-sensitive.
	IncomeCategory string

	// FetchTimeout bounds each provider call.
	FetchTimeout time.Duration

	// MaxAttempts is how many times a page fetch is tried before giving up.
	MaxAttempts int

	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration

	// DryRun computes the plan but writes nothing.
	DryRun bool
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		IncomeCategory: "income",
		FetchTimeout:   30 * time.Second,
		MaxAttempts:    3,
		RetryBackoff:   time.Second,
	}
}

// Engine runs reconciliation passes. At most one pass runs at a time.
type Engine struct {
	cfg      Config
	provider Provider
	archiver Archiver
	ledger   *ledger.Ledger
	log      zerolog.Logger
	now      func() time.Time

	group   singleflight.Group
	running atomic.Bool

	// claimed is held by a TryRun caller from before its pass starts until
	// it returns.
	claimed atomic.Bool

	// sleep waits between fetch retries.
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns an engine. Zero fields of cfg take their DefaultConfig value.
func New(cfg Config, provider Provider, l *ledger.Ledger, log zerolog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.IncomeCategory == "" {
		cfg.IncomeCategory = def.IncomeCategory
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}

	return &Engine{
		cfg:      cfg,
		provider: provider,
		ledger:   l,
		log:      log.With().Str("component", "reconcile").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepContext,
	}
}

// SetArchiver makes every successful fetch also be stored through a.
func (e *Engine) SetArchiver(a Archiver) { e.archiver = a }

// Running reports whether a pass is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run performs a pass. A caller arriving while a pass is in flight waits for
// it and receives the same result; that pass runs under the first caller's
// context.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	v, err, shared := e.group.Do("reconcile", func() (any, error) {
		e.running.Store(true)
		defer e.running.Store(false)
		return e.pass(ctx)
	})
	stats, _ := v.(Stats)
	if shared {
		e.log.Debug().Str("pass_id", stats.PassID).Msg("Joined in-flight reconciliation pass")
	}
	return stats, err
}

// TryRun is Run that refuses to wait: it returns domain.ErrSyncInProgress if a
// pass is already running or another TryRun is about to start one.
func (e *Engine) TryRun(ctx context.Context) (Stats, error) {
	if !e.claimed.CompareAndSwap(false, true) {
		return Stats{}, domain.ErrSyncInProgress
	}
	defer e.claimed.Store(false)

	if e.running.Load() {
		return Stats{}, domain.ErrSyncInProgress
	}
	return e.Run(ctx)
}

func (e *Engine) pass(ctx context.Context) (Stats, error) {
	stats := Stats{
		PassID:    uuid.New().String(),
		DryRun:    e.cfg.DryRun,
		StartedAt: e.now(),
	}
	log := e.log.With().Str("pass_id", stats.PassID).Bool("dry_run", e.cfg.DryRun).Logger()
	ctx = logger.WithContext(ctx, log)

	finish := func(state State, err error) (Stats, error) {
		stats.State = state
		stats.FinishedAt = e.now()
		metrics.ReconcilePasses.WithLabelValues(string(state)).Inc()
		metrics.ReconcileDuration.Observe(stats.FinishedAt.Sub(stats.StartedAt).Seconds())

		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Str("state", string(state)).
			Int("total", stats.Total).
			Int("created", stats.Created).
			Int("updated", stats.Updated).
			Int("deleted", stats.Deleted).
			Int("unchanged", stats.Unchanged).
			Int("errors", stats.Errors).
			Int("warnings", stats.Warnings).
			Dur("duration", stats.FinishedAt.Sub(stats.StartedAt)).
			Msg("Reconciliation pass finished")
		return stats, err
	}

	log.Info().Msg("Starting reconciliation pass")

	stats.State = StateFetching
	snap, err := e.fetchAll(ctx)
	if err != nil {
		return finish(StateFailed, err)
	}
	stats.Total = snap.total
	stats.Errors += snap.errors
	stats.Warnings += snap.warnings

	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, stats.PassID, snap.raw); err != nil {
			log.Warn().Err(err).Msg("Failed to archive snapshot")
		}
	}

	var applyStarted bool
	err = e.ledger.Batch(ctx, func(u *ledger.Unit) error {
		stats.State = StateDiffing
		transactions, err := u.Records().ListExternalTransactions(ctx)
		if err != nil {
			return fmt.Errorf("loading transactions: %w", err)
		}
		income, err := u.Records().ListExternalIncome(ctx)
		if err != nil {
			return fmt.Errorf("loading income: %w", err)
		}
		p := diff(snap.records, transactions, income, e.cfg.IncomeCategory)
		stats.Unchanged = p.unchanged

		log.Info().
			Int("creates", len(p.creates)).
			Int("updates", len(p.updates)).
			Int("deletes", len(p.deletes)).
			Int("unchanged", p.unchanged).
			Msg("Computed reconciliation plan")

		if e.cfg.DryRun {
			logPlan(log, p)
			stats.Created, stats.Updated, stats.Deleted = len(p.creates), len(p.updates), len(p.deletes)
			return nil
		}

		stats.State = StateApplying
		applyStarted = true
		res, err := e.apply(ctx, u, p)
		if err != nil {
			return err
		}
		stats.Created, stats.Updated, stats.Deleted = res.created, res.updated, res.deleted
		stats.Errors += res.errors
		return nil
	})
	if err != nil {
		if !applyStarted {
			return finish(StateFailed, fmt.Errorf("reconcile: %w", err))
		}
		stats.Created, stats.Updated, stats.Deleted = 0, 0, 0
		return finish(StateRolledBack, &domain.SyncConflict{PassID: stats.PassID, Err: err})
	}

	if e.cfg.DryRun {
		return finish(StateDryRun, nil)
	}
	metrics.ReconcileRecords.WithLabelValues("created").Add(float64(stats.Created))
	metrics.ReconcileRecords.WithLabelValues("updated").Add(float64(stats.Updated))
	metrics.ReconcileRecords.WithLabelValues("deleted").Add(float64(stats.Deleted))
	metrics.ReconcileRecords.WithLabelValues("unchanged").Add(float64(stats.Unchanged))
	metrics.ReconcileRecords.WithLabelValues("error").Add(float64(stats.Errors))
	return finish(StateCommitted, nil)
}

func logPlan(log zerolog.Logger, p plan) {
	for _, l := range p.deletes {
		log.Info().Str("kind", string(l.Kind)).Str("name", l.name()).Msg("[DRY RUN] Would delete record")
	}
	for _, r := range p.creates {
		log.Info().Str("external_id", r.ExternalID).Str("name", r.Name).Msg("[DRY RUN] Would create record")
	}
	for _, u := range p.updates {
		log.Info().
			Str("external_id", u.rec.ExternalID).
			Strs("fields", u.changes.Fields()).
			Msg("[DRY RUN] Would update record")
	}
}

// isRecordError reports whether err only concerns the record being applied,
// so the pass can skip it and continue.
func isRecordError(err error) bool {
	var parseErr *domain.RecordParseError
	if errors.As(err, &parseErr) {
		return true
	}
	for _, target := range []error{
		domain.ErrAccountNotFound,
		domain.ErrDuplicateAccountName,
		domain.ErrInvalidAmount,
		domain.ErrInvalidAccountType,
		domain.ErrInvalidAccountName,
		domain.ErrInvalidChangeKind,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return sqlite.IsConstraintViolation(err)
}
