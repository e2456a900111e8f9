package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/metrics"
)

// snapshot is the normalized result of reading every page.
type snapshot struct {
	records  []record
	raw      []domain.RawRecord
	total    int
	errors   int
	warnings int
}

func (e *Engine) fetchAll(ctx context.Context) (snapshot, error) {
	log := logger.FromContext(ctx)
	now := e.now()

	var (
		snap   snapshot
		cursor string
		pages  int
	)
	seen := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return snapshot{}, fmt.Errorf("fetchAll: cancelled after %d pages: %w", pages, err)
		}

		page, err := e.fetchPage(ctx, cursor)
		if err != nil {
			return snapshot{}, fmt.Errorf("fetchAll: page %d: %w", pages+1, err)
		}
		pages++

		for _, raw := range page.Records {
			snap.total++
			snap.raw = append(snap.raw, raw)

			if raw.ExternalID == "" {
				snap.errors++
				log.Warn().Err(&domain.RecordParseError{Field: "external_id", Reason: "missing"}).Msg("Skipping record")
				continue
			}
			if seen[raw.ExternalID] {
				snap.errors++
				log.Warn().
					Err(&domain.RecordParseError{ExternalID: raw.ExternalID, Reason: "duplicate external id in snapshot"}).
					Msg("Skipping record")
				continue
			}
			seen[raw.ExternalID] = true

			r, defaulted := normalize(raw, now)
			if len(defaulted) > 0 {
				snap.warnings += len(defaulted)
				log.Warn().
					Str("external_id", r.ExternalID).
					Str("name", r.Name).
					Strs("defaulted", defaulted).
					Msg("Record has missing fields, using defaults")
			}
			snap.records = append(snap.records, r)
		}

		log.Info().Int("page", pages).Int("fetched", snap.total).Msg("Fetched page")

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	return snap, nil
}

// fetchPage calls the provider with a per-attempt timeout, retrying transient
// failures with a linear backoff.
func (e *Engine) fetchPage(ctx context.Context, cursor string) (Page, error) {
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
		page, err := e.provider.Fetch(attemptCtx, cursor)
		cancel()
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		if !retryable(err) {
			return Page{}, err
		}

		lastErr = err
		if attempt == e.cfg.MaxAttempts {
			break
		}

		wait := e.cfg.RetryBackoff * time.Duration(attempt)
		metrics.ReconcileFetchRetries.Inc()
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", e.cfg.MaxAttempts).
			Dur("backoff", wait).
			Msg("Fetch failed, retrying")

		if err := e.sleep(ctx, wait); err != nil {
			return Page{}, err
		}
	}

	return Page{}, fmt.Errorf("giving up after %d attempts: %w", e.cfg.MaxAttempts, lastErr)
}

func retryable(err error) bool {
	var fetchErr *domain.ExternalFetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
