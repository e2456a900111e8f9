package reconcile

import (
	"context"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// Page is one batch of records from a Provider.
type Page struct {
	Records    []domain.RawRecord
	NextCursor string
	HasMore    bool
}

// Provider reads the authoritative record set page by page. An empty cursor
// asks for the first page. Transient failures should be reported as
// *domain.ExternalFetchError with Retryable set.
type Provider interface {
	Fetch(ctx context.Context, cursor string) (Page, error)
}

// Archiver keeps a copy of every fetched snapshot. Archive failures are
// logged and never fail a pass.
type Archiver interface {
	Archive(ctx context.Context, passID string, records []domain.RawRecord) error
}
