package notionsync

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/jomei/notionapi"
)

const (
	// MaxPageSize is the largest page the Notion API returns.
	MaxPageSize = 100

	sourceName = "notion"
)

// Provider reads the transactions database as a reconciliation source,
// newest rows first.
type Provider struct {
	client     NotionService
	databaseID string
	pageSize   int
}

// NewProvider returns a provider over databaseID. A pageSize outside
// 1..MaxPageSize is clamped.
func NewProvider(client NotionService, databaseID string, pageSize int) *Provider {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Provider{client: client, databaseID: databaseID, pageSize: pageSize}
}

// Fetch implements reconcile.Provider. Archived pages and blank rows are
// skipped.
func (p *Provider) Fetch(ctx context.Context, cursor string) (reconcile.Page, error) {
	log := logger.FromContext(ctx)

	req := &notionapi.DatabaseQueryRequest{
		PageSize: p.pageSize,
		Sorts: []notionapi.SortObject{
			{Property: PropDate, Direction: notionapi.SortOrderDESC},
		},
	}
	// Only set StartCursor if we have a cursor value
	if cursor != "" {
		req.StartCursor = notionapi.Cursor(cursor)
	}

	resp, err := p.client.QueryDatabase(ctx, p.databaseID, req)
	if err != nil {
		return reconcile.Page{}, classify(err)
	}

	page := reconcile.Page{
		NextCursor: string(resp.NextCursor),
		HasMore:    resp.HasMore,
	}
	for _, np := range resp.Results {
		if np.Archived {
			continue
		}
		rec, ok := PageToRawRecord(np)
		if !ok {
			log.Warn().Str("page_id", string(np.ID)).Msg("Skipping empty row")
			continue
		}
		page.Records = append(page.Records, rec)
	}

	if page.HasMore && page.NextCursor == "" {
		return reconcile.Page{}, &domain.ExternalFetchError{
			Source: sourceName,
			Err:    errors.New("response has more results but no next cursor"),
		}
	}
	return page, nil
}

// classify marks rate limiting, server errors, timeouts and network failures
// as retryable.
func classify(err error) error {
	retryable := false

	var apiErr *notionapi.Error
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		retryable = apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		retryable = true
	case errors.As(err, &netErr):
		retryable = true
	}

	return &domain.ExternalFetchError{Source: sourceName, Retryable: retryable, Err: err}
}
