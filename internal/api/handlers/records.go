package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RecordReader reads the reconciled transaction and income tables.
// Getters return nil, nil for unknown ids.
type RecordReader interface {
	GetTransaction(ctx context.Context, id int64) (*domain.TransactionRecord, error)
	ListTransactions(ctx context.Context, start, end time.Time) ([]*domain.TransactionRecord, error)
	GetIncome(ctx context.Context, id int64) (*domain.IncomeRecord, error)
	ListIncome(ctx context.Context, account string) ([]*domain.IncomeRecord, error)
}

// RecordsHandler serves the read-only record endpoints.
type RecordsHandler struct {
	records RecordReader
	log     zerolog.Logger
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(r RecordReader, log zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{
		records: r,
		log:     log,
	}
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid record ID")
		return 0, false
	}
	return id, true
}

// ListTransactions handles GET /api/transactions?start=&end=
func (h *RecordsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := domain.ParseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.records.ListTransactions(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []*domain.TransactionRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// GetTransaction handles GET /api/transactions/{id}
func (h *RecordsHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	tx, err := h.records.GetTransaction(r.Context(), id)
	if err == nil && tx == nil {
		err = fmt.Errorf("transaction %d: %w", id, domain.ErrRecordNotFound)
	}
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// ListIncome handles GET /api/income?account=
func (h *RecordsHandler) ListIncome(w http.ResponseWriter, r *http.Request) {
	income, err := h.records.ListIncome(r.Context(), r.URL.Query().Get("account"))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list income")
		return
	}
	if income == nil {
		income = []*domain.IncomeRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"income": income,
		"count":  len(income),
	})
}

// GetIncome handles GET /api/income/{id}
func (h *RecordsHandler) GetIncome(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	inc, err := h.records.GetIncome(r.Context(), id)
	if err == nil && inc == nil {
		err = fmt.Errorf("income %d: %w", id, domain.ErrRecordNotFound)
	}
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get income")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, inc)
}
