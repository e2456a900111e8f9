package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Transferer moves money between accounts.
type Transferer interface {
	Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, description string) (*ledger.TransferResult, error)
}

// TransfersHandler handles transfer endpoints.
type TransfersHandler struct {
	coordinator Transferer
	log         zerolog.Logger
}

// NewTransfersHandler creates a new transfers handler.
func NewTransfersHandler(c Transferer, log zerolog.Logger) *TransfersHandler {
	return &TransfersHandler{
		coordinator: c,
		log:         log,
	}
}

// CreateTransfer handles POST /api/transfers
func (h *TransfersHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromAccountID int64           `json:"from_account_id"`
		ToAccountID   int64           `json:"to_account_id"`
		Amount        decimal.Decimal `json:"amount"`
		Description   string          `json:"description"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FromAccountID == 0 || req.ToAccountID == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "from_account_id and to_account_id are required")
		return
	}

	result, err := h.coordinator.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount, req.Description)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to transfer")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, result)
}
