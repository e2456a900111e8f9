package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccountService is the part of the ledger the accounts endpoints use.
type AccountService interface {
	CreateAccount(ctx context.Context, req ledger.NewAccount) (*domain.Account, error)
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	ListAccountsByType(ctx context.Context, t domain.AccountType) ([]*domain.Account, error)
	UpdateAccount(ctx context.Context, id int64, upd ledger.AccountUpdate) (*domain.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	AdjustBalance(ctx context.Context, adj ledger.Adjustment) (*domain.Account, *domain.HistoryEntry, error)
	History(ctx context.Context, accountID int64) ([]*domain.HistoryEntry, error)
}

// AccountsHandler handles account-related endpoints.
type AccountsHandler struct {
	ledger AccountService
	log    zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(l AccountService, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{
		ledger: l,
		log:    log,
	}
}

// accountID parses the {id} URL parameter, writing a 400 on failure.
func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid account ID")
		return 0, false
	}
	return id, true
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		accounts []*domain.Account
		err      error
	)
	if t := r.URL.Query().Get("type"); t != "" {
		accounts, err = h.ledger.ListAccountsByType(ctx, domain.AccountType(t))
	} else {
		accounts, err = h.ledger.ListAccounts(ctx)
	}
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list accounts")
		return
	}

	if accounts == nil {
		accounts = []*domain.Account{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name              string          `json:"name"`
		AccountType       string          `json:"account_type"`
		InitialBalance    decimal.Decimal `json:"initial_balance"`
		AssociatedMethods []string        `json:"associated_methods"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), ledger.NewAccount{
		Name:              req.Name,
		Type:              domain.AccountType(req.AccountType),
		InitialBalance:    req.InitialBalance,
		AssociatedMethods: req.AssociatedMethods,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create account")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, account)
}

// GetAccount handles GET /api/accounts/{id}
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get account")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, account)
}

// UpdateAccount handles PUT /api/accounts/{id}
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name              *string  `json:"name"`
		AssociatedMethods []string `json:"associated_methods"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.ledger.UpdateAccount(r.Context(), id, ledger.AccountUpdate{
		Name:              req.Name,
		AssociatedMethods: req.AssociatedMethods,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update account")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, account)
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	if err := h.ledger.DeleteAccount(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdjustBalance handles POST /api/accounts/{id}/adjust
func (h *AccountsHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		ChangeType  string          `json:"change_type"`
		Description string          `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	kind := domain.ChangeKind(req.ChangeType)
	if kind == "" {
		kind = domain.ChangeManualAdjustment
	}
	// Reconciled and transfer entries are tied to records; they are never
	// written through this endpoint.
	if kind != domain.ChangeManualAdjustment && kind != domain.ChangeDebtPayment {
		middleware.WriteError(w, http.StatusBadRequest, "change_type must be manual_adjustment or debt_payment")
		return
	}
	description := req.Description
	if description == "" {
		description = "Manual adjustment"
	}

	account, entry, err := h.ledger.AdjustBalance(r.Context(), ledger.Adjustment{
		AccountID:   id,
		Amount:      req.Amount,
		Kind:        kind,
		Description: description,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to adjust balance")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"entry":   entry,
	})
}

// History handles GET /api/accounts/{id}/history
func (h *AccountsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	entries, err := h.ledger.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list account history")
		return
	}

	if entries == nil {
		entries = []*domain.HistoryEntry{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"history": entries,
		"count":   len(entries),
	})
}
