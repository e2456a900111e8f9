package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/jobs"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", fmt.Errorf("GetAccount: %w", domain.ErrAccountNotFound), http.StatusNotFound, "Account not found"},
		{"job not found", fmt.Errorf("GetJob: %w: x", jobs.ErrJobNotFound), http.StatusNotFound, "Job not found"},
		{"duplicate", fmt.Errorf("insertAccount: %w: %q", domain.ErrDuplicateAccountName, "A"), http.StatusConflict, "Account name already exists"},
		{"sync running", domain.ErrSyncInProgress, http.StatusConflict, "Reconciliation already running"},
		{"funds", fmt.Errorf("Transfer: %w", domain.ErrInsufficientFunds), http.StatusUnprocessableEntity, "Insufficient funds"},
		{"invalid amount hides wrapping", fmt.Errorf("AdjustBalance: %w: zero", domain.ErrInvalidAmount), http.StatusBadRequest, "invalid amount"},
		{"same account", domain.ErrSameAccount, http.StatusBadRequest, domain.ErrSameAccount.Error()},
		{"fetch", &domain.ExternalFetchError{Source: "notion"}, http.StatusBadGateway, "External source unavailable"},
		{"conflict", &domain.SyncConflict{PassID: "p", Err: errors.New("disk I/O error")}, http.StatusInternalServerError, "Reconciliation rolled back"},
		{"unknown", errors.New("database is locked"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err)
			if status != tt.status || msg != tt.message {
				t.Errorf("statusFor() = %d %q, want %d %q", status, msg, tt.status, tt.message)
			}
		})
	}
}
