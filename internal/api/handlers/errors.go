package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/rs/zerolog"
)

// statusFor maps a service error to an HTTP status and a message safe to
// show to the client.
func statusFor(err error) (int, string) {
	var (
		fetchErr *domain.ExternalFetchError
		conflict *domain.SyncConflict
	)
	for _, invalid := range []error{
		domain.ErrInvalidAmount,
		domain.ErrInvalidAccountType,
		domain.ErrInvalidAccountName,
		domain.ErrInvalidChangeKind,
		domain.ErrSameAccount,
	} {
		if errors.Is(err, invalid) {
			return http.StatusBadRequest, invalid.Error()
		}
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound, "Record not found"
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound, "Job not found"
	case errors.Is(err, domain.ErrDuplicateAccountName):
		return http.StatusConflict, "Account name already exists"
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict, "Reconciliation already running"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "Insufficient funds"
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "External source unavailable"
	case errors.As(err, &conflict):
		return http.StatusInternalServerError, "Reconciliation rolled back"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// writeServiceError logs server-side failures and writes the mapped response.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status, clientMsg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
	} else {
		log.Debug().Err(err).Int("status", status).Msg(msg)
	}
	middleware.WriteError(w, status, clientMsg)
}
