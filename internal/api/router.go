// Package api assembles the HTTP surface of the ledger service.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/handlers"
	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Accounts  *handlers.AccountsHandler
	Transfers *handlers.TransfersHandler
	Records   *handlers.RecordsHandler
	Sync      *handlers.SyncHandler
	Jobs      *handlers.JobsHandler
}

// Options controls optional parts of the router.
type Options struct {
	// Metrics mounts the Prometheus /metrics endpoint.
	Metrics bool

	// RequestTimeout bounds each request; zero means one minute.
	RequestTimeout time.Duration
}

// NewRouter returns the chi router with all routes mounted.
func NewRouter(h Handlers, opts Options, log zerolog.Logger) http.Handler {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS)
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.Accounts.ListAccounts)
			r.Post("/", h.Accounts.CreateAccount)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Accounts.GetAccount)
				r.Put("/", h.Accounts.UpdateAccount)
				r.Delete("/", h.Accounts.DeleteAccount)
				r.Post("/adjust", h.Accounts.AdjustBalance)
				r.Get("/history", h.Accounts.History)
			})
		})

		r.Post("/transfers", h.Transfers.CreateTransfer)

		r.Get("/transactions", h.Records.ListTransactions)
		r.Get("/transactions/{id}", h.Records.GetTransaction)
		r.Get("/income", h.Records.ListIncome)
		r.Get("/income/{id}", h.Records.GetIncome)

		r.Post("/sync", h.Sync.RunSync)
		r.Post("/sync/jobs", h.Sync.EnqueueSync)

		r.Get("/jobs", h.Jobs.ListJobs)
		r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.Jobs.GetJob(w, r, chi.URLParam(r, "id"))
		})
	})

	if opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
