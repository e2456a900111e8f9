package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/rs/zerolog"
)

// SyncRunner runs a reconciliation pass without waiting for one in flight.
type SyncRunner interface {
	TryRun(ctx context.Context) (reconcile.Stats, error)
}

// SyncHandler handles reconciliation endpoints.
type SyncHandler struct {
	engine    SyncRunner
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(engine SyncRunner, publisher jobs.Publisher, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		engine:    engine,
		publisher: publisher,
		log:       log,
	}
}

// RunSync handles POST /api/sync. It runs a pass synchronously and answers
// 409 when one is already running.
func (h *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.TryRun(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Reconciliation failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, stats)
}

// EnqueueSync handles POST /api/sync/jobs
func (h *SyncHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	job := &jobs.SyncJob{Trigger: "api"}

	if err := h.publisher.PublishSync(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue reconciliation job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue reconciliation job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Reconciliation job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, h.log.With().Str("job_id", jobID).Logger(), err, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Trigger: query.Get("trigger"),
		Status:  jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
