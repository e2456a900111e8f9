package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
)

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.SyncJob{
		JobID:     "job-1",
		Status:    jobs.JobStatusCompleted,
		Stats:     &reconcile.Stats{Created: 2},
		CreatedAt: time.Now(),
	}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	job.Status = jobs.JobStatusFailed
	job.Stats.Created = 99

	got, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error: %v", err)
	}
	if got.Status != jobs.JobStatusCompleted || got.Stats.Created != 2 {
		t.Errorf("GetJob() = %+v, stats %+v", got, got.Stats)
	}
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.SaveJob(ctx, &jobs.SyncJob{}); err == nil {
		t.Error("SaveJob() without ID succeeded")
	}
	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob() error = %v, want ErrJobNotFound", err)
	}
	if err := s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, "x"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus() error = %v, want ErrJobNotFound", err)
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.SaveJob(ctx, &jobs.SyncJob{JobID: "job-1", Status: jobs.JobStatusRunning})

	if err := s.UpdateJobStatus(ctx, "job-1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus() error: %v", err)
	}
	got, _ := s.GetJob(ctx, "job-1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("job = %+v", got)
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	for i, j := range []*jobs.SyncJob{
		{JobID: "a", Trigger: "api", Status: jobs.JobStatusCompleted},
		{JobID: "b", Trigger: "cli", Status: jobs.JobStatusFailed},
		{JobID: "c", Trigger: "api", Status: jobs.JobStatusFailed},
		{JobID: "d", Trigger: "api", Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob() error: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"d", "c", "b", "a"}},
		{"by trigger", jobs.JobFilter{Trigger: "api"}, []string{"d", "c", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusFailed}, []string{"c", "b"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"d", "c"}},
		{"offset", jobs.JobFilter{Offset: 3}, []string{"a"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListJobs() returned %d jobs, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].JobID != id {
					t.Errorf("job[%d] = %s, want %s", i, got[i].JobID, id)
				}
			}
		})
	}
}
