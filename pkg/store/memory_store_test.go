package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"questiongen/pkg/domain"
)

func seedPending(t *testing.T, s *MemoryStore, n int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		job := domain.Job{
			ID:        fmt.Sprintf("job-%03d", i),
			OwnerID:   "teacher-1",
			ScopeID:   "course-7",
			Status:    domain.JobPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.CreateJob(context.Background(), job); err != nil {
			t.Fatalf("create job: %v", err)
		}
	}
}

func TestClaimPendingJobsOldestFirst(t *testing.T) {
	s := NewMemoryStore()
	seedPending(t, s, 5)

	claimed, err := s.ClaimPendingJobs(context.Background(), 2)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("expected 2 claimed jobs, got %d", len(claimed))
	}
	if claimed[0].ID != "job-000" || claimed[1].ID != "job-001" {
		t.Fatalf("expected oldest-first claim, got %s, %s", claimed[0].ID, claimed[1].ID)
	}
	for _, j := range claimed {
		if j.Status != domain.JobProcessing {
			t.Fatalf("claimed job %s not processing: %s", j.ID, j.Status)
		}
	}
}

// Concurrent workers must never claim the same job twice.
func TestClaimPendingJobsConcurrent(t *testing.T) {
	const jobs = 60
	const workers = 8

	s := NewMemoryStore()
	seedPending(t, s, jobs)

	var mu sync.Mutex
	seen := make(map[string]int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				claimed, err := s.ClaimPendingJobs(context.Background(), 3)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if len(claimed) == 0 {
					return
				}
				mu.Lock()
				for _, j := range claimed {
					seen[j.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != jobs {
		t.Fatalf("expected all %d jobs claimed, got %d", jobs, len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("job %s claimed %d times", id, n)
		}
	}
}

func TestSetJobStatusNeverLeavesTerminalState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedPending(t, s, 1)

	if _, err := s.ClaimPendingJobs(ctx, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.SetJobStatus(ctx, "job-000", domain.JobFailed, "extraction timed out"); err != nil {
		t.Fatalf("fail job: %v", err)
	}
	if err := s.SetJobStatus(ctx, "job-000", domain.JobProcessing, ""); err != nil {
		t.Fatalf("set status: %v", err)
	}

	job, ok, err := s.GetJob(ctx, "job-000")
	if err != nil || !ok {
		t.Fatalf("get job: ok=%v err=%v", ok, err)
	}
	if job.Status != domain.JobFailed {
		t.Fatalf("terminal job re-entered %s", job.Status)
	}
	if job.ErrorMessage != "extraction timed out" {
		t.Fatalf("error detail lost: %q", job.ErrorMessage)
	}
}

func TestMarkDraftSavedIsOneWay(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.CreateDraft(ctx, domain.DraftQuestion{
		ID: "d1", TopicID: "t1", Status: domain.DraftGenerated,
	}); err != nil {
		t.Fatalf("create draft: %v", err)
	}

	if err := s.MarkDraftSaved(ctx, "d1", "bank-1"); err != nil {
		t.Fatalf("mark saved: %v", err)
	}
	if err := s.MarkDraftSaved(ctx, "d1", "bank-2"); err != nil {
		t.Fatalf("second mark saved: %v", err)
	}

	d, ok, err := s.GetDraft(ctx, "d1")
	if err != nil || !ok {
		t.Fatalf("get draft: ok=%v err=%v", ok, err)
	}
	if d.BankEntryID != "bank-1" {
		t.Fatalf("saved draft re-pointed to %q", d.BankEntryID)
	}
}

func TestDeleteUnsavedDraftsByJobKeepsSaved(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.CreateTopic(ctx, domain.Topic{ID: "t1", JobID: "j1"}); err != nil {
		t.Fatalf("create topic: %v", err)
	}
	for _, d := range []domain.DraftQuestion{
		{ID: "d1", TopicID: "t1", Status: domain.DraftGenerated},
		{ID: "d2", TopicID: "t1", Status: domain.DraftGenerated},
		{ID: "d3", TopicID: "t1", Status: domain.DraftSaved, BankEntryID: "bank-3"},
	} {
		if err := s.CreateDraft(ctx, d); err != nil {
			t.Fatalf("create draft: %v", err)
		}
	}

	if err := s.DeleteUnsavedDraftsByJob(ctx, "j1"); err != nil {
		t.Fatalf("delete unsaved: %v", err)
	}

	drafts, err := s.ListDraftsByTopic(ctx, "t1")
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != "d3" {
		t.Fatalf("expected only saved draft to survive, got %v", drafts)
	}
}
