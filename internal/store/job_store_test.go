package store

import (
	"errors"
	"testing"

	"github.com/dunamismax/batchpix/internal/domain"
)

func seedJobs(ids ...string) []domain.Job {
	jobs := make([]domain.Job, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, domain.Job{
			ID:     id,
			Source: domain.Source{Name: id + ".png", Mime: "image/png"},
		})
	}
	return jobs
}

func pngSettings() domain.TransformSettings {
	return domain.TransformSettings{Tool: domain.ToolConvert, Format: domain.FormatPNG}
}

func TestClaimFollowsInsertionOrder(t *testing.T) {
	s := NewJobStore()
	s.Replace(seedJobs("a", "b", "c"))

	first, gen, ok := s.ClaimNextPending(pngSettings())
	if !ok || first.ID != "a" {
		t.Fatalf("expected to claim job a, got %+v ok=%v", first, ok)
	}
	if first.Status != domain.JobStatusProcessing {
		t.Fatalf("claimed job should be processing, got %s", first.Status)
	}

	// The in-flight job must not be claimed again; the next claim moves on.
	second, _, ok := s.ClaimNextPending(pngSettings())
	if !ok || second.ID != "b" {
		t.Fatalf("expected to claim job b, got %+v ok=%v", second, ok)
	}

	if err := s.Complete(first.ID, gen, domain.Result{PreviewHandle: "h-a"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := s.Get("a")
	if got.Status != domain.JobStatusCompleted || got.Result == nil {
		t.Fatalf("expected completed job with result, got %+v", got)
	}
}

func TestCompleteAfterReplaceIsStale(t *testing.T) {
	s := NewJobStore()
	s.Replace(seedJobs("a"))
	claimed, gen, ok := s.ClaimNextPending(pngSettings())
	if !ok {
		t.Fatal("expected a claim")
	}

	s.Replace(seedJobs("x"))

	err := s.Complete(claimed.ID, gen, domain.Result{PreviewHandle: "orphan"})
	if !errors.Is(err, ErrStaleExecution) {
		t.Fatalf("expected ErrStaleExecution, got %v", err)
	}
}

func TestRearmTerminalReleasesHandlesAndSparesInFlight(t *testing.T) {
	s := NewJobStore()
	s.Replace(seedJobs("a", "b", "c"))

	a, gen, _ := s.ClaimNextPending(pngSettings())
	if err := s.Complete(a.ID, gen, domain.Result{PreviewHandle: "h-a"}); err != nil {
		t.Fatalf("complete a: %v", err)
	}
	b, gen, _ := s.ClaimNextPending(pngSettings())
	if err := s.Fail(b.ID, gen, domain.ErrorKindDecode); err != nil {
		t.Fatalf("fail b: %v", err)
	}
	if _, _, ok := s.ClaimNextPending(pngSettings()); !ok {
		t.Fatal("expected to claim job c")
	}

	released, rearmed := s.RearmTerminal()
	if rearmed != 2 {
		t.Fatalf("expected 2 re-armed jobs, got %d", rearmed)
	}
	if len(released) != 1 || released[0] != "h-a" {
		t.Fatalf("expected released handle h-a, got %v", released)
	}

	if got, _ := s.Get("c"); got.Status != domain.JobStatusProcessing {
		t.Fatalf("in-flight job must be untouched, got %s", got.Status)
	}
	if got, _ := s.Get("a"); got.Status != domain.JobStatusPending || got.Result != nil {
		t.Fatalf("re-armed job must be pending without result, got %+v", got)
	}
}

func TestReplaceReturnsDisplacedHandles(t *testing.T) {
	s := NewJobStore()
	s.Replace(seedJobs("a"))
	a, gen, _ := s.ClaimNextPending(pngSettings())
	if err := s.Complete(a.ID, gen, domain.Result{PreviewHandle: "h-a"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	released := s.Replace(seedJobs("x", "y"))
	if len(released) != 1 || released[0] != "h-a" {
		t.Fatalf("expected displaced handle h-a, got %v", released)
	}
	if n := s.CountStatus(domain.JobStatusPending); n != 2 {
		t.Fatalf("expected 2 pending jobs after replace, got %d", n)
	}
}
