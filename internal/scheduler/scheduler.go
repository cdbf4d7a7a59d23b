// Package scheduler owns the batch job collection and drives the transform
// pipeline over it, strictly one job at a time. Settings changes re-arm
// every terminal job after a debounced quiet window; in-flight jobs always
// finish under the settings snapshot they started with.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/dunamismax/batchpix/internal/domain"
	"github.com/dunamismax/batchpix/internal/id"
	"github.com/dunamismax/batchpix/internal/preview"
	"github.com/dunamismax/batchpix/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultDebounceWindow coalesces rapid settings edits into one re-arm.
const DefaultDebounceWindow = 600 * time.Millisecond

type Executor interface {
	Execute(ctx context.Context, job domain.Job) (domain.Result, error)
}

type WebhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type Options struct {
	DebounceWindow time.Duration
	History        store.HistoryStore
	Webhook        WebhookSender
	WebhookURL     string
}

type Scheduler struct {
	logger     *log.Logger
	jobs       *store.JobStore
	executor   Executor
	previews   preview.Store
	history    store.HistoryStore
	webhook    WebhookSender
	webhookURL string
	metrics    *metrics
	tracer     trace.Tracer

	mu        sync.Mutex
	settings  domain.TransformSettings
	debounced func(func())

	kick chan struct{}
}

func New(logger *log.Logger, executor Executor, previews preview.Store, opts Options) *Scheduler {
	window := opts.DebounceWindow
	if window <= 0 {
		window = DefaultDebounceWindow
	}

	return &Scheduler{
		logger:     logger,
		jobs:       store.NewJobStore(),
		executor:   executor,
		previews:   previews,
		history:    opts.History,
		webhook:    opts.Webhook,
		webhookURL: opts.WebhookURL,
		metrics:    newMetrics(),
		tracer:     otel.Tracer("batchpix/scheduler"),
		debounced:  debounce.New(window),
		kick:       make(chan struct{}, 1),
	}
}

// Start launches the drain loop. All transform executions happen on this
// one goroutine, which is what makes single-flight an invariant rather than
// a convention.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
			s.drain(ctx)
		}
	}
}

// Intake replaces the whole job collection with one pending job per source,
// releasing every displaced preview handle.
func (s *Scheduler) Intake(ctx context.Context, sources []domain.Source, settings domain.TransformSettings) ([]domain.Job, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	jobs := make([]domain.Job, 0, len(sources))
	for _, src := range sources {
		jobs = append(jobs, domain.Job{
			ID:     id.New(),
			Source: src,
		})
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	displaced := s.jobs.Replace(jobs)
	s.releaseHandles(ctx, displaced)

	s.logger.Printf("intake replaced batch jobs=%d tool=%s", len(jobs), settings.Tool)
	s.wake()
	return s.jobs.List(), nil
}

// OnSettingsChanged records the new active settings and, once no further
// change arrives within the debounce window, re-arms every terminal job.
func (s *Scheduler) OnSettingsChanged(settings domain.TransformSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	debounced := s.debounced
	s.mu.Unlock()

	debounced(s.rearm)
	return nil
}

func (s *Scheduler) rearm() {
	released, rearmed := s.jobs.RearmTerminal()
	s.releaseHandles(context.Background(), released)
	if rearmed == 0 {
		return
	}
	s.metrics.rearmedJobsTotal.Add(float64(rearmed))
	s.logger.Printf("settings change re-armed %d jobs", rearmed)
	s.wake()
}

// Reset tears the batch down, releasing every preview handle.
func (s *Scheduler) Reset(ctx context.Context) {
	released := s.jobs.Clear()
	s.releaseHandles(ctx, released)
	s.logger.Printf("batch cleared jobs_released=%d", len(released))
}

func (s *Scheduler) Jobs() []domain.Job {
	return s.jobs.List()
}

func (s *Scheduler) Job(jobID string) (domain.Job, bool) {
	return s.jobs.Get(jobID)
}

func (s *Scheduler) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Scheduler) drain(ctx context.Context) {
	processed := 0
	for ctx.Err() == nil {
		s.mu.Lock()
		settings := s.settings
		s.mu.Unlock()

		job, generation, ok := s.jobs.ClaimNextPending(settings)
		if !ok {
			break
		}
		s.runJob(ctx, job, generation)
		processed++
	}

	if processed > 0 {
		jobs := s.jobs.List()
		completed, failed := 0, 0
		for _, job := range jobs {
			switch job.Status {
			case domain.JobStatusCompleted:
				completed++
			case domain.JobStatusError:
				failed++
			}
		}
		s.dispatchWebhook(ctx, "batch.drained", map[string]any{
			"jobs":       len(jobs),
			"completed":  completed,
			"failed":     failed,
			"drained_at": time.Now().UTC(),
		})
	}
}

func (s *Scheduler) runJob(ctx context.Context, job domain.Job, generation uint64) {
	startedAt := time.Now()
	outcome := domain.JobStatusError

	ctx, span := s.tracer.Start(ctx, "scheduler.run_job", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.tool", string(job.Settings.Tool)),
		attribute.String("job.source", job.Source.Name),
	)
	defer span.End()
	defer func() {
		tool := string(job.Settings.Tool)
		s.metrics.jobDuration.WithLabelValues(tool, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(tool, outcome).Inc()
	}()

	s.metrics.activeJobs.Inc()
	defer s.metrics.activeJobs.Dec()

	result, err := s.executor.Execute(ctx, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transform failed")

		kind := domain.ErrorKindOf(err)
		if failErr := s.jobs.Fail(job.ID, generation, kind); failErr != nil {
			// The batch was replaced mid-flight; nothing to record.
			s.logger.Printf("discarding failure for displaced job %s: %v", job.ID, failErr)
			return
		}
		s.logger.Printf("job failed id=%s source=%s kind=%s err=%v", job.ID, job.Source.Name, kind, err)
		s.dispatchWebhook(ctx, "job.failed", map[string]any{
			"job_id":     job.ID,
			"source":     job.Source.Name,
			"tool":       job.Settings.Tool,
			"error_kind": kind,
			"failed_at":  time.Now().UTC(),
		})
		return
	}

	if completeErr := s.jobs.Complete(job.ID, generation, result); completeErr != nil {
		// Result belongs to a discarded batch: its handle is ours to revoke.
		s.releaseHandles(ctx, []string{result.PreviewHandle})
		s.logger.Printf("discarding result for displaced job %s: %v", job.ID, completeErr)
		return
	}

	outcome = domain.JobStatusCompleted
	span.SetStatus(codes.Ok, "transformed")

	if saved := result.OriginalSize - result.CompressedSize; saved > 0 {
		s.metrics.bytesSavedTotal.Add(float64(saved))
	}
	s.logger.Printf(
		"job completed id=%s source=%s output=%s bytes=%d target_met=%v",
		job.ID, job.Source.Name, result.Filename, result.CompressedSize, result.SizeTargetMet,
	)

	s.recordHistory(ctx, job, result, time.Since(startedAt))
	s.dispatchWebhook(ctx, "job.completed", map[string]any{
		"job_id":          job.ID,
		"source":          job.Source.Name,
		"tool":            job.Settings.Tool,
		"output":          result.Filename,
		"width":           result.Width,
		"height":          result.Height,
		"original_size":   result.OriginalSize,
		"compressed_size": result.CompressedSize,
		"size_target_met": result.SizeTargetMet,
		"completed_at":    time.Now().UTC(),
	})
}

func (s *Scheduler) recordHistory(ctx context.Context, job domain.Job, result domain.Result, duration time.Duration) {
	if s.history == nil {
		return
	}

	durationMS := duration.Milliseconds()
	if durationMS < 1 {
		durationMS = 1
	}

	rec := store.TransformRecord{
		JobID:          job.ID,
		Tool:           string(job.Settings.Tool),
		Format:         string(job.Settings.Format),
		OriginalSize:   result.OriginalSize,
		CompressedSize: result.CompressedSize,
		SizeTargetMet:  result.SizeTargetMet,
		DurationMS:     durationMS,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.history.Record(ctx, rec); err != nil {
		s.logger.Printf("history write failed job_id=%s err=%v", job.ID, err)
	}
}

func (s *Scheduler) dispatchWebhook(ctx context.Context, event string, payload map[string]any) {
	if s.webhook == nil || s.webhookURL == "" {
		return
	}
	if err := s.webhook.Send(ctx, s.webhookURL, event, payload); err != nil {
		s.logger.Printf("webhook delivery failed event=%s err=%v", event, err)
	}
}

func (s *Scheduler) releaseHandles(ctx context.Context, handles []string) {
	for _, handle := range handles {
		if handle == "" {
			continue
		}
		if err := s.previews.Release(ctx, handle); err != nil {
			s.logger.Printf("preview release failed handle=%s err=%v", handle, err)
			continue
		}
		s.metrics.handleReleasesTotal.Inc()
	}
}

func (s *Scheduler) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}
