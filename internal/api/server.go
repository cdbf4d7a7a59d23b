// Package api exposes the batch transform service over HTTP: multipart
// intake, settings updates, job listing, result download and the batch
// archive.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dunamismax/batchpix/internal/archive"
	"github.com/dunamismax/batchpix/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

const defaultRateLimitUserIDHeader = "X-User-ID"

type batchScheduler interface {
	Intake(ctx context.Context, sources []domain.Source, settings domain.TransformSettings) ([]domain.Job, error)
	OnSettingsChanged(settings domain.TransformSettings) error
	Jobs() []domain.Job
	Job(jobID string) (domain.Job, bool)
	Reset(ctx context.Context)
}

type Options struct {
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
	Tracer                trace.Tracer
	MaxUploadBytes        int64
	MaxBatchSize          int
}

type Server struct {
	logger                *log.Logger
	scheduler             batchScheduler
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	tracer                trace.Tracer
	metrics               *metrics
	maxUploadBytes        int64
	maxBatchSize          int
	mux                   *http.ServeMux
}

func NewServer(logger *log.Logger, scheduler batchScheduler, opts Options) *Server {
	maxUploadBytes := opts.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 64 << 20
	}
	maxBatchSize := opts.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = 100
	}
	header := opts.RateLimitUserIDHeader
	if header == "" {
		header = defaultRateLimitUserIDHeader
	}

	s := &Server{
		logger:                logger,
		scheduler:             scheduler,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: header,
		tracer:                opts.Tracer,
		metrics:               newMetrics(),
		maxUploadBytes:        maxUploadBytes,
		maxBatchSize:          maxBatchSize,
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/batch", s.handleIntakeBatch)
	s.mux.HandleFunc("DELETE /v1/batch", s.handleResetBatch)
	s.mux.HandleFunc("GET /v1/batch/archive", s.handleArchive)
	s.mux.HandleFunc("PUT /v1/settings", s.handleUpdateSettings)
	s.mux.HandleFunc("GET /v1/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("GET /v1/jobs/{id}/result", s.handleJobResult)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIntakeBatch accepts a multipart form with a "settings" JSON field and
// one or more "files" parts. The incoming batch replaces whatever was loaded
// before.
func (s *Server) handleIntakeBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid multipart form: %v", err)})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	rawSettings := r.FormValue("settings")
	if rawSettings == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "settings field is required"})
		return
	}
	var settings domain.TransformSettings
	if err := strictUnmarshal([]byte(rawSettings), &settings); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one file is required"})
		return
	}
	if len(fileHeaders) > s.maxBatchSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": fmt.Sprintf("batch exceeds the maximum of %d files", s.maxBatchSize),
		})
		return
	}

	sources := make([]domain.Source, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		file, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("open upload %s: %v", fh.Filename, err)})
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("read upload %s: %v", fh.Filename, err)})
			return
		}
		sources = append(sources, domain.Source{
			Name:  fh.Filename,
			Mime:  fh.Header.Get("Content-Type"),
			Bytes: data,
		})
	}

	jobs, err := s.scheduler.Intake(r.Context(), sources, settings)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.metrics.intakeFilesTotal.WithLabelValues(string(settings.Tool)).Add(float64(len(jobs)))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"jobs":        jobViews(jobs),
		"accepted_at": time.Now().UTC(),
	})
}

// handleUpdateSettings records new active settings. Terminal jobs re-run
// under them once edits go quiet; the response is therefore 202, not 200.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.TransformSettings
	if err := decodeJSON(r, &settings); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := s.scheduler.OnSettingsChanged(settings); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobViews(s.scheduler.Jobs())})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.scheduler.Job(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job, ok := s.scheduler.Job(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	if job.Status != domain.JobStatusCompleted || job.Result == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "job has no downloadable result",
			"status": job.Status,
		})
		return
	}

	w.Header().Set("Content-Type", job.Result.Mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.Result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(job.Result.Bytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(job.Result.Bytes)
}

func (s *Server) handleArchive(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	err := archive.Write(&buf, s.scheduler.Jobs())
	if errors.Is(err, archive.ErrNoCompletedJobs) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Printf("build batch archive failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to build archive"})
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="batchpix_outputs.zip"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleResetBatch(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Reset(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// jobView is the JSON shape of a job in listings; output bytes are only
// reachable through the result and archive endpoints.
type jobView struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Status    string         `json:"status"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Result    *jobResultView `json:"result,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type jobResultView struct {
	Filename       string `json:"filename"`
	Mime           string `json:"mime"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	OriginalSize   int    `json:"original_size"`
	CompressedSize int    `json:"compressed_size"`
	SizeTargetMet  bool   `json:"size_target_met"`
}

func newJobView(job domain.Job) jobView {
	view := jobView{
		ID:        job.ID,
		Source:    job.Source.Name,
		Status:    job.Status,
		ErrorKind: job.ErrorKind,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Result != nil {
		view.Result = &jobResultView{
			Filename:       job.Result.Filename,
			Mime:           job.Result.Mime,
			Width:          job.Result.Width,
			Height:         job.Result.Height,
			OriginalSize:   job.Result.OriginalSize,
			CompressedSize: job.Result.CompressedSize,
			SizeTargetMet:  job.Result.SizeTargetMet,
		}
	}
	return view
}

func jobViews(jobs []domain.Job) []jobView {
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, newJobView(job))
	}
	return views
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func strictUnmarshal(data []byte, into any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid settings JSON: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid settings JSON: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
