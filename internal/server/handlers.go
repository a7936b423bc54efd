package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/clipforge/clipforge-api/internal/enrich"
	"github.com/clipforge/clipforge-api/internal/job"
	"github.com/clipforge/clipforge-api/internal/progress"
	"github.com/clipforge/clipforge-api/internal/segment"
	"github.com/clipforge/clipforge-api/internal/upload"
)

// Runner launches the orchestration for one job. It is satisfied by
// (*job.Orchestrator).Run.
type Runner func(ctx context.Context, j *job.Job, stream *progress.Stream)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	negotiator *upload.Negotiator
	registry   job.Registry
	run        Runner
	results    *enrich.ResultStore
	clipsDir   string
	validator  *validator.Validate
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(negotiator *upload.Negotiator, registry job.Registry, run Runner, results *enrich.ResultStore, clipsDir string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		negotiator: negotiator,
		registry:   registry,
		run:        run,
		results:    results,
		clipsDir:   clipsDir,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Sign handles POST /sign requests: it negotiates the upload protocol from
// the declared file size and returns scoped, expiring credentials.
func (h *Handlers) Sign(w http.ResponseWriter, r *http.Request) {
	var req SignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	plan, err := h.negotiator.Negotiate(r.Context(), req.Filename, req.Size)
	if err != nil {
		if errors.Is(err, upload.ErrSizeExceedsCap) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error(), "SIZE_EXCEEDS_CAP")
			return
		}
		h.logger.Error("upload negotiation failed",
			slog.String("filename", req.Filename),
			slog.Int64("size", req.Size),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "upload negotiation failed", "NEGOTIATION_FAILED")
		return
	}

	resp := SignResponse{
		Multipart: plan.Protocol == upload.ProtocolMultipart,
		ObjectKey: plan.ObjectKey,
	}
	if plan.Protocol == upload.ProtocolSingle {
		resp.URL = plan.Post.URL
		resp.Fields = plan.Post.Fields
	} else {
		resp.UploadID = plan.UploadID
		resp.ChunkSizeBytes = plan.ChunkSizeBytes
		resp.ChunkURLs = plan.ChunkURLs
		resp.CompleteURL = plan.CompleteURL
	}
	writeJSON(w, http.StatusOK, resp)
}

// StartJob handles POST /jobs requests: it registers a job and returns the
// stream URL the caller must consume to run it.
func (h *Handlers) StartJob(w http.ResponseWriter, r *http.Request) {
	var req StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	j, err := job.New(
		job.Source{UploadedKey: req.ObjectKey, FetchURL: req.FetchURL},
		segment.Partition{Count: req.Parts, Interval: req.IntervalSec},
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_JOB_SPEC")
		return
	}

	if err := h.registry.Put(r.Context(), j); err != nil {
		h.logger.Error("failed to register job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to register job", "JOB_CREATION_FAILED")
		return
	}

	h.logger.Info("job registered",
		slog.String("job_id", j.ID),
		slog.String("source", j.Source.String()),
		slog.String("partition", j.Partition.String()),
	)

	writeJSON(w, http.StatusAccepted, StartJobResponse{
		JobID:     j.ID,
		StreamURL: "/jobs/" + j.ID + "/stream",
	})
}

// StreamJob handles GET /jobs/{id}/stream: it consumes the job (exactly
// once), runs it, and relays the progress stream as chunked plain text.
// A client disconnect cancels the remaining stages.
func (h *Handlers) StreamJob(w http.ResponseWriter, r *http.Request) {
	j, stream, ok := h.takeAndRun(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case line, open := <-stream.Lines():
			if !open {
				return
			}
			if _, err := w.Write([]byte(line.Text + "\n")); err != nil {
				h.abandon(j, stream)
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			h.abandon(j, stream)
			return
		}
	}
}

// takeAndRun removes the job from the registry and launches its
// orchestration on a detached context, so the job's cancellation is driven
// by the stream (consumer-side) rather than the request object itself.
func (h *Handlers) takeAndRun(w http.ResponseWriter, r *http.Request) (*job.Job, *progress.Stream, bool) {
	jobID := r.PathValue("id")
	j, err := h.registry.Take(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, nil, false
		}
		h.logger.Error("failed to take job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to take job", "JOB_TAKE_FAILED")
		return nil, nil, false
	}

	stream := progress.NewStream()
	go h.run(context.WithoutCancel(r.Context()), j, stream)
	return j, stream, true
}

// abandon signals the producer that the consumer is gone and drains any
// in-flight line so the producer's pending send is released.
func (h *Handlers) abandon(j *job.Job, stream *progress.Stream) {
	stream.Cancel()
	go func() {
		for range stream.Lines() { //nolint:revive // drain until producer closes
		}
	}()
	h.logger.Warn("stream consumer disconnected",
		slog.String("job_id", j.ID),
	)
}

// LatestResults handles GET /results/latest: the most recent result table
// as JSON, with the empty-run marker surfaced as a message.
func (h *Handlers) LatestResults(w http.ResponseWriter, r *http.Request) {
	table, err := h.results.Latest()
	if err != nil {
		if errors.Is(err, enrich.ErrNoResults) {
			writeError(w, http.StatusNotFound, "no result tables yet", "NO_RESULTS")
			return
		}
		h.logger.Error("failed to read results", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read results", "RESULTS_READ_FAILED")
		return
	}

	resp := ResultsResponse{Message: table.Message}
	for _, rec := range table.Records {
		resp.Rows = append(resp.Rows, ResultRow{File: rec.ArtifactName, Title: rec.Title})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ServeClip handles GET /clips/{name}: artifact download from the working
// location. The name is sanitized to its base to keep requests inside the
// clips directory.
func (h *Handlers) ServeClip(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.PathValue("name"))
	if name == "." || name == "/" {
		writeError(w, http.StatusBadRequest, "clip name is required", "MISSING_CLIP_NAME")
		return
	}
	http.ServeFile(w, r, filepath.Join(h.clipsDir, name))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
