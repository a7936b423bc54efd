// Package server provides the HTTP surface: upload negotiation, job start,
// progress streaming and result retrieval. DTOs are kept separate from
// domain types.
package server

// SignRequest is the HTTP request body for negotiating an upload.
// Both fields are client-reported and untrusted.
type SignRequest struct {
	// Filename is the client's file name; only its extension is used.
	Filename string `json:"filename" validate:"required"`
	// Size is the declared file size in bytes.
	Size int64 `json:"size" validate:"required,min=1"`
}

// SignResponse is the negotiated upload plan.
type SignResponse struct {
	// Multipart selects which of the two shapes below is populated.
	Multipart bool   `json:"multipart"`
	ObjectKey string `json:"object_key"`

	// Single upload: one expiring POST URL plus its form fields.
	URL    string            `json:"url,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`

	// Multipart upload: session id, per-chunk PUT URLs, chunk size and
	// the URL that finalizes the session.
	UploadID       string   `json:"upload_id,omitempty"`
	ChunkSizeBytes int64    `json:"chunk_size_bytes,omitempty"`
	ChunkURLs      []string `json:"chunk_urls,omitempty"`
	CompleteURL    string   `json:"complete_url,omitempty"`
}

// StartJobRequest is the HTTP request body for starting a job.
// Exactly one of ObjectKey/FetchURL and exactly one of Parts/IntervalSec
// must be set; the domain layer enforces both unions.
type StartJobRequest struct {
	// ObjectKey is the storage key of an uploaded source.
	ObjectKey string `json:"object_key,omitempty"`
	// FetchURL is a remote source URL.
	FetchURL string `json:"fetch_url,omitempty" validate:"omitempty,url"`
	// Parts is the target segment count.
	Parts int `json:"parts,omitempty" validate:"omitempty,min=2"`
	// IntervalSec is the target segment length in seconds.
	IntervalSec float64 `json:"interval_sec,omitempty" validate:"omitempty,gt=0"`
}

// StartJobResponse is the HTTP response after creating a job.
type StartJobResponse struct {
	// JobID is the unique identifier for the created job.
	JobID string `json:"job_id"`
	// StreamURL is where the caller consumes the progress stream. It can
	// be read exactly once.
	StreamURL string `json:"stream_url"`
}

// ResultRow is one artifact/title pair of a result table.
type ResultRow struct {
	File  string `json:"file"`
	Title string `json:"title"`
}

// ResultsResponse is the parsed latest result table.
type ResultsResponse struct {
	Rows []ResultRow `json:"rows"`
	// Message carries the marker-row text when a run produced no clips.
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
