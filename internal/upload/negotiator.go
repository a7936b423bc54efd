// Package upload negotiates how a client upload reaches object storage:
// a single presigned POST for small files, a presigned multipart session
// for large ones.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge-api/internal/storage"
)

// Static errors for upload negotiation.
var (
	// ErrNegotiationFailed is returned when a plan could not be issued.
	// No partial plan is ever returned alongside it.
	ErrNegotiationFailed = errors.New("upload: negotiation failed")
	// ErrSizeExceedsCap is returned when the declared size is over the
	// absolute hard cap.
	ErrSizeExceedsCap = errors.New("upload: declared size exceeds maximum")
)

// Protocol selects how the client must upload.
type Protocol string

const (
	// ProtocolSingle is one presigned POST request.
	ProtocolSingle Protocol = "single"
	// ProtocolMultipart is a chunked presigned multipart session.
	ProtocolMultipart Protocol = "multipart"
)

// Plan is the negotiated upload protocol for one object.
type Plan struct {
	Protocol  Protocol
	ObjectKey string

	// Single protocol
	Post *storage.PresignedPost

	// Multipart protocol
	UploadID       string
	ChunkSizeBytes int64
	ChunkURLs      []string
	CompleteURL    string
}

// Options bound the negotiator's decisions.
type Options struct {
	// SingleMaxBytes is the threshold above which multipart is used.
	SingleMaxBytes int64
	// ChunkSizeBytes is the multipart chunk size.
	ChunkSizeBytes int64
	// HardCapBytes is the absolute upload size limit, enforced both on the
	// declared size and inside the single-POST credential (a lying client
	// cannot exceed it either way).
	HardCapBytes int64
	// Expiry is how long issued URLs stay valid.
	Expiry time.Duration
	// KeyPrefix is prepended to generated object keys.
	KeyPrefix string
	// ContentTypePrefix constrains single-POST uploads.
	ContentTypePrefix string
}

// Negotiator decides the upload protocol from the declared size and issues
// scoped, expiring credentials through a storage.Presigner.
type Negotiator struct {
	presigner storage.Presigner
	opts      Options
	logger    *slog.Logger
}

// NewNegotiator creates a Negotiator. Zero option fields get defaults:
// 100 MiB single threshold, 8 MiB chunks, 5 GiB cap, 1 hour expiry,
// "full/" key prefix, "video/" content-type constraint.
func NewNegotiator(presigner storage.Presigner, opts Options, logger *slog.Logger) *Negotiator {
	if opts.SingleMaxBytes <= 0 {
		opts.SingleMaxBytes = 100 << 20
	}
	if opts.ChunkSizeBytes <= 0 {
		opts.ChunkSizeBytes = 8 << 20
	}
	if opts.HardCapBytes <= 0 {
		opts.HardCapBytes = 5 << 30
	}
	if opts.Expiry <= 0 {
		opts.Expiry = time.Hour
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "full/"
	}
	if opts.ContentTypePrefix == "" {
		opts.ContentTypePrefix = "video/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{presigner: presigner, opts: opts, logger: logger}
}

// Negotiate returns an upload plan for a client-declared filename and size.
// Both inputs are untrusted: the filename only contributes its extension to
// the generated key, and the size only selects the protocol and chunk count.
func (n *Negotiator) Negotiate(ctx context.Context, filename string, size int64) (*Plan, error) {
	if size < 0 || size > n.opts.HardCapBytes {
		return nil, fmt.Errorf("%w: %d bytes (cap %d)", ErrSizeExceedsCap, size, n.opts.HardCapBytes)
	}

	key := n.objectKey(filename)

	if size <= n.opts.SingleMaxBytes {
		post, err := n.presigner.PresignPost(ctx, key, n.opts.ContentTypePrefix, n.opts.HardCapBytes, n.opts.Expiry)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNegotiationFailed, err)
		}
		n.logger.Info("negotiated single upload",
			slog.String("key", key),
			slog.Int64("declared_size", size),
		)
		return &Plan{
			Protocol:  ProtocolSingle,
			ObjectKey: key,
			Post:      post,
		}, nil
	}

	chunks := int(math.Ceil(float64(size) / float64(n.opts.ChunkSizeBytes)))
	session, err := n.presigner.OpenMultipart(ctx, key, chunks, n.opts.Expiry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNegotiationFailed, err)
	}

	n.logger.Info("negotiated multipart upload",
		slog.String("key", key),
		slog.Int64("declared_size", size),
		slog.Int("chunks", chunks),
		slog.String("upload_id", session.UploadID),
	)
	return &Plan{
		Protocol:       ProtocolMultipart,
		ObjectKey:      key,
		UploadID:       session.UploadID,
		ChunkSizeBytes: n.opts.ChunkSizeBytes,
		ChunkURLs:      session.PartURLs,
		CompleteURL:    session.CompleteURL,
	}, nil
}

// objectKey builds an unguessable destination key: a random component plus
// the original extension. Keys are never reused across calls.
func (n *Negotiator) objectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" {
		ext = ".mp4"
	}
	return n.opts.KeyPrefix + uuid.NewString() + ext
}
