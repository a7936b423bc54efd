// Package storage provides durable object storage for source videos and
// segment artifacts, plus the presigning operations used by upload
// negotiation. S3 is the production backend; LocalStorage backs tests and
// single-host deployments.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines object put/fetch against durable storage.
type Storage interface {
	// Put stores an object under key.
	Put(ctx context.Context, key string, data io.Reader) error

	// Fetch downloads the object at key into a new file under dstDir and
	// returns the file path. Returns ErrObjectNotFound when the key does
	// not exist.
	Fetch(ctx context.Context, key, dstDir string) (path string, err error)
}

// PresignedPost is a one-time credential set for a single-request browser
// upload: an expiring URL plus the form fields that must accompany the file.
type PresignedPost struct {
	URL    string
	Fields map[string]string
}

// MultipartSession is an opened storage-side multipart upload with one
// expiring PUT URL per part and one expiring URL that finalizes the session.
type MultipartSession struct {
	UploadID    string
	PartURLs    []string
	CompleteURL string
}

// Presigner issues time-limited, scoped upload credentials.
type Presigner interface {
	// PresignPost issues a single-request upload credential for key,
	// constrained to the given content-type prefix and byte cap.
	PresignPost(ctx context.Context, key, contentTypePrefix string, maxBytes int64, expiry time.Duration) (*PresignedPost, error)

	// OpenMultipart opens a storage-side multipart session for key and
	// pre-issues parts PUT URLs plus a complete URL. Implementations may
	// prefer an accelerated network path and must fall back transparently
	// when it is unavailable.
	OpenMultipart(ctx context.Context, key string, parts int, expiry time.Duration) (*MultipartSession, error)
}
