package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipforge/clipforge-api/internal/media"
	"github.com/clipforge/clipforge-api/internal/storage"
)

// ErrExtractionFailed is returned when the extraction tool reports failure
// for a plan entry. Copy-mode extraction is deterministic for a given offset,
// so the cutter never retries.
var ErrExtractionFailed = errors.New("segment: extraction failed")

// Artifact is one physical segment produced from a plan entry.
type Artifact struct {
	// Ordinal matches the plan entry index and is authoritative for
	// downstream ordering regardless of filesystem order.
	Ordinal int
	// Name is the file name, derived from the source base name and the
	// 1-based ordinal.
	Name string
	// Path is the absolute location in the working directory.
	Path string
	// Duration is the planned segment length in seconds.
	Duration float64
}

// CutterOption configures a Cutter.
type CutterOption func(*Cutter)

// WithRelay makes the cutter forward each artifact to storage under the
// given key prefix after extraction.
func WithRelay(store storage.Storage, prefix string) CutterOption {
	return func(c *Cutter) {
		c.store = store
		c.relayPrefix = prefix
	}
}

// Cutter extracts planned segments from a source file, strictly in plan
// order.
type Cutter struct {
	tools       media.Toolbox
	outDir      string
	store       storage.Storage
	relayPrefix string
	logger      *slog.Logger
}

// NewCutter creates a Cutter writing artifacts into outDir.
func NewCutter(tools media.Toolbox, outDir string, logger *slog.Logger, opts ...CutterOption) *Cutter {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cutter{
		tools:  tools,
		outDir: outDir,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OutDir returns the working directory artifacts are written to.
func (c *Cutter) OutDir() string {
	return c.outDir
}

// Purge removes all artifacts from the working directory so a run never
// observes stale segments from an earlier one.
func (c *Cutter) Purge() error {
	if err := os.RemoveAll(c.outDir); err != nil {
		return fmt.Errorf("purge clips dir: %w", err)
	}
	if err := os.MkdirAll(c.outDir, 0750); err != nil {
		return fmt.Errorf("recreate clips dir: %w", err)
	}
	return nil
}

// Cut extracts every plan entry from src. Artifact names are derived purely
// from the source base name and the 1-based ordinal, so re-running the same
// plan against the same source overwrites the previous run's artifacts.
// The first extraction failure aborts the remaining entries.
// The onEntry callback, if non-nil, is invoked after each successful entry.
func (c *Cutter) Cut(ctx context.Context, src string, plan []Entry, onEntry func(a Artifact)) ([]Artifact, error) {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	ext := filepath.Ext(src)
	if ext == "" {
		ext = ".mp4"
	}

	artifacts := make([]Artifact, 0, len(plan))
	for _, entry := range plan {
		if err := ctx.Err(); err != nil {
			return artifacts, fmt.Errorf("cut aborted: %w", err)
		}

		name := ArtifactName(base, entry.Index, ext)
		dst := filepath.Join(c.outDir, name)

		if err := c.tools.CutCopy(ctx, src, entry.Start, entry.Duration, dst); err != nil {
			return artifacts, fmt.Errorf("%w: entry %d: %w", ErrExtractionFailed, entry.Index, err)
		}

		a := Artifact{
			Ordinal:  entry.Index,
			Name:     name,
			Path:     dst,
			Duration: entry.Duration,
		}
		artifacts = append(artifacts, a)

		c.logger.Debug("segment extracted",
			slog.Int("ordinal", a.Ordinal),
			slog.String("name", a.Name),
		)

		if c.store != nil {
			if err := c.relay(ctx, a); err != nil {
				return artifacts, err
			}
		}
		if onEntry != nil {
			onEntry(a)
		}
	}
	return artifacts, nil
}

// relay forwards one artifact to durable storage.
func (c *Cutter) relay(ctx context.Context, a Artifact) error {
	f, err := os.Open(a.Path) // #nosec G304 - path built from our own naming scheme
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", a.Name, err)
	}
	defer func() { _ = f.Close() }()

	key := c.relayPrefix + a.Name
	if err := c.store.Put(ctx, key, f); err != nil {
		return fmt.Errorf("relay artifact %s: %w", a.Name, err)
	}
	return nil
}

// ArtifactName derives the canonical artifact file name from a source base
// name, a 0-based plan index and the source extension.
func ArtifactName(base string, index int, ext string) string {
	return fmt.Sprintf("%s_part%d%s", base, index+1, ext)
}
