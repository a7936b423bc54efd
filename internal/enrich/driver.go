// Package enrich derives a per-segment title from transcribed audio,
// degrading to placeholders instead of failing the job.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/clipforge/clipforge-api/internal/media"
	"github.com/clipforge/clipforge-api/internal/segment"
)

// Placeholder titles. An artifact never yields a dropped row; whatever goes
// wrong per-artifact resolves to one of these.
const (
	// PlaceholderNoSpeech marks an empty transcript (not an error).
	PlaceholderNoSpeech = "(no speech detected)"
	// PlaceholderNoTitle marks a failed transcription or title call.
	PlaceholderNoTitle = "(title unavailable)"
)

// TitleRecord pairs one artifact with its title or placeholder.
type TitleRecord struct {
	ArtifactName string
	Title        string
}

// Driver runs the per-artifact enrichment: audio out, transcript, title.
type Driver struct {
	tools       media.Toolbox
	transcriber Transcriber
	titler      Titler
	tempDir     string
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewDriver creates a Driver. callTimeout bounds each remote call; zero
// defaults to two minutes.
func NewDriver(tools media.Toolbox, transcriber Transcriber, titler Titler, tempDir string, callTimeout time.Duration, logger *slog.Logger) *Driver {
	if callTimeout <= 0 {
		callTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		tools:       tools,
		transcriber: transcriber,
		titler:      titler,
		tempDir:     tempDir,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Enrich produces exactly one TitleRecord per artifact, in ordinal order.
// Per-artifact failures degrade to placeholders; the stage itself only
// fails if the context is cancelled. The onRecord callback, if non-nil,
// is invoked after each record.
func (d *Driver) Enrich(ctx context.Context, artifacts []segment.Artifact, onRecord func(r TitleRecord)) ([]TitleRecord, error) {
	records := make([]TitleRecord, 0, len(artifacts))
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return records, fmt.Errorf("enrich aborted: %w", err)
		}

		r := TitleRecord{
			ArtifactName: a.Name,
			Title:        d.titleFor(ctx, a),
		}
		records = append(records, r)
		if onRecord != nil {
			onRecord(r)
		}
	}
	return records, nil
}

// titleFor resolves one artifact to a title or placeholder. It never
// returns an error: degradation is the contract.
func (d *Driver) titleFor(ctx context.Context, a segment.Artifact) string {
	audioPath, err := d.extractAudio(ctx, a)
	if err != nil {
		d.logger.Warn("audio extraction failed",
			slog.String("artifact", a.Name),
			slog.String("error", err.Error()),
		)
		return PlaceholderNoTitle
	}
	// Temporary audio is always released, success or failure.
	defer func() { _ = os.Remove(audioPath) }()

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	transcript, err := d.transcriber.Transcribe(callCtx, audioPath)
	if err != nil {
		d.logger.Warn("transcription failed",
			slog.String("artifact", a.Name),
			slog.String("error", err.Error()),
		)
		return PlaceholderNoTitle
	}
	if transcript == "" {
		// No speech is a distinct, non-error condition.
		d.logger.Info("no speech detected",
			slog.String("artifact", a.Name),
		)
		return PlaceholderNoSpeech
	}

	titleCtx, cancelTitle := context.WithTimeout(ctx, d.callTimeout)
	defer cancelTitle()

	title, err := d.titler.Title(titleCtx, transcript)
	if err != nil || title == "" {
		if err != nil {
			d.logger.Warn("title generation failed",
				slog.String("artifact", a.Name),
				slog.String("error", err.Error()),
			)
		}
		return PlaceholderNoTitle
	}
	return title
}

// extractAudio writes the artifact's audio track as a mono low-bitrate ogg,
// synthesizing silence of matching duration when the track is absent so the
// transcription step always receives well-formed input.
func (d *Driver) extractAudio(ctx context.Context, a segment.Artifact) (string, error) {
	dst := filepath.Join(d.tempDir, fmt.Sprintf("audio_%03d.ogg", a.Ordinal))

	hasAudio, err := d.tools.HasAudioTrack(ctx, a.Path)
	if err != nil {
		return "", fmt.Errorf("probe audio track: %w", err)
	}

	if hasAudio {
		if err := d.tools.ExtractAudio(ctx, a.Path, dst); err != nil {
			return "", err
		}
		return dst, nil
	}

	duration := a.Duration
	if duration <= 0 {
		if duration, err = d.tools.Duration(ctx, a.Path); err != nil {
			return "", err
		}
	}
	if err := d.tools.SynthesizeSilence(ctx, duration, dst); err != nil {
		return "", err
	}
	return dst, nil
}
