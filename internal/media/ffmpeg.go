package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/clipforge/clipforge-api/internal/runner"
)

// Static errors for media operations.
var (
	// ErrDurationUnavailable is returned when ffprobe reports no usable duration.
	ErrDurationUnavailable = errors.New("media: duration unavailable")
	// ErrInvalidRange is returned when a cut range is not positive.
	ErrInvalidRange = errors.New("media: invalid cut range")
)

// FFmpeg drives ffmpeg and ffprobe through a runner.Runner.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	run         runner.Runner
}

// NewFFmpeg creates a new FFmpeg toolbox.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
// The ffprobe binary is resolved as a sibling of a file-path ffmpeg,
// falling back to "ffprobe" on PATH.
func NewFFmpeg(ffmpegPath string, run runner.Runner) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if run == nil {
		run = runner.NewExecRunner()
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: probePath(ffmpegPath),
		run:         run,
	}
}

// probePath derives the ffprobe binary from the configured ffmpeg binary.
func probePath(ffmpegPath string) string {
	if info, err := os.Stat(ffmpegPath); err == nil && !info.IsDir() {
		ext := ""
		if strings.EqualFold(filepath.Ext(ffmpegPath), ".exe") {
			ext = ".exe"
		}
		sibling := filepath.Join(filepath.Dir(ffmpegPath), "ffprobe"+ext)
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	return "ffprobe"
}

// Duration returns the duration in seconds of a media file using ffprobe.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	out, err := f.run.Run(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrDurationUnavailable, strings.TrimSpace(string(out)))
	}
	if d <= 0 {
		return 0, ErrDurationUnavailable
	}
	return d, nil
}

// HasAudioTrack reports whether the file contains at least one audio stream.
func (f *FFmpeg) HasAudioTrack(ctx context.Context, path string) (bool, error) {
	out, err := f.run.Run(ctx, f.ffprobePath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return false, fmt.Errorf("probe audio streams: %w", err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// CutCopy extracts [start, start+duration) from src into dst without
// re-encoding. Timestamps are rebased to zero so players accept the slice.
func (f *FFmpeg) CutCopy(ctx context.Context, src string, start, duration float64, dst string) error {
	if duration <= 0 {
		return fmt.Errorf("%w: start=%.3f duration=%.3f", ErrInvalidRange, start, duration)
	}

	_, err := f.run.Run(ctx, f.ffmpegPath,
		"-ss", formatSeconds(start),
		"-to", formatSeconds(start+duration),
		"-i", src,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y", dst,
	)
	if err != nil {
		return fmt.Errorf("cut %s: %w", filepath.Base(dst), err)
	}
	return nil
}

// ExtractAudio writes a normalized mono 16 kHz 32 kbps audio stream from src
// into dst. The dst extension selects the container (e.g. ".ogg").
func (f *FFmpeg) ExtractAudio(ctx context.Context, src, dst string) error {
	_, err := f.run.Run(ctx, f.ffmpegPath,
		"-loglevel", "error",
		"-i", src,
		"-vn", "-ac", "1", "-ar", "16000", "-b:a", "32k",
		"-y", dst,
	)
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

// SynthesizeSilence writes a silent mono 16 kHz audio stream of the given
// duration into dst. Used when a clip carries no audio track, so the
// transcription step always receives well-formed input.
func (f *FFmpeg) SynthesizeSilence(ctx context.Context, duration float64, dst string) error {
	if duration <= 0 {
		return fmt.Errorf("%w: duration=%.3f", ErrInvalidRange, duration)
	}

	_, err := f.run.Run(ctx, f.ffmpegPath,
		"-loglevel", "error",
		"-f", "lavfi",
		"-t", formatSeconds(duration),
		"-i", "anullsrc=r=16000:cl=mono",
		"-b:a", "32k",
		"-y", dst,
	)
	if err != nil {
		return fmt.Errorf("synthesize silence: %w", err)
	}
	return nil
}

// formatSeconds renders a seconds value the way ffmpeg expects, without
// exponent notation and without trailing noise.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
