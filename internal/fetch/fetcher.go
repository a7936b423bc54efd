// Package fetch downloads a source video from a URL into the working
// directory using yt-dlp.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge-api/internal/runner"
)

// ErrFetchFailed is returned when the download tool could not produce
// a merged output file.
var ErrFetchFailed = errors.New("fetch: download failed")

// bestMP4 selects best video-only plus best audio-only, falling back to the
// best combined mp4.
const bestMP4 = "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]"

// Fetcher drives yt-dlp through the runner port.
type Fetcher struct {
	ytdlpPath  string
	ffmpegPath string
	run        runner.Runner
}

// NewFetcher creates a Fetcher. Empty tool paths default to PATH lookups.
func NewFetcher(ytdlpPath, ffmpegPath string, run runner.Runner) *Fetcher {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if run == nil {
		run = runner.NewExecRunner()
	}
	return &Fetcher{ytdlpPath: ytdlpPath, ffmpegPath: ffmpegPath, run: run}
}

// Fetch downloads the highest-quality rendition of url into dstDir, remuxed
// to mp4 without re-encoding, and returns the file path. The onLine
// callback, if non-nil, receives the tool's output lines as they appear.
func (f *Fetcher) Fetch(ctx context.Context, url, dstDir string, onLine func(string)) (string, error) {
	if onLine == nil {
		onLine = func(string) {}
	}

	// A random stem keeps concurrent jobs from clobbering each other's
	// downloads; the extension is fixed by the remux.
	out := filepath.Join(dstDir, "fetch_"+uuid.NewString()+".%(ext)s")

	err := f.run.Stream(ctx, onLine, f.ytdlpPath,
		"-f", bestMP4,
		"--remux-video", "mp4",
		"--ffmpeg-location", f.ffmpegPath,
		"-o", out,
		url,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	path := filepath.Join(dstDir, filepath.Base(out[:len(out)-len(".%(ext)s")])+".mp4")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: expected output %s missing", ErrFetchFailed, filepath.Base(path))
	}
	return path, nil
}
