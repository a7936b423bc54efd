// Package media provides probing and loss-less editing of audio/video files.
package media

import "context"

// Toolbox defines the media capabilities the pipeline depends on.
// Implementations should use ffmpeg or similar tools.
type Toolbox interface {
	// Duration returns the duration in seconds of a media file.
	Duration(ctx context.Context, path string) (float64, error)

	// HasAudioTrack reports whether the file contains an audio stream.
	HasAudioTrack(ctx context.Context, path string) (bool, error)

	// CutCopy extracts [start, start+duration) from src into dst without
	// re-encoding.
	CutCopy(ctx context.Context, src string, start, duration float64, dst string) error

	// ExtractAudio writes a normalized mono low-bitrate audio stream
	// from src into dst.
	ExtractAudio(ctx context.Context, src, dst string) error

	// SynthesizeSilence writes silent audio of the given duration into dst.
	SynthesizeSilence(ctx context.Context, duration float64, dst string) error
}

// Compile-time check that FFmpeg implements Toolbox.
var _ Toolbox = (*FFmpeg)(nil)
