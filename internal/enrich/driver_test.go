package enrich

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/clipforge/clipforge-api/internal/segment"
)

// stubToolbox fabricates audio files and records what was asked of it.
type stubToolbox struct {
	hasAudio    bool
	probeErr    error
	extractErr  error
	synthesized []float64
	extracted   []string
}

func (s *stubToolbox) Duration(context.Context, string) (float64, error) { return 42, nil }

func (s *stubToolbox) HasAudioTrack(context.Context, string) (bool, error) {
	return s.hasAudio, s.probeErr
}

func (s *stubToolbox) CutCopy(context.Context, string, float64, float64, string) error { return nil }

func (s *stubToolbox) ExtractAudio(_ context.Context, src, dst string) error {
	if s.extractErr != nil {
		return s.extractErr
	}
	s.extracted = append(s.extracted, src)
	return os.WriteFile(dst, []byte("audio"), 0600)
}

func (s *stubToolbox) SynthesizeSilence(_ context.Context, duration float64, dst string) error {
	s.synthesized = append(s.synthesized, duration)
	return os.WriteFile(dst, []byte("silence"), 0600)
}

type stubTranscriber struct {
	transcripts map[string]string // keyed by audio file base name
	err         error
	calls       []string
}

func (s *stubTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	s.calls = append(s.calls, audioPath)
	if s.err != nil {
		return "", s.err
	}
	return s.transcripts[filepath.Base(audioPath)], nil
}

type stubTitler struct {
	title string
	err   error
	calls []string
}

func (s *stubTitler) Title(_ context.Context, transcript string) (string, error) {
	s.calls = append(s.calls, transcript)
	return s.title, s.err
}

func artifactsFor(t *testing.T, n int) []segment.Artifact {
	t.Helper()
	dir := t.TempDir()
	out := make([]segment.Artifact, n)
	for i := range out {
		name := fmt.Sprintf("v_part%d.mp4", i+1)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("clip"), 0600); err != nil {
			t.Fatal(err)
		}
		out[i] = segment.Artifact{Ordinal: i, Name: name, Path: path, Duration: 10}
	}
	return out
}

func TestDriver_OneRecordPerArtifact(t *testing.T) {
	tools := &stubToolbox{hasAudio: true}
	tr := &stubTranscriber{transcripts: map[string]string{
		"audio_000.ogg": "hello world",
		"audio_001.ogg": "second clip",
		"audio_002.ogg": "third clip",
	}}
	ti := &stubTitler{title: "Great Moments"}
	d := NewDriver(tools, tr, ti, t.TempDir(), 0, nil)

	artifacts := artifactsFor(t, 3)
	var seen []TitleRecord
	records, err := d.Enrich(context.Background(), artifacts, func(r TitleRecord) {
		seen = append(seen, r)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != len(artifacts) {
		t.Fatalf("expected %d records, got %d", len(artifacts), len(records))
	}
	for i, r := range records {
		if r.ArtifactName != artifacts[i].Name {
			t.Errorf("record %d names %q, want %q", i, r.ArtifactName, artifacts[i].Name)
		}
		if r.Title != "Great Moments" {
			t.Errorf("record %d title %q", i, r.Title)
		}
	}
	if len(seen) != len(records) {
		t.Errorf("onRecord saw %d records, want %d", len(seen), len(records))
	}
}

func TestDriver_EmptyInputYieldsEmptyRecords(t *testing.T) {
	d := NewDriver(&stubToolbox{}, &stubTranscriber{}, &stubTitler{}, t.TempDir(), 0, nil)
	records, err := d.Enrich(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestDriver_NoSpeechPlaceholder(t *testing.T) {
	tools := &stubToolbox{hasAudio: true}
	tr := &stubTranscriber{} // empty transcript for everything
	ti := &stubTitler{title: "never used"}
	d := NewDriver(tools, tr, ti, t.TempDir(), 0, nil)

	records, err := d.Enrich(context.Background(), artifactsFor(t, 1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Title != PlaceholderNoSpeech {
		t.Errorf("got %q, want %q", records[0].Title, PlaceholderNoSpeech)
	}
	if len(ti.calls) != 0 {
		t.Error("titler was called for an empty transcript")
	}
}

func TestDriver_DegradesToPlaceholder(t *testing.T) {
	tests := []struct {
		name  string
		tools *stubToolbox
		tr    *stubTranscriber
		ti    *stubTitler
	}{
		{
			name:  "audio probe fails",
			tools: &stubToolbox{probeErr: errors.New("probe broke")},
			tr:    &stubTranscriber{},
			ti:    &stubTitler{},
		},
		{
			name:  "audio extraction fails",
			tools: &stubToolbox{hasAudio: true, extractErr: errors.New("ffmpeg broke")},
			tr:    &stubTranscriber{},
			ti:    &stubTitler{},
		},
		{
			name:  "transcription fails",
			tools: &stubToolbox{hasAudio: true},
			tr:    &stubTranscriber{err: errors.New("api down")},
			ti:    &stubTitler{},
		},
		{
			name:  "title call fails",
			tools: &stubToolbox{hasAudio: true},
			tr:    &stubTranscriber{transcripts: map[string]string{"audio_000.ogg": "words"}},
			ti:    &stubTitler{err: errors.New("api down")},
		},
		{
			name:  "title comes back empty",
			tools: &stubToolbox{hasAudio: true},
			tr:    &stubTranscriber{transcripts: map[string]string{"audio_000.ogg": "words"}},
			ti:    &stubTitler{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDriver(tc.tools, tc.tr, tc.ti, t.TempDir(), 0, nil)
			records, err := d.Enrich(context.Background(), artifactsFor(t, 1), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if records[0].Title != PlaceholderNoTitle {
				t.Errorf("got %q, want %q", records[0].Title, PlaceholderNoTitle)
			}
		})
	}
}

func TestDriver_SilentClipGetsSynthesizedAudio(t *testing.T) {
	tools := &stubToolbox{hasAudio: false}
	tr := &stubTranscriber{}
	d := NewDriver(tools, tr, &stubTitler{}, t.TempDir(), 0, nil)

	records, err := d.Enrich(context.Background(), artifactsFor(t, 1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools.synthesized) != 1 || tools.synthesized[0] != 10 {
		t.Errorf("expected silence synthesized for 10s, got %v", tools.synthesized)
	}
	if records[0].Title != PlaceholderNoSpeech {
		t.Errorf("got %q, want %q", records[0].Title, PlaceholderNoSpeech)
	}
}

func TestDriver_RemovesTempAudio(t *testing.T) {
	tmp := t.TempDir()
	tools := &stubToolbox{hasAudio: true}
	tr := &stubTranscriber{transcripts: map[string]string{"audio_000.ogg": "words"}}
	d := NewDriver(tools, tr, &stubTitler{title: "A Title"}, tmp, 0, nil)

	if _, err := d.Enrich(context.Background(), artifactsFor(t, 1), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp audio files left behind: %v", entries)
	}
}

func TestDriver_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDriver(&stubToolbox{hasAudio: true}, &stubTranscriber{}, &stubTitler{}, t.TempDir(), 0, nil)
	_, err := d.Enrich(ctx, artifactsFor(t, 2), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
