package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorage_PutAndFetch(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Put(context.Background(), "full/abc.mp4", strings.NewReader("video-bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	dstDir := t.TempDir()
	path, err := store.Fetch(context.Background(), "full/abc.mp4", dstDir)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if filepath.Dir(path) != dstDir {
		t.Errorf("fetched file outside dstDir: %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "video-bytes" {
		t.Errorf("content mismatch: %q", raw)
	}
}

func TestLocalStorage_FetchUnknownKey(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = store.Fetch(context.Background(), "full/missing.mp4", t.TempDir())
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_PutOverwrites(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Put(ctx, "full/v.mp4", strings.NewReader("first")); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "full/v.mp4", strings.NewReader("second")); err != nil {
		t.Fatal(err)
	}

	path, err := store.Fetch(ctx, "full/v.mp4", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "second" {
		t.Errorf("expected the overwritten content, got %q", raw)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, "full/v.mp4", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Put: expected context.Canceled, got %v", err)
	}
	if _, err := store.Fetch(ctx, "full/v.mp4", t.TempDir()); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch: expected context.Canceled, got %v", err)
	}
}
