// Package bootstrap provides dependency initialization for the clipforge API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/clipforge/clipforge-api/internal/config"
	"github.com/clipforge/clipforge-api/internal/enrich"
	"github.com/clipforge/clipforge-api/internal/fetch"
	"github.com/clipforge/clipforge-api/internal/job"
	"github.com/clipforge/clipforge-api/internal/media"
	"github.com/clipforge/clipforge-api/internal/runner"
	"github.com/clipforge/clipforge-api/internal/segment"
	"github.com/clipforge/clipforge-api/internal/storage"
	"github.com/clipforge/clipforge-api/internal/upload"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Negotiator   *upload.Negotiator
	Registry     job.Registry
	Orchestrator *job.Orchestrator
	Results      *enrich.ResultStore
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if err := os.MkdirAll(cfg.TempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	// Storage and upload negotiation
	store, err := storage.NewS3Storage(ctx, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		Accelerate:      cfg.S3Accelerate,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}

	negotiator := upload.NewNegotiator(store, upload.Options{
		SingleMaxBytes: cfg.SingleUploadMaxBytes,
		ChunkSizeBytes: cfg.UploadChunkSizeBytes,
		HardCapBytes:   cfg.MaxUploadBytes,
		Expiry:         time.Duration(cfg.PresignExpirySec) * time.Second,
	}, logger)

	// External tools behind the runner port
	run := runner.NewExecRunner()
	tools := media.NewFFmpeg(cfg.FFmpegPath, run)
	fetcher := fetch.NewFetcher(cfg.YtDlpPath, cfg.FFmpegPath, run)

	// Segment cutter
	var cutterOpts []segment.CutterOption
	if cfg.RelayClipsToS3 {
		cutterOpts = append(cutterOpts, segment.WithRelay(store, "clips/"))
	}
	cutter := segment.NewCutter(tools, cfg.ClipsDir, logger, cutterOpts...)

	// Enrichment
	openAI, err := enrich.NewOpenAIClient(cfg.OpenAIAPIKey,
		enrich.WithModels(cfg.TranscribeModel, cfg.TitleModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}
	driver := enrich.NewDriver(tools, openAI, openAI, cfg.TempDir,
		time.Duration(cfg.EnrichTimeoutSec)*time.Second, logger)

	results, err := enrich.NewResultStore(cfg.ResultsDir)
	if err != nil {
		return nil, fmt.Errorf("create result store: %w", err)
	}

	orchestrator := job.NewOrchestrator(
		store, fetcher, tools, cutter, driver, results,
		cfg.TempDir, logger,
		job.WithKeepClips(cfg.KeepClips),
	)

	return &Dependencies{
		Negotiator:   negotiator,
		Registry:     job.NewMemoryRegistry(),
		Orchestrator: orchestrator,
		Results:      results,
	}, nil
}
