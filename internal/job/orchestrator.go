package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/clipforge/clipforge-api/internal/enrich"
	"github.com/clipforge/clipforge-api/internal/media"
	"github.com/clipforge/clipforge-api/internal/progress"
	"github.com/clipforge/clipforge-api/internal/segment"
	"github.com/clipforge/clipforge-api/internal/storage"
)

// ErrSourceUnavailable is returned when the uploaded object or fetch URL
// cannot be turned into a local source file.
var ErrSourceUnavailable = errors.New("job: source unavailable")

// SourceFetcher downloads a remote URL into dstDir, relaying tool output.
type SourceFetcher interface {
	Fetch(ctx context.Context, url, dstDir string, onLine func(string)) (string, error)
}

// Cutter extracts planned segments into its working directory.
type Cutter interface {
	OutDir() string
	Purge() error
	Cut(ctx context.Context, src string, plan []segment.Entry, onEntry func(segment.Artifact)) ([]segment.Artifact, error)
}

// Enricher produces one title record per artifact.
type Enricher interface {
	Enrich(ctx context.Context, artifacts []segment.Artifact, onRecord func(enrich.TitleRecord)) ([]enrich.TitleRecord, error)
}

// ResultWriter persists a run's records keyed by its timestamp.
type ResultWriter interface {
	Write(records []enrich.TitleRecord, at time.Time) (string, error)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithKeepClips controls whether artifacts are retained after enrichment.
func WithKeepClips(keep bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.keepClips = keep
	}
}

// Orchestrator owns one job's lifetime: acquire source, plan and cut,
// then enrich, strictly in that order, emitting to the job's progress stream.
type Orchestrator struct {
	store     storage.Storage
	fetcher   SourceFetcher
	tools     media.Toolbox
	cutter    Cutter
	enricher  Enricher
	results   ResultWriter
	tempDir   string
	keepClips bool
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	store storage.Storage,
	fetcher SourceFetcher,
	tools media.Toolbox,
	cutter Cutter,
	enricher Enricher,
	results ResultWriter,
	tempDir string,
	logger *slog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:     store,
		fetcher:   fetcher,
		tools:     tools,
		cutter:    cutter,
		enricher:  enricher,
		results:   results,
		tempDir:   tempDir,
		keepClips: true,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the job to a terminal state and closes the stream's producer
// side. It is the single thread of control for the job: the stream consumer
// runs concurrently and is the only other party involved.
//
// If the consumer cancels the stream mid-run, in-flight external processes
// are interrupted, temp files are removed, and no terminal line is emitted
// (there is no one left to read it).
func (o *Orchestrator) Run(ctx context.Context, j *Job, stream *progress.Stream) {
	defer stream.CloseSend()

	// A departed consumer interrupts blocking work between sends.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stream.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := j.Start(); err != nil {
		o.logger.Error("job start rejected",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	o.logger.Info("job started",
		slog.String("job_id", j.ID),
		slog.String("source", j.Source.String()),
		slog.String("partition", j.Partition.String()),
	)

	err := o.runStages(ctx, j, stream)
	switch {
	case err == nil:
		_ = j.Succeed()
		_ = stream.Send(ctx, progress.SuccessMarker)
		o.logger.Info("job succeeded", slog.String("job_id", j.ID))
	case o.cancelled(err, stream):
		_ = j.Fail("cancelled: " + err.Error())
		o.logger.Warn("job cancelled", slog.String("job_id", j.ID))
	default:
		_ = j.Fail(err.Error())
		_ = stream.Send(ctx, progress.FailurePrefix+err.Error())
		o.logger.Error("job failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}

// cancelled distinguishes a departed consumer from a real failure.
func (o *Orchestrator) cancelled(err error, stream *progress.Stream) bool {
	return errors.Is(err, progress.ErrConsumerGone) ||
		(errors.Is(err, context.Canceled) && stream.Cancelled())
}

// runStages executes the micro-stages strictly in order, returning the
// first failure.
func (o *Orchestrator) runStages(ctx context.Context, j *Job, stream *progress.Stream) error {
	// Stage 1: acquire source.
	if err := stream.Stage(ctx, "acquire source"); err != nil {
		return err
	}
	src, err := o.acquire(ctx, j, stream)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(src) }()
	if err := stream.Send(ctx, "source ready"); err != nil {
		return err
	}

	// Stage 2: plan and cut.
	if err := stream.Stage(ctx, fmt.Sprintf("split into %s", j.Partition.String())); err != nil {
		return err
	}
	artifacts, err := o.planAndCut(ctx, j, src, stream)
	if err != nil {
		return err
	}

	// Stage 3: enrich.
	if err := stream.Stage(ctx, "generate titles"); err != nil {
		return err
	}
	return o.enrichAll(ctx, artifacts, stream)
}

// acquire turns the job's source into a local file path.
func (o *Orchestrator) acquire(ctx context.Context, j *Job, stream *progress.Stream) (string, error) {
	if j.Source.UploadedKey != "" {
		if err := stream.Sendf(ctx, "downloading %s from storage", j.Source.UploadedKey); err != nil {
			return "", err
		}
		path, err := o.store.Fetch(ctx, j.Source.UploadedKey, o.tempDir)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		return path, nil
	}

	if err := stream.Sendf(ctx, "fetching %s", j.Source.FetchURL); err != nil {
		return "", err
	}
	path, err := o.fetcher.Fetch(ctx, j.Source.FetchURL, o.tempDir, func(line string) {
		_ = stream.Send(ctx, "  "+line)
	})
	if err != nil {
		if stream.Cancelled() {
			return "", progress.ErrConsumerGone
		}
		return "", fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return path, nil
}

// planAndCut probes the duration, plans the boundaries, purges stale
// artifacts and extracts every segment, timing the whole stage.
func (o *Orchestrator) planAndCut(ctx context.Context, j *Job, src string, stream *progress.Stream) ([]segment.Artifact, error) {
	total, err := o.tools.Duration(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", segment.ErrDurationUnknown, err)
	}

	plan, err := segment.Plan(total, j.Partition)
	if err != nil {
		return nil, err
	}
	if err := stream.Sendf(ctx, "%.2f min of video, %d segments planned", total/60, len(plan)); err != nil {
		return nil, err
	}

	// Never let a run observe stale segments from an earlier one.
	if err := o.cutter.Purge(); err != nil {
		return nil, err
	}

	start := time.Now()
	artifacts, err := o.cutter.Cut(ctx, src, plan, func(a segment.Artifact) {
		_ = stream.Sendf(ctx, "  part %d -> %s", a.Ordinal+1, a.Name)
	})
	if err != nil {
		if stream.Cancelled() {
			return nil, progress.ErrConsumerGone
		}
		return nil, err
	}
	if err := stream.Sendf(ctx, "cut finished in %.1fs", time.Since(start).Seconds()); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// enrichAll produces the title records, persists the result table and
// applies the retention policy, timing the whole stage.
func (o *Orchestrator) enrichAll(ctx context.Context, artifacts []segment.Artifact, stream *progress.Stream) error {
	start := time.Now()
	records, err := o.enricher.Enrich(ctx, artifacts, func(r enrich.TitleRecord) {
		_ = stream.Sendf(ctx, "  %s: %s", r.ArtifactName, r.Title)
	})
	if err != nil {
		if stream.Cancelled() {
			return progress.ErrConsumerGone
		}
		return err
	}

	path, err := o.results.Write(records, time.Now())
	if err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	o.logger.Info("result table written", slog.String("path", path))

	if !o.keepClips {
		for _, a := range artifacts {
			_ = os.Remove(a.Path)
		}
	}

	return stream.Sendf(ctx, "titles finished in %.1fs", time.Since(start).Seconds())
}
