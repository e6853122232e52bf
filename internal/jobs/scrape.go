package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/fetcher"
	"github.com/khlemanenka99-ai/news-portal/internal/observability"
	"github.com/khlemanenka99-ai/news-portal/internal/parser"
	"github.com/khlemanenka99-ai/news-portal/internal/pipeline"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// errCandidateDropped marks a candidate the pipeline refused.
var errCandidateDropped = errors.New("candidate dropped by pipeline")

// SourceFailure is one source that produced no article.
type SourceFailure struct {
	URL      string
	Category int
	Stage    string
	Err      error
}

// BatchError reports the sources that failed in one scrape run.
type BatchError struct {
	Failures  []SourceFailure
	Succeeded int
	Total     int
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s [%s]: %v", f.URL, f.Stage, f.Err))
	}
	return fmt.Sprintf("%d of %d sources failed: %s", len(e.Failures), e.Total, strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Partial reports whether at least one source succeeded.
func (e *BatchError) Partial() bool { return e.Succeeded > 0 }

// NewsScrape visits every source, extracts its newest article and
// reconciles it into the store.
type NewsScrape struct {
	loader     fetcher.PageLoader
	extractor  *parser.Extractor
	pipeline   *pipeline.Pipeline
	reconciler Reconciler
	sources    []config.SourceConfig
	ready      string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func NewNewsScrape(
	loader fetcher.PageLoader,
	extractor *parser.Extractor,
	p *pipeline.Pipeline,
	reconciler Reconciler,
	cfg config.ScraperConfig,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *NewsScrape {
	return &NewsScrape{
		loader:     loader,
		extractor:  extractor,
		pipeline:   p,
		reconciler: reconciler,
		sources:    cfg.Sources,
		ready:      cfg.Selectors.Ready,
		metrics:    metrics,
		logger:     logger.With("component", "news_scrape", "job", NameNews),
	}
}

func (j *NewsScrape) Name() string { return NameNews }

// Run visits the sources in order. A failing source is logged and
// skipped; if any failed, Run returns a *BatchError so the invocation is
// retried.
func (j *NewsScrape) Run(ctx context.Context) error {
	var batch BatchError
	batch.Total = len(j.sources)

	for _, src := range j.sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := j.scrapeSource(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stage := failureStage(err)
			j.metrics.ObserveExtractionFailure(stage)
			j.logger.Warn("source failed",
				"source", src.URL,
				"category", src.Category,
				"stage", stage,
				"error", err,
			)
			batch.Failures = append(batch.Failures, SourceFailure{URL: src.URL, Category: src.Category, Stage: stage, Err: err})
			continue
		}

		batch.Succeeded++
		j.logger.Debug("source done", "source", src.URL, "outcome", outcome)
	}

	if len(batch.Failures) > 0 {
		if batch.Partial() {
			j.logger.Warn("scrape partially succeeded", "succeeded", batch.Succeeded, "failed", len(batch.Failures))
		}
		return &batch
	}
	j.logger.Info("scrape complete", "sources", batch.Total)
	return nil
}

// scrapeSource handles one source with its own page, closed on return.
func (j *NewsScrape) scrapeSource(ctx context.Context, src config.SourceConfig) (types.UpsertOutcome, error) {
	page, err := j.loader.Open(ctx, src.URL, j.ready)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			j.logger.Debug("page close failed", "source", src.URL, "error", cerr)
		}
	}()

	candidate, err := j.extractor.Extract(ctx, page, src.Category)
	if err != nil {
		return "", err
	}

	candidate, err = j.pipeline.Process(candidate)
	if err != nil {
		return "", err
	}
	if candidate == nil {
		return "", &types.PipelineError{Stage: "drop", Err: errCandidateDropped}
	}

	return j.reconciler.Reconcile(ctx, candidate, src.Category)
}

func failureStage(err error) string {
	var (
		ee *types.ExtractionError
		fe *types.FetchError
		se *types.StorageError
		pe *types.PipelineError
	)
	switch {
	case errors.As(err, &ee):
		return ee.Stage
	case errors.As(err, &fe):
		return "fetch"
	case errors.As(err, &se):
		return "store"
	case errors.As(err, &pe):
		return "pipeline"
	default:
		return "unknown"
	}
}
