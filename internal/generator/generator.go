package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/postersnap/postersnap/internal/content"
	"github.com/postersnap/postersnap/internal/logging"
	"github.com/postersnap/postersnap/internal/metrics"
	"github.com/postersnap/postersnap/internal/quota"
	"github.com/postersnap/postersnap/internal/store"
	"github.com/postersnap/postersnap/internal/tracing"
	"github.com/postersnap/postersnap/pkg/models"
)

// ErrValidation marks a malformed submit request. The API layer maps it to a
// 400 response.
var ErrValidation = errors.New("invalid request")

// Synthesizer produces poster copy for one page.
type Synthesizer interface {
	Synthesize(ctx context.Context, params content.Params) (*models.PosterContent, error)
}

// Renderer turns content into one page artifact reference.
type Renderer interface {
	RenderPage(ctx context.Context, posterID string, page int, c *models.PosterContent, style models.PosterStyle, format models.OutputFormat) (string, error)
}

// MetadataExtractor fetches metadata for URL-mode submissions.
type MetadataExtractor interface {
	Extract(ctx context.Context, url string) (*models.Metadata, error)
}

// Dispatcher hands an accepted job off for background processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, posterID string) error
}

// SubmitRequest is a poster generation request after transport decoding.
type SubmitRequest struct {
	SessionID    string
	InputMode    models.InputMode
	InputValue   string
	Style        models.PosterStyle
	ContentType  models.ContentType
	OutputFormat models.OutputFormat
	MinPages     int
	MaxPages     int
}

// Options tunes generator behavior.
type Options struct {
	JobTimeout       time.Duration
	MaxParallelPages int
}

// Generator orchestrates the poster pipeline: admission, job creation,
// dispatch, then background synthesis and rendering.
type Generator struct {
	store      store.Store
	quota      *quota.Checker
	synth      Synthesizer
	renderer   Renderer
	extractor  MetadataExtractor
	dispatcher Dispatcher
	logger     *logging.Logger
	opts       Options

	// Page count randomness is injectable so tests can pin outcomes.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a generator. rng may be nil, in which case a time-seeded
// source is used.
func New(st store.Store, qc *quota.Checker, synth Synthesizer, renderer Renderer, extractor MetadataExtractor, dispatcher Dispatcher, logger *logging.Logger, opts Options, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 2 * time.Minute
	}
	if opts.MaxParallelPages < 1 {
		opts.MaxParallelPages = 1
	}
	return &Generator{
		store:      st,
		quota:      qc,
		synth:      synth,
		renderer:   renderer,
		extractor:  extractor,
		dispatcher: dispatcher,
		logger:     logger,
		opts:       opts,
		rng:        rng,
	}
}

// Submit validates and admits a generation request, creates the job record
// and dispatches it for background processing. The returned poster is in the
// processing state; callers poll for completion.
func (g *Generator) Submit(ctx context.Context, identity *models.Identity, req SubmitRequest) (*models.Poster, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	if err := g.quota.Allow(ctx, identity, req.SessionID, req.MinPages); err != nil {
		return nil, err
	}

	poster := &models.Poster{
		SessionID:    req.SessionID,
		InputMode:    req.InputMode,
		InputValue:   req.InputValue,
		Style:        req.Style,
		ContentType:  req.ContentType,
		OutputFormat: req.OutputFormat,
		MinPages:     req.MinPages,
		MaxPages:     req.MaxPages,
		Status:       models.PosterStatusProcessing,
	}
	if identity != nil {
		poster.UserID = identity.ID
	}

	if err := g.store.CreatePoster(ctx, poster); err != nil {
		return nil, fmt.Errorf("failed to create poster record: %w", err)
	}

	if err := g.dispatcher.Dispatch(ctx, poster.ID); err != nil {
		g.failPoster(ctx, poster.ID, "failed to queue generation job")
		return nil, fmt.Errorf("failed to dispatch job: %w", err)
	}

	metrics.JobsCreatedTotal.WithLabelValues(string(req.InputMode)).Inc()
	metrics.JobsInProgress.Inc()
	g.logger.LogJobEvent(poster.ID, "submitted", string(poster.Status))

	return poster, nil
}

func validate(req SubmitRequest) error {
	switch {
	case req.SessionID == "":
		return fmt.Errorf("%w: sessionId is required", ErrValidation)
	case req.InputValue == "":
		return fmt.Errorf("%w: inputValue is required", ErrValidation)
	case !models.ValidInputMode(req.InputMode):
		return fmt.Errorf("%w: unknown input mode %q", ErrValidation, req.InputMode)
	case !models.ValidStyle(req.Style):
		return fmt.Errorf("%w: unknown style %q", ErrValidation, req.Style)
	case !models.ValidContentType(req.ContentType):
		return fmt.Errorf("%w: unknown content type %q", ErrValidation, req.ContentType)
	case !models.ValidOutputFormat(req.OutputFormat):
		return fmt.Errorf("%w: unknown output format %q", ErrValidation, req.OutputFormat)
	case req.MinPages < models.MinPagesLower || req.MaxPages > models.MaxPagesUpper:
		return fmt.Errorf("%w: pages must be between %d and %d", ErrValidation, models.MinPagesLower, models.MaxPagesUpper)
	case req.MinPages > req.MaxPages:
		return fmt.Errorf("%w: minPages exceeds maxPages", ErrValidation)
	}
	return nil
}

// Process runs one generation job to completion. It is safe to call again
// for an already finished job; redeliveries are no-ops.
func (g *Generator) Process(ctx context.Context, posterID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.opts.JobTimeout)
	defer cancel()

	span, ctx := tracing.StartSpan(ctx, "generator.process")
	defer span.Finish()
	tracing.SetTag(span, "poster_id", posterID)

	start := time.Now()
	logger := g.logger.WithPosterID(posterID)

	poster, err := g.store.GetPoster(ctx, posterID)
	if err != nil {
		return fmt.Errorf("failed to load poster: %w", err)
	}
	if poster.Status.Terminal() {
		logger.Debug("Skipping already finished job")
		return nil
	}

	urls, err := g.generate(ctx, poster, logger)
	if err != nil {
		logger.ErrorWithErr("Generation failed", err)
		tracing.LogError(span, err)
		g.failPoster(ctx, posterID, err.Error())
		metrics.JobsCompletedTotal.WithLabelValues(string(models.PosterStatusFailed)).Inc()
		metrics.JobsInProgress.Dec()
		return nil
	}

	completed := models.PosterStatusCompleted
	updated, err := g.store.UpdatePoster(ctx, posterID, store.PosterUpdate{
		Status:     &completed,
		PosterURLs: urls,
	})
	if err != nil {
		if errors.Is(err, store.ErrStatusFinal) {
			logger.Warn("Job finished elsewhere, discarding result")
			return nil
		}
		return fmt.Errorf("failed to finalize poster: %w", err)
	}

	// Usage settles only after a successful finalize; failures cost nothing
	if err := g.quota.Settle(ctx, updated, len(urls)); err != nil {
		logger.ErrorWithErr("Failed to settle usage", err)
	}

	metrics.JobsCompletedTotal.WithLabelValues(string(models.PosterStatusCompleted)).Inc()
	metrics.JobsInProgress.Dec()
	metrics.JobDuration.WithLabelValues(string(poster.Style), string(poster.OutputFormat)).Observe(time.Since(start).Seconds())
	logger.LogJobEvent(posterID, "completed", string(models.PosterStatusCompleted))

	return nil
}

// generate produces all page artifacts for a job. Pages are synthesized and
// rendered concurrently but the returned slice preserves page index order.
func (g *Generator) generate(ctx context.Context, poster *models.Poster, logger *logging.Logger) ([]string, error) {
	var meta *models.Metadata
	if poster.InputMode == models.InputURL {
		var err error
		meta, err = g.extractor.Extract(ctx, poster.InputValue)
		if err != nil {
			// Metadata is an enrichment, not a prerequisite
			logger.ErrorWithErr("Metadata extraction failed, continuing without", err)
			meta = nil
		}
	}

	pageCount := g.pickPageCount(poster.MinPages, poster.MaxPages)
	logger.Infof("Generating %d pages", pageCount)

	urls := make([]string, pageCount)
	errs := make([]error, pageCount)
	sem := make(chan struct{}, g.opts.MaxParallelPages)
	var wg sync.WaitGroup

	for i := 0; i < pageCount; i++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pageContent, err := g.synth.Synthesize(ctx, content.Params{
				Input:           poster.InputValue,
				InputMode:       poster.InputMode,
				Style:           poster.Style,
				ContentType:     poster.ContentType,
				Metadata:        meta,
				Variation:       page,
				TotalVariations: pageCount,
			})
			if err != nil {
				errs[page] = fmt.Errorf("page %d synthesis: %w", page, err)
				return
			}

			url, err := g.renderer.RenderPage(ctx, poster.ID, page, pageContent, poster.Style, poster.OutputFormat)
			if err != nil {
				errs[page] = fmt.Errorf("page %d render: %w", page, err)
				return
			}

			urls[page] = url
			logger.LogPageRendered(poster.ID, page, pageCount, string(poster.OutputFormat))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return urls, nil
}

func (g *Generator) pickPageCount(min, max int) int {
	if max <= min {
		return min
	}
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return min + g.rng.Intn(max-min+1)
}

func (g *Generator) failPoster(ctx context.Context, posterID, msg string) {
	failed := models.PosterStatusFailed
	_, err := g.store.UpdatePoster(ctx, posterID, store.PosterUpdate{
		Status:   &failed,
		ErrorMsg: &msg,
	})
	if err != nil && !errors.Is(err, store.ErrStatusFinal) {
		g.logger.WithPosterID(posterID).ErrorWithErr("Failed to mark poster failed", err)
	}
}
