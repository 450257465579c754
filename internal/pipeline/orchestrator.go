// Package pipeline drives a batch run: every document in the input
// directory is rasterized, each page is recognized by the selected backend
// and normalized, and the results are written back as artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/normalize"
	"github.com/spherical/ocr-pipeline/internal/observability"
	"github.com/spherical/ocr-pipeline/internal/pdf"
	"github.com/spherical/ocr-pipeline/internal/render"
	"github.com/spherical/ocr-pipeline/internal/stats"
	"golang.org/x/sync/errgroup"
)

// DefaultPageTimeout bounds one recognition call when none is configured.
const DefaultPageTimeout = 120 * time.Second

// Config holds the run settings the orchestrator needs.
type Config struct {
	InputDir    string
	OutputDir   string
	PageTimeout time.Duration
	// Workers > 1 rasterizes documents concurrently before extraction.
	Workers int
}

// Orchestrator runs the pipeline for one batch directory. It is backend
// agnostic and calls the backend from a single goroutine.
type Orchestrator struct {
	cfg        Config
	rasterizer domain.Rasterizer
	backend    domain.Recognizer
	renderer   domain.Renderer
	assembler  domain.Assembler
	logger     *observability.Logger
	now        func() time.Time
}

// New creates an orchestrator. renderer and assembler may both be nil to
// skip PDF reassembly; the markdown artifact is always written.
func New(
	cfg Config,
	rasterizer domain.Rasterizer,
	backend domain.Recognizer,
	renderer domain.Renderer,
	assembler domain.Assembler,
	logger *observability.Logger,
) (*Orchestrator, error) {
	if rasterizer == nil {
		return nil, domain.ConfigurationError("rasterizer is required", nil)
	}
	if backend == nil {
		return nil, domain.BackendUnavailableError("no backend selected", nil)
	}
	if (renderer == nil) != (assembler == nil) {
		return nil, domain.ConfigurationError("renderer and assembler must be set together", nil)
	}
	if cfg.OutputDir == "" {
		return nil, domain.ConfigurationError("output directory is required", nil)
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = observability.Nop()
	}

	return &Orchestrator{
		cfg:        cfg,
		rasterizer: rasterizer,
		backend:    backend,
		renderer:   renderer,
		assembler:  assembler,
		logger:     logger.WithOperation("pipeline"),
		now:        time.Now,
	}, nil
}

// Close releases the backend.
func (o *Orchestrator) Close() error {
	return o.backend.Close()
}

// prepared is a rasterized document waiting for extraction.
type prepared struct {
	doc   domain.Document
	pages []domain.Page
	err   error
}

// Execute processes every document of the input directory. Per page and
// per document failures are recorded in the summary; only an unreadable
// input directory or a cancelled context ends the run early. A cancelled
// run returns the context error together with a summary of the work done
// before it stopped. events may be nil; when set it receives progress
// without blocking the run.
func (o *Orchestrator) Execute(ctx context.Context, events chan<- domain.StreamEvent) (*Summary, error) {
	runID := uuid.NewString()
	logger := o.logger.WithRun(runID)
	started := o.now()

	docs, err := pdf.ListDocuments(o.cfg.InputDir)
	if err != nil {
		err = domain.ConfigurationError("cannot read input directory", err)
		o.emitError(events, "", 0, err)
		return nil, err
	}

	summary := &Summary{RunID: runID, Backend: o.backend.Name(), Rendered: o.renderer != nil}
	timer := stats.NewTimerWithClock(o.now)

	o.emitEvent(events, domain.StreamEvent{
		Type:    domain.EventStart,
		Total:   len(docs),
		Payload: fmt.Sprintf("Processing %d documents with %s", len(docs), o.backend.Name()),
	})
	logger.Info().
		Str("input", o.cfg.InputDir).
		Str("backend", o.backend.Name()).
		Int("documents", len(docs)).
		Int("workers", o.cfg.Workers).
		Msg("run started")

	if len(docs) == 0 {
		logger.Warn().Str("input", o.cfg.InputDir).Msg("no supported documents found")
	}

	var results []domain.DocumentResult
	if o.cfg.Workers > 1 {
		results, err = o.runParallel(ctx, docs, timer, logger, events)
	} else {
		results, err = o.runSequential(ctx, docs, timer, logger, events)
	}
	summary.Documents = results
	summary.Stats = timer.Finalize()
	summary.Elapsed = o.now().Sub(started)
	summary.tally()

	if err != nil {
		o.emitError(events, "", 0, err)
		if ctx.Err() == nil {
			return nil, err
		}
		summary.Cancelled = true
		logger.Warn().
			Err(err).
			Int("documents_done", len(results)).
			Int("pages_succeeded", summary.PagesSucceeded).
			Msg("run cancelled")
		return summary, err
	}

	o.emitEvent(events, domain.StreamEvent{
		Type:    domain.EventComplete,
		Total:   len(docs),
		Payload: summary,
	})
	logger.Info().
		Int("documents_processed", summary.DocumentsProcessed).
		Int("documents_skipped", summary.DocumentsSkipped).
		Int("pages_succeeded", summary.PagesSucceeded).
		Int("pages_failed", summary.PagesFailed).
		Int("pages_omitted", summary.PagesOmitted).
		Dur("elapsed", summary.Elapsed).
		Msg("run complete")

	return summary, nil
}

// runSequential rasterizes and processes one document at a time.
func (o *Orchestrator) runSequential(
	ctx context.Context,
	docs []domain.Document,
	timer *stats.Timer,
	logger *observability.Logger,
	events chan<- domain.StreamEvent,
) ([]domain.DocumentResult, error) {
	results := make([]domain.DocumentResult, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		prep, err := o.prepare(ctx, doc, timer)
		if err != nil {
			return results, err
		}

		result, err := o.process(ctx, prep, timer, logger, events)
		results = appendPartial(results, result, err)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// appendPartial adds result unless it was interrupted before any page
// finished.
func appendPartial(results []domain.DocumentResult, result domain.DocumentResult, err error) []domain.DocumentResult {
	if err != nil && len(result.Pages) == 0 {
		return results
	}
	return append(results, result)
}

// runParallel rasterizes all documents with a bounded worker group, then
// processes them in input order. Recognition stays on this goroutine.
func (o *Orchestrator) runParallel(
	ctx context.Context,
	docs []domain.Document,
	timer *stats.Timer,
	logger *observability.Logger,
	events chan<- domain.StreamEvent,
) ([]domain.DocumentResult, error) {
	preps := make([]prepared, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, doc := range docs {
		g.Go(func() error {
			prep, err := o.prepare(gctx, doc, timer)
			if err != nil {
				return err
			}
			preps[i] = prep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]domain.DocumentResult, 0, len(docs))
	for _, prep := range preps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := o.process(ctx, prep, timer, logger, events)
		results = appendPartial(results, result, err)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// prepare rasterizes doc and records the preprocess time of a success.
// A rasterization failure is kept in the returned value; only cancellation
// is returned as an error.
func (o *Orchestrator) prepare(ctx context.Context, doc domain.Document, timer *stats.Timer) (prepared, error) {
	started := o.now()
	pages, err := o.rasterizer.Rasterize(ctx, doc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return prepared{}, ctxErr
		}
		if !domain.IsType(err, domain.ErrorTypeRasterization) {
			err = domain.RasterizationError(fmt.Sprintf("failed to rasterize %s", doc.Name), err)
		}
		return prepared{doc: doc, err: err}, nil
	}
	if len(pages) == 0 {
		return prepared{doc: doc, err: domain.RasterizationError(fmt.Sprintf("%s has no pages", doc.Name), nil)}, nil
	}

	if err := timer.Record(stats.Preprocess, o.now().Sub(started)); err != nil {
		return prepared{}, err
	}
	return prepared{doc: doc, pages: pages}, nil
}

// process extracts, normalizes and renders the pages of one prepared
// document, then writes its artifacts.
func (o *Orchestrator) process(
	ctx context.Context,
	prep prepared,
	timer *stats.Timer,
	logger *observability.Logger,
	events chan<- domain.StreamEvent,
) (domain.DocumentResult, error) {
	doc := prep.doc
	docLog := logger.WithDocument(doc.Name)
	result := domain.DocumentResult{Document: doc}

	if prep.err != nil {
		result.Skipped = true
		result.Err = prep.err
		docLog.Error().Err(prep.err).Stage(string(stats.Preprocess)).Msg("document skipped")
		o.emitEvent(events, domain.StreamEvent{
			Type:     domain.EventDocumentSkipped,
			Document: doc.Name,
			Payload:  prep.err.Error(),
		})
		return result, nil
	}

	pages := prep.pages
	o.emitEvent(events, domain.StreamEvent{Type: domain.EventDocumentStart, Document: doc.Name, Total: len(pages)})
	o.emitEvent(events, domain.StreamEvent{Type: domain.EventRasterized, Document: doc.Name, Total: len(pages)})
	docLog.Info().Int("pages", len(pages)).Msg("document rasterized")

	result.Pages = make([]domain.PageResult, 0, len(pages))
	var artifacts [][]byte

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		o.emitEvent(events, domain.StreamEvent{
			Type:       domain.EventPageProcessing,
			Document:   doc.Name,
			PageNumber: page.Number,
			Total:      len(pages),
		})

		pr, artifact, err := o.processPage(ctx, page, timer, docLog)
		if err != nil {
			return result, err
		}
		result.Pages = append(result.Pages, pr)
		if artifact != nil {
			artifacts = append(artifacts, artifact)
		}

		if pr.Err != nil {
			o.emitError(events, doc.Name, page.Number, pr.Err)
		}
		o.emitEvent(events, domain.StreamEvent{
			Type:       domain.EventPageComplete,
			Document:   doc.Name,
			PageNumber: page.Number,
			Total:      len(pages),
			Payload:    pr.Status,
		})
	}

	o.writeArtifacts(ctx, &result, artifacts, docLog)

	o.emitEvent(events, domain.StreamEvent{
		Type:     domain.EventDocumentDone,
		Document: doc.Name,
		Total:    len(pages),
		Payload:  result.ArtifactPath,
	})
	docLog.Info().
		Int("succeeded", result.Succeeded()).
		Int("failed", result.Failed()).
		Int("omitted", result.Omitted()).
		Str("markdown", result.MarkdownPath).
		Str("artifact", result.ArtifactPath).
		Msg("document done")

	return result, nil
}

// processPage recognizes one page under the page timeout and turns the
// raw output into clean text and, when rendering, a page PDF. Recognition
// and render failures are recorded in the page result; only cancellation
// of ctx is returned as an error.
func (o *Orchestrator) processPage(
	ctx context.Context,
	page domain.Page,
	timer *stats.Timer,
	logger *observability.Logger,
) (domain.PageResult, []byte, error) {
	pr := domain.PageResult{Number: page.Number}

	timer.Start(stats.Extract)
	raw, err := o.recognize(ctx, page)
	if err != nil {
		timer.Discard(stats.Extract)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return pr, nil, ctxErr
		}
		pr.Status = domain.PageExtractionError
		pr.Err = err
		logger.Warn().
			Err(err).
			Page(page.Number).
			Stage(string(stats.Extract)).
			Msg("page extraction failed")
		return pr, nil, nil
	}
	if _, err := timer.Stop(stats.Extract); err != nil {
		return pr, nil, err
	}

	timer.Start(stats.Postprocess)
	pr.Text = normalize.Clean(raw.Text)
	pr.Status = domain.PageSucceeded

	var artifact []byte
	if o.renderer != nil {
		artifact, err = o.renderer.Render(ctx, pr.Text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				timer.Discard(stats.Postprocess)
				return pr, nil, ctxErr
			}
			if !domain.IsType(err, domain.ErrorTypeRender) {
				err = domain.RenderError(fmt.Sprintf("failed to render page %d", page.Number), err)
			}
			timer.Discard(stats.Postprocess)
			pr.Status = domain.PageRenderOmitted
			pr.Err = err
			logger.Warn().
				Err(err).
				Page(page.Number).
				Stage(string(stats.Postprocess)).
				Msg("page omitted from reassembled document")
			return pr, nil, nil
		}
	}
	if _, err := timer.Stop(stats.Postprocess); err != nil {
		return pr, nil, err
	}

	logger.Debug().
		Page(page.Number).
		Int("chars", len(pr.Text)).
		Str("status", string(pr.Status)).
		Msg("page processed")

	return pr, artifact, nil
}

// recognize calls the backend for a single page under the page timeout.
// Every failure, including the timeout, comes back as an extraction error.
func (o *Orchestrator) recognize(ctx context.Context, page domain.Page) (domain.RawExtraction, error) {
	pageCtx, cancel := context.WithTimeout(ctx, o.cfg.PageTimeout)
	defer cancel()

	raws, err := o.backend.Recognize(pageCtx, []domain.Page{page})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.RawExtraction{}, domain.ExtractionError(
				fmt.Sprintf("page %d timed out after %v", page.Number, o.cfg.PageTimeout), err)
		}
		if !domain.IsType(err, domain.ErrorTypeExtraction) {
			err = domain.ExtractionError(fmt.Sprintf("page %d", page.Number), err)
		}
		return domain.RawExtraction{}, err
	}
	if len(raws) != 1 {
		return domain.RawExtraction{}, domain.ExtractionError(
			fmt.Sprintf("backend returned %d results for page %d", len(raws), page.Number), nil)
	}
	return raws[0], nil
}

// writeArtifacts writes the markdown file and, when rendering, the
// reassembled PDF. Failures are recorded on the document and logged.
func (o *Orchestrator) writeArtifacts(ctx context.Context, result *domain.DocumentResult, artifacts [][]byte, logger *observability.Logger) {
	path, err := render.WriteMarkdown(o.cfg.OutputDir, result.Document, result.Pages)
	if err != nil {
		result.Err = err
		logger.Error().Err(err).Msg("failed to write markdown")
	} else {
		result.MarkdownPath = path
	}

	if o.assembler == nil {
		return
	}
	if len(artifacts) == 0 {
		logger.Warn().Msg("no rendered pages, reassembled document not written")
		return
	}

	started := o.now()
	path, err = o.assembler.Assemble(ctx, result.Document, artifacts)
	if err != nil {
		result.Err = errors.Join(result.Err, err)
		logger.Error().Err(err).Stage(string(stats.Postprocess)).Msg("failed to reassemble document")
		return
	}
	result.ArtifactPath = path
	logger.Debug().
		Int("pages", len(artifacts)).
		Dur("elapsed", o.now().Sub(started)).
		Msg("document reassembled")
}

// emitEvent sends an event without blocking the run
func (o *Orchestrator) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = o.now()
	}
	select {
	case eventCh <- event:
	default:
		o.logger.Warn().Str("event", string(event.Type)).Msg("event channel full, dropping event")
	}
}

// emitError emits an error event
func (o *Orchestrator) emitError(eventCh chan<- domain.StreamEvent, document string, page int, err error) {
	o.emitEvent(eventCh, domain.StreamEvent{
		Type:       domain.EventError,
		Document:   document,
		PageNumber: page,
		Payload:    err.Error(),
	})
}
