// Package backend adapts OCR engines to one recognition contract.
//
// The set of engines is closed: a fast tesseract baseline, a layout-aware
// document parser and a vision-language model. New resolves a kind and a
// mode preset once; the pipeline only sees the Backend interface.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/observability"
)

// Backend recognizes page images. Implementations are not safe for
// concurrent use.
type Backend = domain.Recognizer

// Kind selects an engine.
type Kind string

const (
	KindTesseract Kind = "tesseract" // fast baseline
	KindLayout    Kind = "layout"    // layout-aware parser
	KindVision    Kind = "vision"    // vision-language model
)

// Kinds lists every supported engine.
func Kinds() []Kind {
	return []Kind{KindTesseract, KindLayout, KindVision}
}

// ParseKind resolves an engine name, ignoring case.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", domain.ConfigurationError(fmt.Sprintf("unknown backend %q", name), nil)
}

// Options holds engine settings. Fields that do not apply to the selected
// kind are ignored.
type Options struct {
	MaxNewTokens int

	Languages []string // tesseract

	LayoutEndpoint string

	VisionEndpoint string
	VisionModel    string
	VisionAPIKey   string
	Prompt         string

	RequestsPerSecond float64
	HTTPClient        *http.Client
	Retry             *RetryConfig

	// Lease serializes pages on the engine's device; one is created when nil.
	Lease  *Lease
	Logger *observability.Logger
}

func (o Options) requester() *requester {
	r := &requester{
		httpClient: o.HTTPClient,
		limiter:    newLimiter(o.RequestsPerSecond),
		retry:      o.Retry,
		logger:     o.Logger,
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{}
	}
	if r.retry == nil {
		r.retry = DefaultRetryConfig()
	}
	return r
}

// New constructs the engine of the given kind at the named mode. Unknown
// kinds or modes fail with a configuration error; engines whose resources
// cannot be reached fail with a backend unavailable error.
func New(ctx context.Context, kind Kind, modeName string, opts Options) (Backend, error) {
	mode, err := LookupMode(modeName)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}
	if opts.Lease == nil {
		opts.Lease = NewLease()
	}

	switch kind {
	case KindTesseract:
		return newTesseract(mode, opts)
	case KindLayout:
		return newLayout(ctx, mode, opts)
	case KindVision:
		return newVision(ctx, mode, opts)
	default:
		return nil, domain.ConfigurationError(fmt.Sprintf("unknown backend %q", kind), nil)
	}
}

// recognizeEach runs fn over pages in order. The first failing page aborts
// the call with an extraction error naming that page.
func recognizeEach(
	ctx context.Context,
	engine string,
	pages []domain.Page,
	fn func(ctx context.Context, page domain.Page) (string, error),
) ([]domain.RawExtraction, error) {
	out := make([]domain.RawExtraction, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, domain.ExtractionError(fmt.Sprintf("page %d not started", page.Number), err)
		}

		text, err := fn(ctx, page)
		if err != nil {
			return nil, domain.ExtractionError(
				fmt.Sprintf("%s failed on page %d of %s", engine, page.Number, page.Document), err)
		}

		out = append(out, domain.RawExtraction{
			PageNumber: page.Number,
			Backend:    engine,
			Text:       text,
		})
	}
	return out, nil
}
