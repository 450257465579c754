package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/observability"
)

// DefaultLanguages is used when no tesseract language is configured.
var DefaultLanguages = []string{"eng"}

// ocrClient is the part of *gosseract.Client a page needs.
type ocrClient interface {
	Version() string
	SetLanguage(langs ...string) error
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

func newGosseract() ocrClient { return gosseract.NewClient() }

// Tesseract is the fast baseline engine. Each page gets its own client,
// which is closed as soon as the page is read. Pages run one at a time
// under the lease, including a run abandoned at its deadline.
type Tesseract struct {
	mode      Mode
	languages []string
	newClient func() ocrClient
	lease     *Lease
	logger    *observability.Logger
}

func newTesseract(mode Mode, opts Options) (*Tesseract, error) {
	langs := opts.Languages
	if len(langs) == 0 {
		langs = DefaultLanguages
	}

	t := &Tesseract{
		mode:      mode,
		languages: langs,
		newClient: newGosseract,
		lease:     opts.Lease,
		logger:    opts.Logger.WithOperation("tesseract"),
	}

	client := t.newClient()
	defer client.Close()
	version := client.Version()
	if version == "" {
		return nil, domain.BackendUnavailableError("tesseract library is not available", nil)
	}
	t.logger.Debug().
		Str("version", version).
		Str("languages", strings.Join(langs, "+")).
		Msg("tesseract ready")

	return t, nil
}

// Fingerprint covers the recognition languages.
func (t *Tesseract) Fingerprint() string {
	return settingsDigest(t.languages...)
}

// Name identifies the engine and mode
func (t *Tesseract) Name() string {
	return string(KindTesseract) + "/" + t.mode.Name
}

// Recognize extracts each page in order.
func (t *Tesseract) Recognize(ctx context.Context, pages []domain.Page) ([]domain.RawExtraction, error) {
	return recognizeEach(ctx, t.Name(), pages, t.recognizePage)
}

type ocrResult struct {
	text string
	err  error
}

// recognizePage runs tesseract off the calling goroutine so that a page
// deadline is honoured. Tesseract cannot be interrupted, so the lease and
// the client are released only when it returns; the next page waits for
// an abandoned run instead of overlapping it.
func (t *Tesseract) recognizePage(ctx context.Context, page domain.Page) (string, error) {
	data, err := EncodePNG(page.Image)
	if err != nil {
		return "", fmt.Errorf("encode page: %w", err)
	}

	release, err := t.lease.Acquire(ctx)
	if err != nil {
		return "", err
	}

	done := make(chan ocrResult, 1)
	go func() {
		defer release()
		client := t.newClient()
		defer client.Close()

		if err := client.SetLanguage(t.languages...); err != nil {
			done <- ocrResult{err: fmt.Errorf("set languages: %w", err)}
			return
		}
		if err := client.SetImageFromBytes(data); err != nil {
			done <- ocrResult{err: fmt.Errorf("set image: %w", err)}
			return
		}
		text, err := client.Text()
		if err != nil {
			done <- ocrResult{err: fmt.Errorf("recognize text: %w", err)}
			return
		}
		done <- ocrResult{text: text}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}

// Close has nothing to release; clients live for one page.
func (t *Tesseract) Close() error {
	return nil
}
