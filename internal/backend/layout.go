package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/observability"
)

// fileTypeImage marks the uploaded file as an image rather than a PDF.
const fileTypeImage = 1

type layoutRequest struct {
	File     string `json:"file"`
	FileType int    `json:"fileType"`
}

type layoutResponse struct {
	ErrorCode int    `json:"errorCode"`
	ErrorMsg  string `json:"errorMsg"`
	Result    struct {
		LayoutParsingResults []struct {
			Markdown struct {
				Text string `json:"text"`
			} `json:"markdown"`
		} `json:"layoutParsingResults"`
	} `json:"result"`
}

// Layout recognizes pages with a layout-aware document parser exposed over
// HTTP. The parser returns markdown per detected layout result.
type Layout struct {
	mode     Mode
	endpoint string
	lease    *Lease
	req      *requester
	logger   *observability.Logger
}

// layoutProbeTimeout bounds the reachability check at construction.
const layoutProbeTimeout = 10 * time.Second

func newLayout(ctx context.Context, mode Mode, opts Options) (*Layout, error) {
	if opts.LayoutEndpoint == "" {
		return nil, domain.ConfigurationError("layout backend requires an endpoint", nil)
	}
	l := &Layout{
		mode:     mode,
		endpoint: opts.LayoutEndpoint,
		lease:    opts.Lease,
		req:      opts.requester(),
		logger:   opts.Logger.WithOperation("layout"),
	}
	if err := l.probe(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// probe checks that the parser answers at all. The endpoint only serves
// POST, so any response short of a gateway failure counts as reachable.
func (l *Layout) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, layoutProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return domain.ConfigurationError(fmt.Sprintf("invalid layout endpoint %q", l.endpoint), err)
	}
	resp, err := l.req.httpClient.Do(req)
	if err != nil {
		return domain.BackendUnavailableError(fmt.Sprintf("layout server %s unreachable", l.endpoint), err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.BackendUnavailableError(
			fmt.Sprintf("layout server %s unavailable: %s", l.endpoint, resp.Status), nil)
	}
	l.logger.Debug().Str("endpoint", l.endpoint).Int("status", resp.StatusCode).Msg("layout server reachable")
	return nil
}

// Name identifies the engine and mode
func (l *Layout) Name() string {
	return string(KindLayout) + "/" + l.mode.Name
}

// Recognize extracts each page in order while holding the device lease.
func (l *Layout) Recognize(ctx context.Context, pages []domain.Page) ([]domain.RawExtraction, error) {
	return recognizeEach(ctx, l.Name(), pages, func(ctx context.Context, page domain.Page) (string, error) {
		var text string
		err := l.lease.Do(ctx, func(ctx context.Context) error {
			var err error
			text, err = l.recognizePage(ctx, page)
			return err
		})
		return text, err
	})
}

func (l *Layout) recognizePage(ctx context.Context, page domain.Page) (string, error) {
	data, err := pageInput(page.Image, l.mode)
	if err != nil {
		return "", fmt.Errorf("encode page: %w", err)
	}

	body, err := json.Marshal(layoutRequest{
		File:     base64.StdEncoding.EncodeToString(data),
		FileType: fileTypeImage,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	resp, err := l.req.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out layoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.ErrorCode != 0 {
		return "", fmt.Errorf("layout parser error %d: %s", out.ErrorCode, out.ErrorMsg)
	}

	parts := make([]string, 0, len(out.Result.LayoutParsingResults))
	for _, r := range out.Result.LayoutParsingResults {
		if t := strings.TrimSpace(r.Markdown.Text); t != "" {
			parts = append(parts, t)
		}
	}

	l.logger.Debug().
		Str("document", page.Document).
		Page(page.Number).
		Int("results", len(parts)).
		Msg("layout parsed")

	return strings.Join(parts, "\n\n"), nil
}

// Close has nothing to release.
func (l *Layout) Close() error {
	return nil
}
