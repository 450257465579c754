package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/observability"
)

const (
	// DefaultVisionModel is the model id served for vision recognition.
	DefaultVisionModel = "deepseek-ai/DeepSeek-OCR"
	// DefaultVisionPrompt asks for grounded markdown of the whole page.
	DefaultVisionPrompt = "<image>\n<|grounding|>Convert the document to markdown."
	// DefaultMaxNewTokens is the generation budget per page.
	DefaultMaxNewTokens = 2048
)

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// ProcessorKwargs carries the mode preset to the model's image processor.
type ProcessorKwargs struct {
	BaseSize  int  `json:"base_size"`
	ImageSize int  `json:"image_size"`
	CropMode  bool `json:"crop_mode"`
}

// chatRequest is a streaming chat completion with deterministic decoding.
type chatRequest struct {
	Model             string          `json:"model"`
	Messages          []Message       `json:"messages"`
	Stream            bool            `json:"stream"`
	Temperature       float64         `json:"temperature"`
	MaxTokens         int             `json:"max_tokens"`
	SkipSpecialTokens bool            `json:"skip_special_tokens"`
	ProcessorKwargs   ProcessorKwargs `json:"mm_processor_kwargs"`
}

type chatResponse struct {
	ID      string   `json:"id"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Delta        delta  `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Vision recognizes pages with a vision-language model behind an
// OpenAI-compatible chat completions server.
type Vision struct {
	mode      Mode
	endpoint  string
	model     string
	apiKey    string
	prompt    string
	maxTokens int
	lease     *Lease
	req       *requester
	logger    *observability.Logger
}

func newVision(ctx context.Context, mode Mode, opts Options) (*Vision, error) {
	if opts.VisionEndpoint == "" {
		return nil, domain.ConfigurationError("vision backend requires an endpoint", nil)
	}

	v := &Vision{
		mode:      mode,
		endpoint:  strings.TrimRight(opts.VisionEndpoint, "/"),
		model:     opts.VisionModel,
		apiKey:    opts.VisionAPIKey,
		prompt:    opts.Prompt,
		maxTokens: opts.MaxNewTokens,
		lease:     opts.Lease,
		req:       opts.requester(),
		logger:    opts.Logger.WithOperation("vision"),
	}
	if v.model == "" {
		v.model = DefaultVisionModel
	}
	if v.prompt == "" {
		v.prompt = DefaultVisionPrompt
	}
	if v.maxTokens <= 0 {
		v.maxTokens = DefaultMaxNewTokens
	}

	if err := v.probe(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// probe checks that the server is reachable and serves the model.
func (v *Vision) probe(ctx context.Context) error {
	resp, err := v.req.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"/models", nil)
		if err != nil {
			return nil, err
		}
		v.authorize(req)
		return req, nil
	})
	if err != nil {
		return domain.BackendUnavailableError(fmt.Sprintf("vision server %s unreachable", v.endpoint), err)
	}
	defer resp.Body.Close()

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return domain.BackendUnavailableError("invalid model list from vision server", err)
	}
	for _, m := range list.Data {
		if m.ID == v.model {
			return nil
		}
	}
	return domain.BackendUnavailableError(fmt.Sprintf("model %s is not served by %s", v.model, v.endpoint), nil)
}

// Fingerprint covers the settings that change what the model returns.
func (v *Vision) Fingerprint() string {
	return settingsDigest(v.model, v.prompt, strconv.Itoa(v.maxTokens))
}

// Name identifies the engine and mode
func (v *Vision) Name() string {
	return string(KindVision) + "/" + v.mode.Name
}

// Recognize extracts each page in order while holding the device lease.
func (v *Vision) Recognize(ctx context.Context, pages []domain.Page) ([]domain.RawExtraction, error) {
	return recognizeEach(ctx, v.Name(), pages, func(ctx context.Context, page domain.Page) (string, error) {
		var text string
		err := v.lease.Do(ctx, func(ctx context.Context) error {
			var err error
			text, err = v.recognizePage(ctx, page)
			return err
		})
		return text, err
	})
}

func (v *Vision) recognizePage(ctx context.Context, page domain.Page) (string, error) {
	data, err := pageInput(page.Image, v.mode)
	if err != nil {
		return "", fmt.Errorf("encode page: %w", err)
	}

	body, err := json.Marshal(v.buildRequest(data))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	resp, err := v.req.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		v.authorize(req)
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, reason, err := NewStreamParser(resp.Body).Collect()
	if err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	if reason == "length" {
		v.logger.Warn().
			Str("document", page.Document).
			Page(page.Number).
			Int("max_tokens", v.maxTokens).
			Msg("generation budget exhausted, page text is truncated")
	}
	return text, nil
}

// buildRequest constructs the chat request for one encoded page
func (v *Vision) buildRequest(png []byte) *chatRequest {
	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	// The image travels as its own content part
	prompt := strings.TrimSpace(strings.ReplaceAll(v.prompt, "<image>", ""))

	return &chatRequest{
		Model: v.model,
		Messages: []Message{{
			Role: "user",
			Content: []ContentPart{
				{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
				{Type: "text", Text: prompt},
			},
		}},
		Stream:            true,
		Temperature:       0,
		MaxTokens:         v.maxTokens,
		SkipSpecialTokens: false,
		ProcessorKwargs: ProcessorKwargs{
			BaseSize:  v.mode.BaseSize,
			ImageSize: v.mode.ImageSize,
			CropMode:  v.mode.Crop,
		},
	}
}

func (v *Vision) authorize(req *http.Request) {
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}
}

// Close has nothing to release; the device lease is per page.
func (v *Vision) Close() error {
	return nil
}
