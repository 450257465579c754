package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	// DefaultHTMLToPDF is the converter invoked for each page.
	DefaultHTMLToPDF = "wkhtmltopdf"
	// DefaultTimeout bounds one converter call.
	DefaultTimeout = 60 * time.Second
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: "DejaVu Sans", sans-serif; font-size: 11pt; line-height: 1.4; margin: 0; }
table { border-collapse: collapse; }
td, th { border: 1px solid #999; padding: 2px 6px; }
</style>
</head>
<body>
%s</body>
</html>
`

// RendererOptions configures a Renderer.
type RendererOptions struct {
	Binary  string
	Timeout time.Duration
	Runner  Runner
}

// Renderer converts page markdown to a PDF in two steps: goldmark renders
// HTML, then an external converter prints it.
type Renderer struct {
	md      goldmark.Markdown
	binary  string
	timeout time.Duration
	run     Runner
}

// NewRenderer creates a renderer; zero options take defaults.
func NewRenderer(opts RendererOptions) *Renderer {
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		binary:  opts.Binary,
		timeout: opts.Timeout,
		run:     opts.Runner,
	}
	if r.binary == "" {
		r.binary = DefaultHTMLToPDF
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.run == nil {
		r.run = ExecRunner
	}
	return r
}

// Binary returns the converter program name.
func (r *Renderer) Binary() string {
	return r.binary
}

// HTML renders markdown into a standalone HTML page.
func (r *Renderer) HTML(markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &body); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(pageTemplate, body.String())), nil
}

// Render converts one page of markdown into PDF bytes.
func (r *Renderer) Render(ctx context.Context, markdown string) ([]byte, error) {
	page, err := r.HTML(markdown)
	if err != nil {
		return nil, domain.RenderError("markdown to html", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.run(ctx, r.binary, []string{"--quiet", "--encoding", "utf-8", "-", "-"}, page)
	if err != nil {
		return nil, domain.RenderError("html to pdf", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		return nil, domain.RenderError(fmt.Sprintf("%s produced no pdf", r.binary), nil)
	}
	return out, nil
}
