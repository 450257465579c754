package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/spherical/ocr-pipeline/internal/domain"
)

// Markdown joins page results in order, each preceded by a page marker.
// Pages whose extraction failed keep their marker but carry no content.
func Markdown(pages []domain.PageResult) string {
	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if p.Failed() {
			fmt.Fprintf(&sb, "<!-- page %d: extraction failed -->", p.Number)
			continue
		}
		fmt.Fprintf(&sb, "<!-- page %d -->", p.Number)
		if p.Text != "" {
			sb.WriteString("\n\n")
			sb.WriteString(p.Text)
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// WriteMarkdown writes <dir>/<name>_results.md for doc and returns its path.
func WriteMarkdown(dir string, doc domain.Document, pages []domain.PageResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.IOError("failed to create output directory", err)
	}
	path := ResultPath(dir, doc, ".md")
	if err := os.WriteFile(path, []byte(Markdown(pages)), 0o644); err != nil {
		return "", domain.IOError(fmt.Sprintf("failed to write %s", path), err)
	}
	return path, nil
}
