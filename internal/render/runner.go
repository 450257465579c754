// Package render turns clean page text into output artifacts: a markdown
// file per document and, when enabled, a PDF reassembled from per-page PDFs
// produced by external converters.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spherical/ocr-pipeline/internal/domain"
)

// Runner executes an external program with stdin and returns its stdout.
type Runner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// ExecRunner runs programs with os/exec. A failing program's stderr is
// included in the error.
func ExecRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// CheckBinary fails with a configuration error when name is not on PATH.
func CheckBinary(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return domain.ConfigurationError(fmt.Sprintf("required program %q not found", name), err)
	}
	return nil
}
