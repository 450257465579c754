package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spherical/ocr-pipeline/internal/domain"
)

// DefaultMerge is the program joining page PDFs.
const DefaultMerge = "pdfunite"

// ResultSuffix is appended to a document's base name for its artifacts.
const ResultSuffix = "_results"

// ResultPath returns <dir>/<name>_results<ext> for doc.
func ResultPath(dir string, doc domain.Document, ext string) string {
	return filepath.Join(dir, doc.BaseName()+ResultSuffix+ext)
}

// AssemblerOptions configures an Assembler.
type AssemblerOptions struct {
	OutputDir string
	Binary    string
	Timeout   time.Duration
	Runner    Runner
}

// Assembler concatenates page PDFs of a document, in order, into
// <output>/<name>_results.pdf.
type Assembler struct {
	outputDir string
	binary    string
	timeout   time.Duration
	run       Runner
}

// NewAssembler creates an assembler; zero options take defaults.
func NewAssembler(opts AssemblerOptions) *Assembler {
	a := &Assembler{
		outputDir: opts.OutputDir,
		binary:    opts.Binary,
		timeout:   opts.Timeout,
		run:       opts.Runner,
	}
	if a.binary == "" {
		a.binary = DefaultMerge
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.run == nil {
		a.run = ExecRunner
	}
	return a
}

// Binary returns the merge program name.
func (a *Assembler) Binary() string {
	return a.binary
}

// Assemble writes the reassembled PDF and returns its path.
func (a *Assembler) Assemble(ctx context.Context, doc domain.Document, pages [][]byte) (string, error) {
	if len(pages) == 0 {
		return "", domain.RenderError(fmt.Sprintf("no pages to assemble for %s", doc.Name), nil)
	}
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return "", domain.IOError("failed to create output directory", err)
	}

	out := ResultPath(a.outputDir, doc, ".pdf")

	if len(pages) == 1 {
		if err := os.WriteFile(out, pages[0], 0o644); err != nil {
			return "", domain.IOError(fmt.Sprintf("failed to write %s", out), err)
		}
		return out, nil
	}

	tmp, err := os.MkdirTemp("", "ocr-pipeline-*")
	if err != nil {
		return "", domain.IOError("failed to create temp directory", err)
	}
	defer os.RemoveAll(tmp)

	args := make([]string, 0, len(pages)+1)
	for i, p := range pages {
		path := filepath.Join(tmp, fmt.Sprintf("page_%04d.pdf", i+1))
		if err := os.WriteFile(path, p, 0o644); err != nil {
			return "", domain.IOError("failed to stage page pdf", err)
		}
		args = append(args, path)
	}
	args = append(args, out)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if _, err := a.run(ctx, a.binary, args, nil); err != nil {
		return "", domain.RenderError(fmt.Sprintf("failed to merge pages of %s", doc.Name), err)
	}
	return out, nil
}
