package domain

import "context"

// Rasterizer turns one input document into ordered page images
type Rasterizer interface {
	// Rasterize returns pages numbered from 1 in reading order
	Rasterize(ctx context.Context, doc Document) ([]Page, error)
}

// Recognizer wraps one OCR engine. Implementations are not safe for
// concurrent use; callers serialize Recognize calls.
type Recognizer interface {
	// Name identifies the engine and its mode, e.g. "vision/large"
	Name() string

	// Recognize returns one RawExtraction per input page, in input order
	Recognize(ctx context.Context, pages []Page) ([]RawExtraction, error)

	// Close releases engine resources held for the run
	Close() error
}

// Renderer converts one page of markdown into a document artifact
type Renderer interface {
	Render(ctx context.Context, markdown string) ([]byte, error)
}

// Assembler joins rendered page artifacts of one document, in order, into a
// single output file and returns its path
type Assembler interface {
	Assemble(ctx context.Context, doc Document, pages [][]byte) (string, error)
}
