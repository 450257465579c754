package domain

import (
	"image"
	"path/filepath"
	"strings"
	"time"
)

// Document identifies one input file of a batch.
type Document struct {
	Name string // base name including extension
	Path string
	// Stem overrides the artifact stem; set when two inputs of a batch
	// share a base name.
	Stem string
}

// BaseName returns the stem artifacts of d are named after: Stem when
// set, otherwise the name without its extension.
func (d Document) BaseName() string {
	if d.Stem != "" {
		return d.Stem
	}
	return strings.TrimSuffix(d.Name, filepath.Ext(d.Name))
}

// IsPDF reports whether the document is a PDF rather than a raster image.
func (d Document) IsPDF() bool {
	return strings.EqualFold(filepath.Ext(d.Name), ".pdf")
}

// Page represents a single rasterized page of a document.
// Number is 1-based and follows the reading order of the source.
type Page struct {
	Document   string
	Number     int
	Image      image.Image
	Scale      float64
	CachedPath string // set when page images are kept on disk
}

// Width returns the page image width in pixels.
func (p Page) Width() int {
	if p.Image == nil {
		return 0
	}
	return p.Image.Bounds().Dx()
}

// Height returns the page image height in pixels.
func (p Page) Height() int {
	if p.Image == nil {
		return 0
	}
	return p.Image.Bounds().Dy()
}

// RawExtraction is the unprocessed engine output for one page.
type RawExtraction struct {
	PageNumber int
	Backend    string
	Text       string
}

// PageStatus records how far a page got through the pipeline.
type PageStatus string

const (
	PageSucceeded       PageStatus = "succeeded"
	PageExtractionError PageStatus = "extraction_failed"
	PageRenderOmitted   PageStatus = "render_omitted"
)

// PageResult is the outcome for one page of a document.
type PageResult struct {
	Number int
	Status PageStatus
	Text   string // clean text; empty when extraction failed
	Err    error
}

// Failed reports whether the page contributes no content.
func (r PageResult) Failed() bool {
	return r.Status == PageExtractionError
}

// DocumentResult holds per-page results of a document in page order.
type DocumentResult struct {
	Document     Document
	Pages        []PageResult
	MarkdownPath string
	ArtifactPath string
	Skipped      bool
	Err          error
}

// Succeeded counts pages with usable content.
func (r DocumentResult) Succeeded() int {
	n := 0
	for _, p := range r.Pages {
		if !p.Failed() {
			n++
		}
	}
	return n
}

// Failed counts pages whose extraction failed.
func (r DocumentResult) Failed() int {
	return len(r.Pages) - r.Succeeded()
}

// Omitted counts pages left out of the reassembled artifact.
func (r DocumentResult) Omitted() int {
	n := 0
	for _, p := range r.Pages {
		if p.Status == PageRenderOmitted {
			n++
		}
	}
	return n
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart           EventType = "start"
	EventDocumentStart   EventType = "document_start"
	EventRasterized      EventType = "rasterized"
	EventPageProcessing  EventType = "page_processing"
	EventPageComplete    EventType = "page_complete"
	EventDocumentDone    EventType = "document_done"
	EventDocumentSkipped EventType = "document_skipped"
	EventError           EventType = "error"
	EventComplete        EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	Document   string      `json:"document,omitempty"`
	PageNumber int         `json:"page_number,omitempty"`
	Total      int         `json:"total,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
