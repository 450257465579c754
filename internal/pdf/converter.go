package pdf

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/observability"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// basePDFDPI is the resolution a PDF page has at scale 1.
const basePDFDPI = 72.0

// Options configures a Converter.
type Options struct {
	// Scale multiplies the native PDF resolution (2.0 renders at 144 DPI).
	Scale float64
	// KeepDir, when set, keeps every page image as
	// <KeepDir>/<name>_pages/page_0001.png.
	KeepDir string
}

// Converter rasterizes PDFs with go-fitz and decodes raster image inputs.
// It holds no per-document state and may be shared by concurrent callers.
type Converter struct {
	opts      Options
	validator *Validator
	logger    *observability.Logger
}

// NewConverter creates a converter after validating opts.
func NewConverter(opts Options, logger *observability.Logger) (*Converter, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	validator := NewValidator(logger)
	if err := validator.ValidateScale(opts.Scale); err != nil {
		return nil, err
	}
	return &Converter{opts: opts, validator: validator, logger: logger}, nil
}

// Rasterize renders doc into pages numbered from 1 in reading order.
// Failures are reported as rasterization errors; a cancelled context is
// returned as is.
func (c *Converter) Rasterize(ctx context.Context, doc domain.Document) ([]domain.Page, error) {
	if err := c.validator.ValidateDocumentPath(doc.Path); err != nil {
		return nil, domain.RasterizationError(fmt.Sprintf("invalid input %s", doc.Name), err)
	}

	var (
		pages []domain.Page
		err   error
	)
	if doc.IsPDF() {
		pages, err = c.rasterizePDF(ctx, doc)
	} else {
		pages, err = c.decodeImage(doc)
	}
	if err != nil {
		return nil, err
	}

	if c.opts.KeepDir != "" {
		if err := c.keepPages(ctx, doc, pages); err != nil {
			return nil, err
		}
	}
	return pages, nil
}

func (c *Converter) rasterizePDF(ctx context.Context, doc domain.Document) ([]domain.Page, error) {
	f, err := fitz.New(doc.Path)
	if err != nil {
		return nil, domain.RasterizationError(fmt.Sprintf("failed to open %s", doc.Name), err)
	}
	defer f.Close()

	pageCount := f.NumPage()
	if pageCount == 0 {
		return nil, domain.RasterizationError(fmt.Sprintf("%s has no pages", doc.Name), nil)
	}

	dpi := basePDFDPI * c.opts.Scale
	pages := make([]domain.Page, 0, pageCount)

	for n := 0; n < pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := f.ImageDPI(n, dpi)
		if err != nil {
			return nil, domain.RasterizationError(fmt.Sprintf("failed to render page %d of %s", n+1, doc.Name), err)
		}

		pages = append(pages, domain.Page{
			Document: doc.Name,
			Number:   n + 1,
			Image:    img,
			Scale:    c.opts.Scale,
		})
	}

	c.logger.Debug().
		Str("document", doc.Name).
		Int("pages", len(pages)).
		Float64("dpi", dpi).
		Msg("pdf rasterized")

	return pages, nil
}

// decodeImage turns a single raster image into a one page document.
func (c *Converter) decodeImage(doc domain.Document) ([]domain.Page, error) {
	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, domain.RasterizationError(fmt.Sprintf("failed to open %s", doc.Name), err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, domain.RasterizationError(fmt.Sprintf("failed to decode %s", doc.Name), err)
	}

	c.logger.Debug().
		Str("document", doc.Name).
		Str("format", format).
		Msg("image decoded")

	return []domain.Page{{
		Document: doc.Name,
		Number:   1,
		Image:    img,
		Scale:    1,
	}}, nil
}

func (c *Converter) keepPages(ctx context.Context, doc domain.Document, pages []domain.Page) error {
	dir := PagesDir(c.opts.KeepDir, doc)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.IOError("failed to create page directory", err)
	}

	for i := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, fmt.Sprintf("page_%04d.png", pages[i].Number))
		if err := writePNG(path, pages[i].Image); err != nil {
			return domain.IOError(fmt.Sprintf("failed to keep page %d of %s", pages[i].Number, doc.Name), err)
		}
		pages[i].CachedPath = path
	}
	return nil
}

// PagesDir returns the directory kept page images of doc are written to.
func PagesDir(outputDir string, doc domain.Document) string {
	return filepath.Join(outputDir, doc.BaseName()+"_pages")
}

func writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
