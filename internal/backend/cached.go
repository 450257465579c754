package backend

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"image"
	"io"
	"time"

	"github.com/spherical/ocr-pipeline/internal/cache"
	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/observability"
)

// Fingerprinter is implemented by engines whose output depends on settings
// beyond kind and mode. The fingerprint becomes part of every cache key, so
// changing the model or prompt never serves text read under the old one.
type Fingerprinter interface {
	Fingerprint() string
}

// settingsDigest hashes parts into a short key component.
func settingsDigest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Cached serves repeated pages from a cache and sends only misses to the
// wrapped engine. Output order always follows input order.
type Cached struct {
	inner    Backend
	settings string
	cache    cache.Client
	ttl      time.Duration
	logger   *observability.Logger
}

// NewCached wraps inner with c. Entries expire after ttl; zero keeps them.
func NewCached(inner Backend, c cache.Client, ttl time.Duration, logger *observability.Logger) *Cached {
	if logger == nil {
		logger = observability.Nop()
	}
	cached := &Cached{inner: inner, cache: c, ttl: ttl, logger: logger.WithOperation("cache")}
	if fp, ok := inner.(Fingerprinter); ok {
		cached.settings = fp.Fingerprint()
	}
	return cached
}

// Name reports the wrapped engine.
func (c *Cached) Name() string {
	return c.inner.Name()
}

// Recognize returns cached text for known pages and recognizes the rest.
// Cache failures are logged and treated as misses.
func (c *Cached) Recognize(ctx context.Context, pages []domain.Page) ([]domain.RawExtraction, error) {
	out := make([]domain.RawExtraction, len(pages))
	keys := make([]string, len(pages))

	var (
		missIdx   []int
		missPages []domain.Page
	)
	for i, page := range pages {
		keys[i] = cache.ExtractionKey(c.inner.Name(), c.settings, pixelDigest(page.Image))

		text, err := c.cache.Get(ctx, keys[i])
		if err == nil {
			out[i] = domain.RawExtraction{PageNumber: page.Number, Backend: c.inner.Name(), Text: string(text)}
			continue
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Page(page.Number).Msg("cache lookup failed")
		}
		missIdx = append(missIdx, i)
		missPages = append(missPages, page)
	}

	if len(missPages) == 0 {
		c.logger.Debug().Int("pages", len(pages)).Msg("all pages served from cache")
		return out, nil
	}

	fresh, err := c.inner.Recognize(ctx, missPages)
	if err != nil {
		return nil, err
	}

	for j, raw := range fresh {
		i := missIdx[j]
		out[i] = raw
		if err := c.cache.Set(ctx, keys[i], []byte(raw.Text), c.ttl); err != nil {
			c.logger.Warn().Err(err).Page(raw.PageNumber).Msg("cache store failed")
		}
	}
	return out, nil
}

// Close closes the wrapped engine. The cache belongs to the caller.
func (c *Cached) Close() error {
	return c.inner.Close()
}

// pixelDigest hashes the image size and its pixels so that identical
// renders share a key whatever file they came from.
func pixelDigest(img image.Image) []byte {
	h := sha256.New()
	if img == nil {
		return h.Sum(nil)
	}

	b := img.Bounds()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[0:4], uint32(b.Dx()))
	binary.BigEndian.PutUint32(dims[4:8], uint32(b.Dy()))
	h.Write(dims[:])

	switch m := img.(type) {
	case *image.RGBA:
		writeRows(h, m.Pix, m.Stride, b.Dx()*4, b.Dy())
	case *image.NRGBA:
		writeRows(h, m.Pix, m.Stride, b.Dx()*4, b.Dy())
	case *image.Gray:
		writeRows(h, m.Pix, m.Stride, b.Dx(), b.Dy())
	default:
		var px [8]byte
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := img.At(x, y).RGBA()
				binary.BigEndian.PutUint16(px[0:2], uint16(r))
				binary.BigEndian.PutUint16(px[2:4], uint16(g))
				binary.BigEndian.PutUint16(px[4:6], uint16(bl))
				binary.BigEndian.PutUint16(px[6:8], uint16(a))
				h.Write(px[:])
			}
		}
	}
	return h.Sum(nil)
}

func writeRows(h io.Writer, pix []byte, stride, rowLen, rows int) {
	for y := 0; y < rows; y++ {
		start := y * stride
		h.Write(pix[start : start+rowLen])
	}
}
