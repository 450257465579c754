package backend

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func TestTesseract_Recognize(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 200, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString("Hello PDF")

	b, err := New(context.Background(), KindTesseract, "base", Options{Languages: []string{"eng"}})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "tesseract/base", b.Name())

	out, err := b.Recognize(context.Background(), []domain.Page{{Document: "hello.png", Number: 1, Image: img}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].PageNumber)
	assert.Equal(t, "tesseract/base", out[0].Backend)
}

// blockingClient stands in for gosseract: Text waits until release is
// closed and the number of clients reading at once is tracked.
type blockingClient struct {
	release   <-chan struct{}
	active    *atomic.Int32
	maxActive *atomic.Int32
}

func (c *blockingClient) Version() string                     { return "fake" }
func (c *blockingClient) SetLanguage(...string) error         { return nil }
func (c *blockingClient) SetImageFromBytes(data []byte) error { return nil }
func (c *blockingClient) Close() error                        { return nil }

func (c *blockingClient) Text() (string, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		m := c.maxActive.Load()
		if n <= m || c.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	<-c.release
	return "text", nil
}

func TestTesseract_TimedOutRunBlocksNextPage(t *testing.T) {
	release := make(chan struct{})
	var active, maxActive atomic.Int32
	engine := &Tesseract{
		mode:      Modes()[0],
		languages: DefaultLanguages,
		newClient: func() ocrClient {
			return &blockingClient{release: release, active: &active, maxActive: &maxActive}
		},
		lease:  NewLease(),
		logger: observability.Nop(),
	}
	page := domain.Page{Document: "slow.png", Number: 1, Image: image.NewGray(image.Rect(0, 0, 4, 4))}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := engine.recognizePage(ctx, page)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	// The first run is still inside Text, so the second page must wait.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, err = engine.recognizePage(ctx2, page)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, int32(1), maxActive.Load())
	assert.True(t, engine.lease.Held())

	close(release)
	require.Eventually(t, func() bool { return !engine.lease.Held() }, time.Second, 5*time.Millisecond)

	text, err := engine.recognizePage(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "text", text)
	assert.Equal(t, int32(1), maxActive.Load())
}
