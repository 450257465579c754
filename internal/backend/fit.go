package backend

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Fit downscales img so that its longer side is at most maxSide pixels,
// keeping the aspect ratio. Smaller images are returned unchanged.
func Fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxSide
		nh = max(1, h*maxSide/w)
	} else {
		nh = maxSide
		nw = max(1, w*maxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodePNG encodes img losslessly for upload to an engine.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pageInput prepares a page image for an engine working at mode's
// resolution. Cropping modes keep full resolution so the engine can tile.
func pageInput(img image.Image, mode Mode) ([]byte, error) {
	if !mode.Crop {
		img = Fit(img, mode.BaseSize)
	}
	return EncodePNG(img)
}
