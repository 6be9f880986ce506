// Package compose implements the pixel-level canvas operations that
// normalize every rendered output to the fixed 1200×1200 preview canvas.
//
// Two paths exist: integer nearest-neighbor upscaling for decoded raster
// content, which preserves the hard pixel edges of low-resolution source
// art, and smooth center-on-canvas compositing for screenshots coming back
// from the browser renderer. Both finish with lossless PNG encoding at
// maximum compression effort.
package compose

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/stampworks/previewd/pkg/errors"

	// Decoders for the raster subtypes the pixel path supports. Animated
	// formats decode to their first frame.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// CanvasSize is the fixed edge length of the preview canvas.
const CanvasSize = 1200

// minUpscale is the smallest nearest-neighbor factor applied to source
// images small enough to take it.
const minUpscale = 2

// UpscaleInfo describes how a source image was placed on the canvas.
type UpscaleInfo struct {
	Scale      int // nearest-neighbor factor; 0 when the smooth path was used
	SourceW    int
	SourceH    int
	OffsetX    int
	OffsetY    int
	Downscaled bool // true when the source exceeded the canvas and was smoothly reduced
}

// Decode parses raster bytes into an image. Multi-frame formats are
// reduced to their first frame by the registered decoders.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeDecode, err, "decode raster content")
	}
	return img, format, nil
}

// UpscaleNearest places src on a transparent 1200×1200 canvas using
// integer nearest-neighbor replication.
//
// The factor is max(2, floor(1200/max(w,h))), clamped down so the scaled
// image never exceeds the canvas in either dimension. Sources larger than
// the canvas cannot be block-replicated at all and are smoothly reduced
// instead (Downscaled is set in that case).
func UpscaleNearest(src image.Image) (*image.NRGBA, UpscaleInfo) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	maxDim := max(w, h)
	if maxDim > CanvasSize {
		out := CenterOnCanvas(src)
		info := UpscaleInfo{SourceW: w, SourceH: h, Downscaled: true}
		return out, info
	}

	scale := max(minUpscale, CanvasSize/maxDim)
	for scale > 1 && (w*scale > CanvasSize || h*scale > CanvasSize) {
		scale--
	}

	scaledW, scaledH := w*scale, h*scale
	offX := (CanvasSize - scaledW) / 2
	offY := (CanvasSize - scaledH) / 2

	dst := image.NewNRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	for y := range h {
		for x := range w {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			block := image.Rect(
				offX+x*scale,
				offY+y*scale,
				offX+(x+1)*scale,
				offY+(y+1)*scale,
			)
			draw.Draw(dst, block, &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
	}

	return dst, UpscaleInfo{
		Scale:   scale,
		SourceW: w,
		SourceH: h,
		OffsetX: offX,
		OffsetY: offY,
	}
}

// CenterOnCanvas fits src into the 1200×1200 canvas with a single uniform
// scale factor (which may be below 1), smooth interpolation, and centered
// placement on a transparent background.
func CenterOnCanvas(src image.Image) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewNRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	}

	ratio := min(float64(CanvasSize)/float64(w), float64(CanvasSize)/float64(h))
	newW := max(1, int(float64(w)*ratio+0.5))
	newH := max(1, int(float64(h)*ratio+0.5))
	if newW > CanvasSize {
		newW = CanvasSize
	}
	if newH > CanvasSize {
		newH = CanvasSize
	}

	resized := imaging.Resize(src, newW, newH, imaging.Lanczos)

	dst := image.NewNRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	offX := (CanvasSize - newW) / 2
	offY := (CanvasSize - newH) / 2
	draw.Draw(dst, image.Rect(offX, offY, offX+newW, offY+newH), resized, resized.Bounds().Min, draw.Over)
	return dst
}

// EncodePNG encodes img losslessly at maximum compression effort.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return buf.Bytes(), nil
}
