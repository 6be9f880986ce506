// Package vector rasterizes SVG markup with a lightweight non-interactive
// engine.
//
// The classifier has already routed anything with embedded foreign markup
// to the browser path, so this package only sees plain vector content. It
// normalizes dimensions, strips animation declarations when flagged (the
// rasterizer has no time dimension), letterboxes the drawing into the
// target square, and rasterizes. Output is deterministic for identical
// input markup.
package vector

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/stampworks/previewd/pkg/errors"
)

// Options configures a rasterization.
type Options struct {
	// Size is the target square edge length. Defaults to 1200.
	Size int

	// StripAnimation removes <style> blocks and inline animation
	// declarations before rasterizing.
	StripAnimation bool

	// Padding fills the letterbox area. Nil means transparent.
	Padding color.Color
}

// Rasterizer converts vector markup to raster images. The zero value is
// not usable; obtain the shared process-wide instance with [Default].
type Rasterizer struct{}

var (
	defaultOnce sync.Once
	defaultInst *Rasterizer
)

// Default returns the shared rasterizer handle. Initialization happens at
// most once; the handle is reentrant and treated as read-only for the
// process lifetime.
func Default() *Rasterizer {
	defaultOnce.Do(func() {
		defaultInst = &Rasterizer{}
	})
	return defaultInst
}

// Rasterize renders svg onto a Size×Size canvas and returns the pixels.
// Any engine failure is terminal for the content; there is no internal
// fallback.
//
// The drawing is placed with a single uniform scale via the icon's target
// rectangle rather than a transform group in the markup; the engine does
// not apply group transforms, so placement has to happen at the raster
// stage.
func (r *Rasterizer) Rasterize(svg []byte, opts Options) (img *image.NRGBA, err error) {
	if opts.Size <= 0 {
		opts.Size = 1200
	}

	// The engine panics on some malformed path data; adversarial input
	// must surface as a render failure, not a crash.
	defer func() {
		if p := recover(); p != nil {
			img = nil
			err = errors.New(errors.ErrCodeRender, "rasterize svg: %v", p)
		}
	}()

	markup := string(svg)
	if opts.StripAnimation {
		markup = stripAnimation(markup)
	}

	doc, err := parseDocument(markup)
	if err != nil {
		return nil, err
	}

	icon, err := oksvg.ReadIconStream(strings.NewReader(normalizeRoot(doc)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "parse svg")
	}

	size := float64(opts.Size)
	ratio := min(size/doc.Width, size/doc.Height)
	drawW := doc.Width * ratio
	drawH := doc.Height * ratio
	offX := (size - drawW) / 2
	offY := (size - drawH) / 2

	out := image.NewNRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	if opts.Padding != nil {
		if _, _, _, a := opts.Padding.RGBA(); a > 0 {
			draw.Draw(out, out.Bounds(), image.NewUniform(opts.Padding), image.Point{}, draw.Src)
		}
	}

	icon.SetTarget(offX, offY, drawW, drawH)
	scanner := rasterx.NewScannerGV(opts.Size, opts.Size, out, out.Bounds())
	icon.Draw(rasterx.NewDasher(opts.Size, opts.Size, scanner), 1)
	return out, nil
}

// normalizeRoot rebuilds the markup with a root tag carrying an explicit
// viewBox resolved from the document geometry. Source dimensions are often
// percentages or absent entirely; the engine needs a concrete viewBox to
// map coordinates onto the target rectangle.
func normalizeRoot(doc *document) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="%g %g %g %g">`,
		doc.MinX, doc.MinY, doc.Width, doc.Height)
	b.WriteString(doc.Inner)
	b.WriteString(`</svg>`)
	return b.String()
}
