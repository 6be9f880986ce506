// Package waveform synthesizes a deterministic stylized preview for
// content types with no visual representation.
//
// Audio stamps get a 64-bar waveform whose bar heights and colors are
// derived purely from the content identifier: identical identifiers
// produce byte-identical images across calls and across time. There is no
// dependency on the wall clock or on randomness outside the seed.
package waveform

import (
	"image"
	"math"

	"github.com/fogleman/gg"
)

const (
	// BarCount is the number of vertical bars in the waveform.
	BarCount = 64

	barGapFraction = 0.35 // fraction of each slot left empty between bars
	sideMargin     = 0.08 // horizontal margin as a fraction of the canvas
	maxBarFraction = 0.62 // tallest possible bar relative to the canvas
)

// The warm palette used for bars, cycled by the seeded generator.
var palette = [4][3]float64{
	{0.91, 0.42, 0.21}, // burnt orange
	{0.97, 0.77, 0.62}, // peach
	{1.00, 0.65, 0.17}, // amber
	{0.91, 0.28, 0.33}, // warm red
}

// background is the fixed dark backdrop behind the bars.
var background = [3]float64{0.10, 0.10, 0.18}

// lcg is a linear-congruential generator with the Numerical Recipes
// constants. It is used instead of math/rand so the produced sequence is
// fixed for all time regardless of runtime changes.
type lcg struct{ state uint32 }

func (g *lcg) next() uint32 {
	g.state = g.state*1664525 + 1013904223
	return g.state
}

// float returns a value in [0, 1).
func (g *lcg) float() float64 {
	return float64(g.next()>>8) / float64(1<<24)
}

// intn returns a value in [0, n).
func (g *lcg) intn(n int) int {
	return int(g.next() % uint32(n))
}

// seedFrom derives the generator seed from the identifier's characters.
func seedFrom(identifier string) uint32 {
	var s uint32
	for _, c := range []byte(identifier) {
		s = s*31 + uint32(c)
	}
	return s
}

// Render draws the waveform for identifier on a size×size canvas.
func Render(identifier string, size int) image.Image {
	rng := &lcg{state: seedFrom(identifier)}

	dc := gg.NewContext(size, size)
	dc.SetRGB(background[0], background[1], background[2])
	dc.Clear()

	fsize := float64(size)
	margin := fsize * sideMargin
	slot := (fsize - 2*margin) / BarCount
	barW := slot * (1 - barGapFraction)
	centerY := fsize / 2
	maxBar := fsize * maxBarFraction

	for i := range BarCount {
		// Half-sine envelope: bars swell toward the middle of the canvas.
		envelope := math.Sin(math.Pi * (float64(i) + 0.5) / BarCount)
		variation := 0.45 + 0.55*rng.float()
		height := maxBar * envelope * variation

		c := palette[rng.intn(len(palette))]
		dc.SetRGB(c[0], c[1], c[2])

		x := margin + float64(i)*slot + (slot-barW)/2
		dc.DrawRectangle(x, centerY-height/2, barW, height)
		dc.Fill()
	}

	drawPlayIcon(dc, fsize)

	return dc.Image()
}

// drawPlayIcon overlays a centered translucent circle with a triangular
// play glyph.
func drawPlayIcon(dc *gg.Context, fsize float64) {
	cx, cy := fsize/2, fsize/2
	radius := fsize * 0.13

	dc.SetRGBA(0, 0, 0, 0.45)
	dc.DrawCircle(cx, cy, radius)
	dc.Fill()

	// Triangle pointing right, shifted slightly so it reads centered.
	tri := radius * 0.55
	dc.SetRGBA(1, 1, 1, 0.92)
	dc.MoveTo(cx-tri*0.6, cy-tri)
	dc.LineTo(cx-tri*0.6, cy+tri)
	dc.LineTo(cx+tri, cy)
	dc.ClosePath()
	dc.Fill()
}
