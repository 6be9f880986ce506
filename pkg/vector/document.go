package vector

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stampworks/previewd/pkg/errors"
)

// document holds the resolved geometry and inner markup of an SVG root.
type document struct {
	Width, Height float64 // natural drawing dimensions
	MinX, MinY    float64 // viewBox origin
	Inner         string  // markup between the root tags
}

// fallbackSize is used when markup declares neither usable dimensions nor
// a viewBox.
const fallbackSize = 512.0

var (
	rootTagRe  = regexp.MustCompile(`(?is)<svg\b[^>]*>`)
	attrRe     = regexp.MustCompile(`(?is)([a-zA-Z_:][-a-zA-Z0-9_:.]*)\s*=\s*["']([^"']*)["']`)
	styleTagRe = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	smilRe     = regexp.MustCompile(`(?is)<(animate|animateTransform|animateMotion|set)\b[^>]*?(?:/>|>.*?</\s*(?:animate|animateTransform|animateMotion|set)\s*>)`)
	inlineAnim = regexp.MustCompile(`(?i)animation[a-z-]*\s*:[^;"']*;?`)
)

// parseDocument extracts the root tag geometry and inner content.
//
// Dimension resolution follows the usual precedence: explicit pixel
// width/height win, percentages and missing values fall back to the
// viewBox, and a bare default is used when neither exists.
func parseDocument(markup string) (*document, error) {
	loc := rootTagRe.FindStringIndex(markup)
	if loc == nil {
		return nil, errors.New(errors.ErrCodeRender, "no svg root element")
	}
	rootTag := markup[loc[0]:loc[1]]

	inner := markup[loc[1]:]
	if i := strings.LastIndex(inner, "</svg>"); i >= 0 {
		inner = inner[:i]
	}

	attrs := map[string]string{}
	for _, m := range attrRe.FindAllStringSubmatch(rootTag, -1) {
		attrs[strings.ToLower(m[1])] = m[2]
	}

	doc := &document{Inner: inner}

	var vbW, vbH float64
	hasViewBox := false
	if vb, ok := attrs["viewbox"]; ok {
		parts := strings.FieldsFunc(vb, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
		if len(parts) == 4 {
			vals := make([]float64, 4)
			valid := true
			for i, p := range parts {
				v, err := strconv.ParseFloat(p, 64)
				if err != nil {
					valid = false
					break
				}
				vals[i] = v
			}
			if valid && vals[2] > 0 && vals[3] > 0 {
				doc.MinX, doc.MinY, vbW, vbH = vals[0], vals[1], vals[2], vals[3]
				hasViewBox = true
			}
		}
	}

	w := resolveDimension(attrs["width"])
	h := resolveDimension(attrs["height"])

	switch {
	case w > 0 && h > 0:
		doc.Width, doc.Height = w, h
	case hasViewBox:
		doc.Width, doc.Height = vbW, vbH
	case w > 0:
		doc.Width, doc.Height = w, w
	case h > 0:
		doc.Width, doc.Height = h, h
	default:
		doc.Width, doc.Height = fallbackSize, fallbackSize
	}

	// Without a viewBox the inner coordinates are already in pixel space
	// starting at the origin.
	if !hasViewBox {
		doc.MinX, doc.MinY = 0, 0
	}

	return doc, nil
}

// resolveDimension parses a width/height attribute value. Percentages and
// non-pixel units resolve to 0 (caller falls back to the viewBox).
func resolveDimension(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasSuffix(value, "%") {
		return 0
	}
	value = strings.TrimSuffix(value, "px")
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// stripAnimation removes <style> blocks, SMIL animation elements, and
// inline animation declarations. The rasterizer renders a single instant,
// so any time-dependent styling would otherwise freeze at an arbitrary
// engine-defined state.
func stripAnimation(markup string) string {
	markup = styleTagRe.ReplaceAllString(markup, "")
	markup = smilRe.ReplaceAllString(markup, "")
	return inlineAnim.ReplaceAllString(markup, "")
}
