// Package classify inspects a stamp's declared content type and raw bytes
// to pick a rendering strategy.
//
// Classification is deliberately best-effort: substring and regexp sniffs
// over raw markup, not a parser. It only needs to route content to the
// cheapest renderer that can faithfully display it, and the heavy browser
// path is always a safe (if slow) destination for anything markup-like.
// Classification itself never fails; unsupported content yields
// StrategyUnsupported and the orchestrator turns that into a render failure.
package classify

import (
	"regexp"
	"strings"
)

// Strategy identifies which renderer a stamp is routed to.
type Strategy string

// The five terminal strategies.
const (
	StrategyRaster      Strategy = "raster-upscale"
	StrategyVector      Strategy = "vector-rasterize"
	StrategyBrowser     Strategy = "full-browser-render"
	StrategyAudio       Strategy = "procedural-visualize"
	StrategyUnsupported Strategy = "unsupported"
)

// Result carries the chosen strategy plus strategy-specific hints.
type Result struct {
	Strategy Strategy

	// Animated is set for SVG content that declares keyframe or SMIL
	// animation. The vector rasterizer has no time dimension, so these
	// declarations are stripped before rasterizing.
	Animated bool

	// Recursive is set for HTML that references other addressed content:
	// iframes, known content-hosting domains, root-relative script
	// sources, or embedded content addresses. Recursive content gets
	// URL-navigation rendering and extended timing.
	Recursive bool

	// Complex is set for HTML with canvas drawing, animation-frame
	// loops, or asynchronous script patterns. Complex content gets an
	// extended post-load delay.
	Complex bool

	// SimpleIframe is set for short static HTML that only wraps a single
	// embedded frame. Such wrappers are rendered by navigating directly
	// to the frame target, since network-idle detection never fires for
	// a page embedding a live sub-frame.
	SimpleIframe bool

	// IframeTarget is the src of the single wrapped frame when
	// SimpleIframe is set.
	IframeTarget string
}

// simpleIframeMaxSize bounds how large a wrapper document can be and
// still count as a simple iframe wrapper.
const simpleIframeMaxSize = 500

var (
	iframeSrcRe = regexp.MustCompile(`(?is)<iframe[^>]*\bsrc\s*=\s*["']([^"']+)["']`)

	// contentAddressRe matches embedded 64-hex content addresses, the
	// identifier format used across the content index.
	contentAddressRe = regexp.MustCompile(`[0-9a-fA-F]{64}`)

	// rootRelativeSrcRe matches script/img/iframe sources that resolve
	// against the serving origin, which only works when the page is
	// rendered by URL navigation on the content endpoint.
	rootRelativeSrcRe = regexp.MustCompile(`(?i)\b(?:src|href)\s*=\s*["']/[^/"']`)
)

// complexMarkers are script patterns that indicate the page paints after
// load: canvas drawing, animation-frame loops, async fetch/promise chains.
var complexMarkers = []string{
	"<canvas",
	"getcontext(",
	"requestanimationframe",
	"async ",
	"await ",
	"fetch(",
	".then(",
	"promise",
	"settimeout",
	"setinterval",
}

// animationMarkers are SVG animation declarations the rasterizer cannot
// honor: CSS keyframes and SMIL animation elements.
var animationMarkers = []string{
	"@keyframes",
	"animation:",
	"animation-name",
	"<animate",
	"<animatetransform",
	"<animatemotion",
	"<set ",
}

// Classifier picks rendering strategies. ContentHosts lists external
// hosting domains whose presence in markup marks the content recursive.
type Classifier struct {
	ContentHosts []string
}

// Classify applies the routing rules in priority order:
//
//  1. image/* (except SVG) → raster upscale
//  2. image/svg+xml → vector, unless it embeds foreign markup → browser
//  3. text/html → browser, with recursive/complex/simple-iframe hints
//  4. audio/* → procedural visualization
//  5. video/* → browser (first-frame capture)
//  6. anything else → unsupported
func (c *Classifier) Classify(mimeType string, content []byte) Result {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	switch {
	case mime == "image/svg+xml":
		return c.classifySVG(content)
	case strings.HasPrefix(mime, "image/"):
		return Result{Strategy: StrategyRaster}
	case mime == "text/html":
		return c.classifyHTML(content)
	case strings.HasPrefix(mime, "audio/"):
		return Result{Strategy: StrategyAudio}
	case strings.HasPrefix(mime, "video/"):
		return Result{Strategy: StrategyBrowser}
	default:
		return Result{Strategy: StrategyUnsupported}
	}
}

func (c *Classifier) classifySVG(content []byte) Result {
	lower := strings.ToLower(string(content))

	// SVG that embeds foreign markup needs a real layout engine; the
	// vector rasterizer would silently drop the embedded document.
	if strings.Contains(lower, "<foreignobject") {
		return Result{Strategy: StrategyBrowser}
	}

	return Result{
		Strategy: StrategyVector,
		Animated: containsAny(lower, animationMarkers),
	}
}

func (c *Classifier) classifyHTML(content []byte) Result {
	lower := strings.ToLower(string(content))

	r := Result{
		Strategy:  StrategyBrowser,
		Recursive: c.isRecursive(lower),
		Complex:   containsAny(lower, complexMarkers),
	}

	if !r.Complex && len(content) < simpleIframeMaxSize {
		if target, ok := singleIframeTarget(string(content)); ok {
			r.SimpleIframe = true
			r.IframeTarget = target
		}
	}
	return r
}

func (c *Classifier) isRecursive(lower string) bool {
	if strings.Contains(lower, "<iframe") {
		return true
	}
	for _, host := range c.ContentHosts {
		if strings.Contains(lower, strings.ToLower(host)) {
			return true
		}
	}
	if rootRelativeSrcRe.MatchString(lower) {
		return true
	}
	return contentAddressRe.MatchString(lower)
}

// singleIframeTarget reports the src of the document's iframe when it
// contains exactly one.
func singleIframeTarget(content string) (string, bool) {
	matches := iframeSrcRe.FindAllStringSubmatch(content, 2)
	if len(matches) != 1 {
		return "", false
	}
	return matches[0][1], true
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
