// Package preview contains the render orchestrator and the cache and
// memoization layer that wraps it.
//
// The orchestrator resolves a content identifier, classifies the content,
// and dispatches to the cheapest rendering strategy that can faithfully
// display it: integer raster upscaling, lightweight vector rasterization,
// procedural visualization, or delegation to the remote browser renderer.
// Every terminal path produces either a finished 1200×1200 PNG preview or
// an explicit failure; nothing here touches the cache.
package preview

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/stampworks/previewd/pkg/browser"
	"github.com/stampworks/previewd/pkg/classify"
	"github.com/stampworks/previewd/pkg/compose"
	"github.com/stampworks/previewd/pkg/errors"
	"github.com/stampworks/previewd/pkg/stamp"
	"github.com/stampworks/previewd/pkg/vector"
	"github.com/stampworks/previewd/pkg/waveform"
)

// Preview is the finished artifact for one stamp: an exactly 1200×1200
// losslessly compressed PNG plus descriptive metadata attached as headers
// or tags on the stored artifact.
type Preview struct {
	PNG      []byte
	Metadata map[string]string
}

// ContentFetcher downloads raw stamp content.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// BrowserRenderer is the remote headless-browser boundary the orchestrator
// depends on.
type BrowserRenderer interface {
	RenderURL(ctx context.Context, url string, opts browser.RenderOptions) ([]byte, error)
	RenderHTML(ctx context.Context, html string, opts browser.RenderOptions) ([]byte, error)
	RenderMarkup(ctx context.Context, p browser.MarkupParams) ([]byte, error)
}

// Renderer is the top-level render orchestrator. It is stateless with
// respect to caching; callers own artifact persistence.
type Renderer struct {
	Resolver   stamp.Resolver
	Fetcher    ContentFetcher
	Browser    BrowserRenderer
	Classifier *classify.Classifier

	// ContentBase is the absolute content-serving endpoint, e.g.
	// "https://stamps.example.com/s". Root-relative references in markup
	// resolve against its origin.
	ContentBase string

	Logger *log.Logger
}

// Render resolves, classifies, and renders the stamp for identifier.
func (r *Renderer) Render(ctx context.Context, identifier string) (*Preview, error) {
	s, err := r.Resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResolve, err, "resolve %s", identifier)
	}
	return r.RenderStamp(ctx, s)
}

// RenderStamp renders an already-resolved stamp.
func (r *Renderer) RenderStamp(ctx context.Context, s *stamp.Stamp) (*Preview, error) {
	logger := r.logger().With("identifier", s.Identifier, "mimetype", s.MimeType)

	// The procedural path needs no content at all; everything else is
	// classified from the declared type plus the raw bytes.
	if strings.HasPrefix(strings.ToLower(s.MimeType), "audio/") {
		return r.renderAudio(s)
	}

	content, servedType, err := r.Fetcher.Fetch(ctx, s.SourceURL)
	if err != nil {
		return nil, err
	}

	mime := s.MimeType
	if mime == "" {
		mime = servedType
	}

	res := r.Classifier.Classify(mime, content)
	logger.Info("classified content",
		"strategy", res.Strategy,
		"recursive", res.Recursive,
		"complex", res.Complex)

	switch res.Strategy {
	case classify.StrategyRaster:
		return r.renderRaster(ctx, s, content)
	case classify.StrategyVector:
		return r.renderVector(content, res)
	case classify.StrategyBrowser:
		return r.renderBrowser(ctx, s, mime, content, res)
	case classify.StrategyAudio:
		return r.renderAudio(s)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "no strategy for mimetype %q", mime)
	}
}

// renderRaster decodes pixel content and block-upscales it. Decode
// failures fall through to the browser path: some raster subtypes the
// pixel decoder cannot parse are exactly the ones a full browser can.
func (r *Renderer) renderRaster(ctx context.Context, s *stamp.Stamp, content []byte) (*Preview, error) {
	img, format, err := compose.Decode(content)
	if err != nil {
		r.logger().Warn("raster decode failed, falling back to browser",
			"identifier", s.Identifier, "err", err)
		return r.renderRasterViaBrowser(ctx, s)
	}

	canvas, info := compose.UpscaleNearest(img)
	png, err := compose.EncodePNG(canvas)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{
		"conversion-method":   "raster-upscale",
		"rendering-engine":    "internal",
		"source-format":       format,
		"original-dimensions": fmt.Sprintf("%dx%d", info.SourceW, info.SourceH),
	}
	if info.Downscaled {
		meta["conversion-method"] = "raster-downscale"
	} else {
		meta["scale-factor"] = strconv.Itoa(info.Scale)
	}
	return &Preview{PNG: png, Metadata: meta}, nil
}

// renderRasterViaBrowser wraps the raw content URL in a centering template
// and lets the browser decode it.
func (r *Renderer) renderRasterViaBrowser(ctx context.Context, s *stamp.Stamp) (*Preview, error) {
	html := fmt.Sprintf(
		`<html><body style="margin:0;width:1200px;height:1200px;display:flex;align-items:center;justify-content:center;background:transparent">`+
			`<img src="%s" style="image-rendering:pixelated;max-width:100%%;max-height:100%%"/></body></html>`,
		s.SourceURL)

	shot, err := r.Browser.RenderHTML(ctx, html, browser.RenderOptions{Delay: browser.SimpleDelay})
	if err != nil {
		return nil, err
	}
	return r.finishScreenshot(shot, map[string]string{
		"conversion-method": "browser-raster-fallback",
		"rendering-engine":  "browser",
	})
}

func (r *Renderer) renderVector(content []byte, res classify.Result) (*Preview, error) {
	img, err := vector.Default().Rasterize(content, vector.Options{
		Size:           compose.CanvasSize,
		StripAnimation: res.Animated,
	})
	if err != nil {
		return nil, err
	}
	png, err := compose.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	meta := map[string]string{
		"conversion-method": "vector-rasterize",
		"rendering-engine":  "internal",
	}
	if res.Animated {
		meta["animation-stripped"] = "true"
	}
	return &Preview{PNG: png, Metadata: meta}, nil
}

func (r *Renderer) renderBrowser(ctx context.Context, s *stamp.Stamp, mime string, content []byte, res classify.Result) (*Preview, error) {
	meta := map[string]string{
		"rendering-engine": "browser",
		"recursive":        strconv.FormatBool(res.Recursive),
	}

	var shot []byte
	var err error
	switch {
	case strings.HasPrefix(mime, "video/"):
		shot, err = r.Browser.RenderURL(ctx, s.SourceURL, browser.RenderOptions{Delay: browser.SimpleDelay})
		meta["conversion-method"] = "video-first-frame"
	case mime == "image/svg+xml":
		// Vector content embedding foreign markup: the browser renders
		// the markup inline so the embedded document participates.
		shot, err = r.Browser.RenderMarkup(ctx, browser.MarkupParams{
			HTML:    string(content),
			PageURL: r.pageURL(s.Identifier),
		})
		meta["conversion-method"] = "browser-svg"
	default:
		params := browser.MarkupParams{
			HTML:      string(content),
			PageURL:   r.pageURL(s.Identifier),
			Recursive: res.Recursive,
			Complex:   res.Complex,
		}
		if res.SimpleIframe {
			params.IframeTarget = r.absoluteURL(res.IframeTarget)
			meta["conversion-method"] = "browser-iframe-target"
		} else {
			meta["conversion-method"] = "browser-html"
		}
		shot, err = r.Browser.RenderMarkup(ctx, params)
	}
	if err != nil {
		return nil, err
	}
	return r.finishScreenshot(shot, meta)
}

func (r *Renderer) renderAudio(s *stamp.Stamp) (*Preview, error) {
	img := waveform.Render(s.Identifier, compose.CanvasSize)
	png, err := compose.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &Preview{
		PNG: png,
		Metadata: map[string]string{
			"conversion-method": "procedural-waveform",
			"rendering-engine":  "internal",
		},
	}, nil
}

// finishScreenshot normalizes a raw screenshot onto the preview canvas.
func (r *Renderer) finishScreenshot(shot []byte, meta map[string]string) (*Preview, error) {
	img, _, err := compose.Decode(shot)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "decode screenshot")
	}
	b := img.Bounds()
	meta["original-dimensions"] = fmt.Sprintf("%dx%d", b.Dx(), b.Dy())

	png, err := compose.EncodePNG(compose.CenterOnCanvas(img))
	if err != nil {
		return nil, err
	}
	return &Preview{PNG: png, Metadata: meta}, nil
}

// pageURL is the absolute content-serving URL for an identifier.
func (r *Renderer) pageURL(identifier string) string {
	return strings.TrimSuffix(r.ContentBase, "/") + "/" + url.PathEscape(identifier)
}

// absoluteURL resolves a possibly root-relative reference against the
// content endpoint's origin.
func (r *Renderer) absoluteURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(r.ContentBase)
	if err != nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}

func (r *Renderer) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}
