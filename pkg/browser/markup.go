package browser

import (
	"context"
	"regexp"
)

// MarkupParams describes one piece of HTML content to render, with the
// classifier's hints and the absolute URLs the orchestrator resolved.
type MarkupParams struct {
	// HTML is the raw markup.
	HTML string

	// PageURL is the absolute content-serving URL for the page, used for
	// URL-navigation mode so root-relative references resolve.
	PageURL string

	// IframeTarget is the absolute URL of the single embedded frame when
	// the content is a simple iframe wrapper. Empty otherwise.
	IframeTarget string

	// Recursive marks content that references other addressed content.
	Recursive bool

	// Complex marks content that paints after load.
	Complex bool
}

// loaderScriptRe matches script tags with root-relative sources. Those are
// loader-injected and cannot resolve when markup is submitted inline.
var loaderScriptRe = regexp.MustCompile(`(?is)<script[^>]*\bsrc\s*=\s*["']/[^"']*["'][^>]*>\s*</script>`)

// RenderMarkup renders HTML content using the mode the classifier hints
// call for:
//
//   - Simple iframe wrappers are rendered by navigating directly to the
//     embedded frame's target. A page that itself embeds a live sub-frame
//     never reaches network idle, so screenshotting the wrapper would
//     always hit the full timeout with nothing painted.
//   - Recursive or complex content is rendered by URL navigation on the
//     content-serving endpoint with extended delay and timeout.
//   - Plain static markup is submitted inline after stripping
//     loader-injected artifacts.
//
// Inline renders below the blank-paint threshold are retried once in
// URL-navigation mode with an extended delay, unless the content was
// already classified recursive.
func (c *Client) RenderMarkup(ctx context.Context, p MarkupParams) ([]byte, error) {
	if p.IframeTarget != "" {
		c.logger.Debug("rendering via iframe target", "url", p.IframeTarget)
		return c.RenderURL(ctx, p.IframeTarget, RenderOptions{Delay: SimpleDelay})
	}

	if p.Recursive || p.Complex {
		opts := RenderOptions{Delay: ComplexDelay, Timeout: ComplexTimeout}
		c.logger.Debug("rendering via url navigation", "url", p.PageURL, "recursive", p.Recursive, "complex", p.Complex)
		return c.RenderURL(ctx, p.PageURL, opts)
	}

	html := loaderScriptRe.ReplaceAllString(p.HTML, "")
	c.logger.Debug("rendering inline markup", "bytes", len(html))
	out, err := c.RenderHTML(ctx, html, RenderOptions{Delay: SimpleDelay})
	if err != nil {
		return nil, err
	}

	if len(out) < MinValidOutput && p.PageURL != "" {
		c.logger.Warn("undersized inline render, retrying via url navigation",
			"bytes", len(out), "url", p.PageURL)
		return c.RenderURL(ctx, p.PageURL, RenderOptions{Delay: ComplexDelay, Timeout: ComplexTimeout})
	}
	return out, nil
}
