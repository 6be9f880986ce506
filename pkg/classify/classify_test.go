package classify

import (
	"strings"
	"testing"
)

func TestClassifyStrategies(t *testing.T) {
	c := &Classifier{}

	tests := []struct {
		name    string
		mime    string
		content string
		want    Strategy
	}{
		{"png", "image/png", "", StrategyRaster},
		{"gif", "image/gif", "", StrategyRaster},
		{"webp", "image/webp", "", StrategyRaster},
		{"jpeg with params", "image/jpeg; charset=binary", "", StrategyRaster},
		{"mime whitespace", "  IMAGE/PNG  ", "", StrategyRaster},
		{"svg", "image/svg+xml", `<svg xmlns="http://www.w3.org/2000/svg"/>`, StrategyVector},
		{"html", "text/html", "<html><body>hi</body></html>", StrategyBrowser},
		{"mp3", "audio/mpeg", "", StrategyAudio},
		{"wav", "audio/wav", "", StrategyAudio},
		{"mp4", "video/mp4", "", StrategyBrowser},
		{"pdf", "application/pdf", "", StrategyUnsupported},
		{"octet-stream", "application/octet-stream", "", StrategyUnsupported},
		{"empty mime", "", "", StrategyUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.mime, []byte(tt.content))
			if got.Strategy != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.mime, got.Strategy, tt.want)
			}
		})
	}
}

func TestClassifySVGForeignObject(t *testing.T) {
	c := &Classifier{}
	svg := `<svg xmlns="http://www.w3.org/2000/svg"><foreignObject><div>html inside</div></foreignObject></svg>`

	got := c.Classify("image/svg+xml", []byte(svg))
	if got.Strategy != StrategyBrowser {
		t.Errorf("SVG with foreignObject should route to browser, got %q", got.Strategy)
	}
}

func TestClassifySVGAnimation(t *testing.T) {
	c := &Classifier{}

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"static", `<svg><rect width="10" height="10"/></svg>`, false},
		{"keyframes", `<svg><style>@keyframes spin { to { transform: rotate(360deg) } }</style></svg>`, true},
		{"css animation", `<svg><style>.x { animation: spin 2s linear infinite }</style></svg>`, true},
		{"smil animate", `<svg><rect><animate attributeName="x" dur="1s"/></rect></svg>`, true},
		{"animateTransform", `<svg><g><animateTransform attributeName="transform" type="rotate"/></g></svg>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify("image/svg+xml", []byte(tt.content))
			if got.Strategy != StrategyVector {
				t.Fatalf("Strategy = %q, want vector", got.Strategy)
			}
			if got.Animated != tt.want {
				t.Errorf("Animated = %v, want %v", got.Animated, tt.want)
			}
		})
	}
}

func TestClassifyHTMLRecursive(t *testing.T) {
	c := &Classifier{ContentHosts: []string{"stampcontent.example.com"}}

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"plain", "<html><body><p>hello</p></body></html>", false},
		{"iframe", `<html><iframe src="https://x.test/a"></iframe></html>`, true},
		{"content host", `<img src="https://stampcontent.example.com/a.png">`, true},
		{"root-relative src", `<script src="/content/loader.js"></script>`, true},
		{"embedded address", "<div data-ref=\"" + strings.Repeat("ab", 32) + "\"></div>", true},
		{"protocol-relative not recursive", `<img src="//cdn.test/a.png">`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify("text/html", []byte(tt.content))
			if got.Recursive != tt.want {
				t.Errorf("Recursive = %v, want %v", got.Recursive, tt.want)
			}
		})
	}
}

func TestClassifyHTMLComplex(t *testing.T) {
	c := &Classifier{}

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"static", "<html><body><h1>hi</h1></body></html>", false},
		{"canvas", `<html><canvas id="c"></canvas></html>`, true},
		{"raf loop", `<script>requestAnimationFrame(draw)</script>`, true},
		{"async fetch", `<script>fetch("/data").then(r => r.json())</script>`, true},
		{"timer", `<script>setTimeout(paint, 100)</script>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify("text/html", []byte(tt.content))
			if got.Complex != tt.want {
				t.Errorf("Complex = %v, want %v", got.Complex, tt.want)
			}
		})
	}
}

func TestClassifySimpleIframe(t *testing.T) {
	c := &Classifier{}

	t.Run("short wrapper extracts target", func(t *testing.T) {
		html := `<html><body><iframe src="/s/abc123"></iframe></body></html>`
		got := c.Classify("text/html", []byte(html))
		if !got.SimpleIframe {
			t.Fatal("expected SimpleIframe")
		}
		if got.IframeTarget != "/s/abc123" {
			t.Errorf("IframeTarget = %q, want /s/abc123", got.IframeTarget)
		}
	})

	t.Run("oversized wrapper is not simple", func(t *testing.T) {
		html := `<html><body>` + strings.Repeat("<!-- padding -->", 40) +
			`<iframe src="/s/abc123"></iframe></body></html>`
		got := c.Classify("text/html", []byte(html))
		if got.SimpleIframe {
			t.Error("documents at or over the size bound should not be simple wrappers")
		}
	})

	t.Run("two iframes is not simple", func(t *testing.T) {
		html := `<iframe src="/a"></iframe><iframe src="/b"></iframe>`
		got := c.Classify("text/html", []byte(html))
		if got.SimpleIframe {
			t.Error("multiple iframes should not count as a simple wrapper")
		}
	})

	t.Run("complex wrapper is not simple", func(t *testing.T) {
		html := `<iframe src="/a"></iframe><script>setInterval(x, 10)</script>`
		got := c.Classify("text/html", []byte(html))
		if got.SimpleIframe {
			t.Error("complex documents should not count as simple wrappers")
		}
	})
}
