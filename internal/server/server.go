// Package server provides the HTTP surface for previewd.
//
// The contract is "always return something displayable": every content
// failure turns into a redirect to the static fallback logo with a
// diagnostic header, never a hard error status.
package server

import (
	"net/http"
	"net/textproto"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/stampworks/previewd/pkg/preview"
)

// Cache-control values: long-lived immutable for genuine successes, short
// for fallback responses so a recovered renderer is picked up quickly.
const (
	cacheControlSuccess  = "public, max-age=604800, immutable"
	cacheControlFallback = "public, max-age=60"
)

// Server handles preview requests.
type Server struct {
	svc         *preview.Service
	fallbackURL string
	logger      *log.Logger
}

// New creates a Server around the memoization service. fallbackURL is the
// static logo redirected to when no preview can be produced.
func New(svc *preview.Service, fallbackURL string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{svc: svc, fallbackURL: fallbackURL, logger: logger}
}

// Router builds the chi router with request-ID and logging middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/preview/{identifier}", s.handlePreview)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	refresh := r.URL.Query().Get("refresh") == "true"

	res, err := s.svc.Preview(r.Context(), identifier, refresh)
	if err != nil {
		// Content failures never reach here; this is infrastructure
		// breakage, and the contract is still a displayable response.
		s.logger.Error("preview failed", "identifier", identifier, "err", err)
		s.redirectFallback(w, r, "internal-error")
		return
	}

	if res.Fallback() {
		s.redirectFallback(w, r, res.Reason)
		return
	}

	writeMetadata(w, res.Metadata)
	w.Header().Set("X-Cache", res.Status)
	w.Header().Set("Cache-Control", cacheControlSuccess)

	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.PNG)
}

func (s *Server) redirectFallback(w http.ResponseWriter, r *http.Request, reason string) {
	w.Header().Set("X-Cache", preview.StatusFallback)
	w.Header().Set("X-Preview-Fallback", reason)
	w.Header().Set("Cache-Control", cacheControlFallback)
	http.Redirect(w, r, s.fallbackURL, http.StatusFound)
}

// writeMetadata attaches the artifact's metadata map as X- headers,
// e.g. conversion-method becomes X-Conversion-Method.
func writeMetadata(w http.ResponseWriter, metadata map[string]string) {
	for k, v := range metadata {
		w.Header().Set(textproto.CanonicalMIMEHeaderKey("X-"+k), v)
	}
}
