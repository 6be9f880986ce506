package stamp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/stampworks/previewd/pkg/errors"
)

func TestHTTPResolverResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stamp/abc123" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Stamp{
			Identifier:     "abc123",
			SourceURL:      "https://content.test/s/abc123",
			MimeType:       "image/png",
			SequenceNumber: 42,
		})
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL + "/api/stamp/")
	s, err := r.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.MimeType != "image/png" || s.SequenceNumber != 42 {
		t.Errorf("descriptor = %+v", s)
	}
}

func TestHTTPResolverFillsIdentifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Stamp{MimeType: "text/html"})
	}))
	defer srv.Close()

	s, err := NewHTTPResolver(srv.URL).Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.Identifier != "abc123" {
		t.Errorf("Identifier = %q, want the requested one filled in", s.Identifier)
	}
}

func TestHTTPResolverNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewHTTPResolver(srv.URL).Resolve(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTPResolverServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPResolver(srv.URL).Resolve(context.Background(), "abc")
	if pkgerrors.GetCode(err) != pkgerrors.ErrCodeResolve {
		t.Errorf("code = %q, want %q", pkgerrors.GetCode(err), pkgerrors.ErrCodeResolve)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("a 500 must not read as not-found")
	}
}

func TestFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/gif")
		w.Write([]byte("GIF89a"))
	}))
	defer srv.Close()

	data, mime, err := NewFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(data) != "GIF89a" {
		t.Errorf("data = %q", data)
	}
	if mime != "image/gif" {
		t.Errorf("mime = %q", mime)
	}
}

func TestFetcherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, _, err := NewFetcher().Fetch(context.Background(), srv.URL)
	if pkgerrors.GetCode(err) != pkgerrors.ErrCodeFetch {
		t.Errorf("code = %q, want %q", pkgerrors.GetCode(err), pkgerrors.ErrCodeFetch)
	}
}
