package preview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const ogPage = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="Shibuya Crossing">
<meta property="og:description" content="Meet at the scramble">
<meta property="og:image" content="/img/first.jpg">
<meta property="og:image" content="https://cdn.test/second.jpg">
<meta property="og:site_name" content="Tokyo Guide">
</head><body></body></html>`

func serveHTML(body string, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestFetchOpenGraph(t *testing.T) {
	srv := serveHTML(ogPage, http.StatusOK)
	defer srv.Close()

	meta, err := NewScraper(time.Second, WithPrivateNetworks()).Fetch(context.Background(), srv.URL+"/spot")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	img := srv.URL + "/img/first.jpg"
	want := Metadata{Title: "Shibuya Crossing", Description: "Meet at the scramble", Image: &img, SiteName: "Tokyo Guide"}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchFallbacks(t *testing.T) {
	srv := serveHTML(`<html><head><title> Plain page </title><meta name="description" content="no og here"></head></html>`, http.StatusOK)
	defer srv.Close()

	meta, err := NewScraper(time.Second, WithPrivateNetworks()).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Title != "Plain page" || meta.Description != "no og here" || meta.Image != nil {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestFetchFailures(t *testing.T) {
	empty := serveHTML(`<html><body>nothing</body></html>`, http.StatusOK)
	defer empty.Close()
	missing := serveHTML(`gone`, http.StatusNotFound)
	defer missing.Close()
	jsonSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer jsonSrv.Close()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	s := NewScraper(100*time.Millisecond, WithPrivateNetworks())
	if _, err := s.Fetch(context.Background(), empty.URL); !errors.Is(err, ErrNoMetadata) {
		t.Fatalf("expected no metadata, got %v", err)
	}
	for name, target := range map[string]string{"404": missing.URL, "json": jsonSrv.URL, "timeout": slow.URL} {
		if _, err := s.Fetch(context.Background(), target); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	for _, bad := range []string{"ftp://x", "not a url", "/relative"} {
		if _, err := s.Fetch(context.Background(), bad); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("%q: expected invalid url, got %v", bad, err)
		}
	}
}

func TestFetchRefusesNonPublicAddresses(t *testing.T) {
	srv := serveHTML(ogPage, http.StatusOK)
	defer srv.Close()
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL, http.StatusFound)
	}))
	defer redirect.Close()

	s := NewScraper(time.Second)
	for _, target := range []string{srv.URL, redirect.URL, "http://169.254.169.254/", "http://0.0.0.0:1/"} {
		if _, err := s.Fetch(context.Background(), target); !errors.Is(err, ErrForbiddenHost) {
			t.Fatalf("%s: expected forbidden host, got %v", target, err)
		}
	}
}

func TestIsPublic(t *testing.T) {
	cases := map[string]bool{
		"93.184.216.34":        true,
		"2606:4700::1111":      true,
		"127.0.0.1":            false,
		"10.1.2.3":             false,
		"172.16.0.1":           false,
		"192.168.1.1":          false,
		"169.254.169.254":      false,
		"::1":                  false,
		"fe80::1":              false,
		"fd00::1":              false,
		"::ffff:127.0.0.1":     false,
		"0.0.0.0":              false,
		"224.0.0.1":            false,
		"::ffff:93.184.216.34": true,
	}
	for addr, want := range cases {
		if got := isPublic(netip.MustParseAddr(addr)); got != want {
			t.Fatalf("isPublic(%s) = %v, want %v", addr, got, want)
		}
	}
}
