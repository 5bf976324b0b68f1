package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, html)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestFetchTextPrefersArticleElement(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<nav>site navigation</nav>
		<article>EV sales keep climbing around the world.</article>
		<p>unrelated footer text</p>
	</body></html>`)

	fetcher := NewFetcher(slog.Default())

	text := fetcher.FetchText(context.Background(), srv.URL)
	if text != "EV sales keep climbing around the world." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFetchTextStripsScriptAndStyle(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<article>
			<script>alert("tracking")</script>
			<style>p { color: red }</style>
			Battery prices fall.
		</article>
	</body></html>`)

	fetcher := NewFetcher(slog.Default())

	text := fetcher.FetchText(context.Background(), srv.URL)
	if text != "Battery prices fall." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFetchTextMatchesContentClass(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<div class="sidebar">ads</div>
		<div class="post-content">Grid-scale storage hits a milestone.</div>
	</body></html>`)

	fetcher := NewFetcher(slog.Default())

	text := fetcher.FetchText(context.Background(), srv.URL)
	if text != "Grid-scale storage hits a milestone." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFetchTextFallsBackToParagraphs(t *testing.T) {
	srv := serveHTML(t, `<html><body>
		<div>
			<p>First paragraph.</p>
			<p>Second paragraph.</p>
		</div>
	</body></html>`)

	fetcher := NewFetcher(slog.Default())

	text := fetcher.FetchText(context.Background(), srv.URL)
	if text != "First paragraph. Second paragraph." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFetchTextNormalizesWhitespace(t *testing.T) {
	srv := serveHTML(t, "<html><body><article>spread \n\n out \t text</article></body></html>")

	fetcher := NewFetcher(slog.Default())

	text := fetcher.FetchText(context.Background(), srv.URL)
	if text != "spread out text" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFetchTextIsDeterministic(t *testing.T) {
	srv := serveHTML(t, `<html><body><article>Stable content.</article></body></html>`)

	fetcher := NewFetcher(slog.Default())
	ctx := context.Background()

	first := fetcher.FetchText(ctx, srv.URL)
	second := fetcher.FetchText(ctx, srv.URL)

	if first == "" {
		t.Fatalf("expected non-empty extraction")
	}
	if first != second {
		t.Fatalf("expected identical extractions, got %q and %q", first, second)
	}
}

func TestFetchTextReturnsEmptyOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	fetcher := NewFetcher(slog.Default())

	if text := fetcher.FetchText(context.Background(), srv.URL); text != "" {
		t.Fatalf("expected empty text for 404, got %q", text)
	}
}

func TestFetchTextReturnsEmptyOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	fetcher := NewFetcher(slog.Default())

	if text := fetcher.FetchText(context.Background(), srv.URL); text != "" {
		t.Fatalf("expected empty text on network error, got %q", text)
	}
}

func TestFetchTextReturnsEmptyWithoutContent(t *testing.T) {
	srv := serveHTML(t, `<html><body><div>   </div></body></html>`)

	fetcher := NewFetcher(slog.Default())

	if text := fetcher.FetchText(context.Background(), srv.URL); text != "" {
		t.Fatalf("expected empty text for empty page, got %q", text)
	}
}

func TestFetchTextSendsBrowserUserAgent(t *testing.T) {
	var gotUserAgent string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, `<html><body><article>ok</article></body></html>`)
	}))
	t.Cleanup(srv.Close)

	fetcher := NewFetcher(slog.Default())
	fetcher.FetchText(context.Background(), srv.URL)

	if gotUserAgent != userAgent {
		t.Fatalf("unexpected user agent: %q", gotUserAgent)
	}
}
