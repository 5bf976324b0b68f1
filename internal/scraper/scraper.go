// Package scraper extracts readable article text from arbitrary HTML pages.
package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	fetchTimeout = 10 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"
)

// Selectors tried in order; the first one yielding non-empty text wins.
var contentSelectors = []string{
	"article",
	`[class*="content"]`,
	`[class*="article"]`,
	`[class*="post"]`,
	"main",
	".entry-content",
	"#content",
}

type Fetcher struct {
	client *http.Client
	log    *slog.Logger
}

func NewFetcher(log *slog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		log:    log,
	}
}

// FetchText retrieves the page and extracts its main article text.
// It returns "" on any failure: network error, non-2xx status, or no
// extractable content. Failures are logged, never returned.
func (f *Fetcher) FetchText(ctx context.Context, articleURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		f.log.WarnContext(ctx, "Failed to create request",
			"error", err,
			"url", articleURL)

		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.WarnContext(ctx, "Failed to fetch article",
			"error", err,
			"url", articleURL)

		return ""
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.log.WarnContext(ctx, "Failed to close response body",
				"error", closeErr,
				"url", articleURL)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		f.log.WarnContext(ctx, "Unexpected status code",
			"statusCode", resp.StatusCode,
			"url", articleURL)

		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		f.log.WarnContext(ctx, "Failed to parse HTML",
			"error", err,
			"url", articleURL)

		return ""
	}

	doc.Find("script, style").Remove()

	text := extractContent(doc)
	if text == "" {
		f.log.WarnContext(ctx, "No extractable content",
			"url", articleURL)
	}

	return text
}

func extractContent(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		selection := doc.Find(selector).First()
		if selection.Length() == 0 {
			continue
		}

		if text := normalizeWhitespace(selection.Text()); text != "" {
			return text
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := normalizeWhitespace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	return strings.Join(paragraphs, " ")
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
