// Package newsearch finds recent news articles for a query. The primary
// path is the NewsAPI everything endpoint; when it is unavailable or
// unconfigured, a Google News RSS search serves as a degraded fallback.
// Search never fails: callers always get a well-formed, possibly empty or
// synthetic, result.
package newsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"newsdigest/internal/domain"

	"github.com/mmcdole/gofeed"
	"mvdan.cc/xurls/v2"
)

const (
	newsAPIEndpoint        = "https://newsapi.org/v2/everything"
	googleNewsRSSEndpoint  = "https://news.google.com/rss/search"
	searchClientTimeout    = 10 * time.Second
	syntheticSourceName    = "Example News"
	syntheticURLFormat     = "https://example.com/%s"
	googleNewsTitleDivider = " - "
)

type Provider struct {
	apiKey        string
	newsAPIURL    string
	googleNewsURL string
	client        *http.Client
	feedParser    *gofeed.Parser
	urlRe         *regexp.Regexp
	log           *slog.Logger
}

func New(apiKey string, log *slog.Logger) (*Provider, error) {
	urlRe, err := xurls.StrictMatchingScheme("https?://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	client := &http.Client{Timeout: searchClientTimeout}

	feedParser := gofeed.NewParser()
	feedParser.Client = client

	return &Provider{
		apiKey:        strings.TrimSpace(apiKey),
		newsAPIURL:    newsAPIEndpoint,
		googleNewsURL: googleNewsRSSEndpoint,
		client:        client,
		feedParser:    feedParser,
		urlRe:         urlRe,
		log:           log,
	}, nil
}

// Search returns candidate articles for the query within the lookback
// window, newest first. Transient provider failures are logged and absorbed;
// the worst case is a single synthetic placeholder result.
func (p *Provider) Search(
	ctx context.Context,
	query string,
	lookbackDays int,
) []domain.ArticleRef {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if p.apiKey != "" {
		refs, err := p.searchNewsAPI(ctx, query, lookbackDays)
		if err == nil {
			return refs
		}

		p.log.WarnContext(ctx, "NewsAPI search failed so fallback will be used",
			"error", err,
			"query", query,
			"lookbackDays", lookbackDays)
	}

	refs, err := p.searchGoogleNewsRSS(ctx, query, lookbackDays)
	if err != nil {
		p.log.WarnContext(ctx, "Fallback search failed so synthetic result will be used",
			"error", err,
			"query", query,
			"lookbackDays", lookbackDays)

		return p.syntheticResult(query)
	}

	return refs
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (p *Provider) searchNewsAPI(
	ctx context.Context,
	query string,
	lookbackDays int,
) ([]domain.ArticleRef, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("from", time.Now().UTC().AddDate(0, 0, -lookbackDays).Format("2006-01-02"))

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		p.newsAPIURL+"?"+params.Encode(),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.log.WarnContext(ctx, "Failed to close response body",
				"error", closeErr,
				"query", query)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var apiResp newsAPIResponse
	if err = json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("API error: %s", apiResp.Message)
	}

	refs := make([]domain.ArticleRef, 0, len(apiResp.Articles))
	for _, item := range apiResp.Articles {
		if !p.isValidArticleURL(item.URL) {
			continue
		}

		publishedAt, parseErr := time.Parse(time.RFC3339, item.PublishedAt)
		if parseErr != nil {
			publishedAt = time.Time{}
		}

		refs = append(refs, domain.ArticleRef{
			Title:       strings.TrimSpace(item.Title),
			URL:         strings.TrimSpace(item.URL),
			PublishedAt: publishedAt,
			Source:      strings.TrimSpace(item.Source.Name),
		})
	}

	return refs, nil
}

func (p *Provider) searchGoogleNewsRSS(
	ctx context.Context,
	query string,
	lookbackDays int,
) ([]domain.ArticleRef, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	parsed, err := p.feedParser.ParseURLWithContext(p.googleNewsURL+"?"+params.Encode(), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -lookbackDays)

	var refs []domain.ArticleRef
	for _, item := range parsed.Items {
		if item == nil || !p.isValidArticleURL(item.Link) {
			continue
		}

		var publishedAt time.Time
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed.UTC()
		}

		if !publishedAt.IsZero() && publishedAt.Before(cutoff) {
			continue
		}

		title, source := splitGoogleNewsTitle(item.Title)

		refs = append(refs, domain.ArticleRef{
			Title:       title,
			URL:         strings.TrimSpace(item.Link),
			PublishedAt: publishedAt,
			Source:      source,
		})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].PublishedAt.After(refs[j].PublishedAt)
	})

	return refs, nil
}

func (p *Provider) syntheticResult(query string) []domain.ArticleRef {
	slug := strings.ReplaceAll(query, " ", "-")

	return []domain.ArticleRef{{
		Title:       fmt.Sprintf("Sample article about %s", query),
		URL:         fmt.Sprintf(syntheticURLFormat, url.PathEscape(slug)),
		PublishedAt: time.Now().UTC(),
		Source:      syntheticSourceName,
	}}
}

func (p *Provider) isValidArticleURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}

	return p.urlRe.FindString(raw) == raw
}

// Google News item titles carry the publisher as a " - Publisher" suffix.
func splitGoogleNewsTitle(raw string) (string, string) {
	raw = strings.TrimSpace(raw)

	idx := strings.LastIndex(raw, googleNewsTitleDivider)
	if idx <= 0 {
		return raw, ""
	}

	title := strings.TrimSpace(raw[:idx])
	source := strings.TrimSpace(raw[idx+len(googleNewsTitleDivider):])

	if title == "" || source == "" {
		return raw, ""
	}

	return title, source
}
