// Package digest orchestrates one user's pipeline run: search terms fan out
// to news search, article content is fetched behind a URL-deduplicated
// cache, and the combined texts are summarized into a persisted, emailed
// digest.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsdigest/internal/database"
	"newsdigest/internal/domain"
	"newsdigest/internal/mailer"
)

const (
	lookbackDays      = 1
	maxResultsPerTerm = 5
)

// SearchProvider never fails; an empty slice means "no results this time".
type SearchProvider interface {
	Search(ctx context.Context, query string, lookbackDays int) []domain.ArticleRef
}

// ArticleFetcher never fails; "" means the URL yielded no readable text.
type ArticleFetcher interface {
	FetchText(ctx context.Context, articleURL string) string
}

// Summarizer never fails; "" means no summary could be produced.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string, topic string) string
}

type Orchestrator struct {
	db         *database.Database
	search     SearchProvider
	fetcher    ArticleFetcher
	summarizer Summarizer
	mailer     mailer.Mailer
	log        *slog.Logger
}

func NewOrchestrator(
	db *database.Database,
	search SearchProvider,
	fetcher ArticleFetcher,
	summarizer Summarizer,
	mail mailer.Mailer,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		db:         db,
		search:     search,
		fetcher:    fetcher,
		summarizer: summarizer,
		mailer:     mail,
		log:        log,
	}
}

// RunForUser generates and delivers one digest for the user. It returns
// (nil, nil) when the run is a no-op: no search terms, no article content,
// or no summary. Delivery failure does not invalidate the returned digest.
//
// This is also the entry point for interactive "digest now" triggers; there
// is no separate code path for them.
func (o *Orchestrator) RunForUser(ctx context.Context, user domain.User) (*domain.Digest, error) {
	terms, err := o.db.ListSearchTerms(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list search terms: %w", err)
	}
	if len(terms) == 0 {
		return nil, nil
	}

	candidates := o.collectArticles(ctx, user, terms)

	var contents []string
	for _, article := range candidates {
		if article.Content != "" {
			contents = append(contents, article.Content)
		}
	}
	if len(contents) == 0 {
		o.log.InfoContext(ctx, "No article content so digest is skipped",
			"userID", user.ID,
			"articleCount", len(candidates))

		return nil, nil
	}

	termTexts := make([]string, 0, len(terms))
	for _, term := range terms {
		termTexts = append(termTexts, term.Term)
	}
	topic := strings.Join(termTexts, ", ")

	summary := o.summarizer.Summarize(ctx, contents, topic)
	if summary == "" {
		o.log.WarnContext(ctx, "Empty summary so digest is skipped",
			"userID", user.ID,
			"topic", topic,
			"contentCount", len(contents))

		return nil, nil
	}

	articleIDs := make([]int64, 0, len(candidates))
	for _, article := range candidates {
		articleIDs = append(articleIDs, article.ID)
	}

	// The first term labels the digest; articles span all of the user's
	// terms.
	created, err := o.db.CreateDigest(ctx, user.ID, terms[0].ID, summary, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("create digest: %w", err)
	}
	created.Articles = candidates

	o.deliver(ctx, user, created)

	return created, nil
}

// collectArticles walks the user's terms in stored order and returns the
// touched articles, deduplicated across terms by URL. Per-URL failures are
// logged and skipped so one bad article never aborts the run.
func (o *Orchestrator) collectArticles(
	ctx context.Context,
	user domain.User,
	terms []domain.SearchTerm,
) []domain.Article {
	var candidates []domain.Article
	seen := make(map[string]struct{})

	for _, term := range terms {
		refs := o.search.Search(ctx, term.Term, lookbackDays)
		if len(refs) > maxResultsPerTerm {
			refs = refs[:maxResultsPerTerm]
		}

		for _, ref := range refs {
			if _, ok := seen[ref.URL]; ok {
				continue
			}

			article, createdNow, err := o.db.GetOrCreateArticle(ctx, ref)
			if err != nil {
				o.log.ErrorContext(ctx, "Failed to get or create article",
					"error", err,
					"url", ref.URL,
					"userID", user.ID,
					"term", term.Term)

				continue
			}

			// Re-fetching an empty article is harmless and gives failed
			// scrapes another chance on later runs.
			if createdNow || article.Content == "" {
				content := o.fetcher.FetchText(ctx, article.URL)
				if err = o.db.UpdateArticleContent(ctx, article.ID, content); err != nil {
					o.log.ErrorContext(ctx, "Failed to store article content",
						"error", err,
						"url", article.URL,
						"userID", user.ID)

					continue
				}
				article.Content = content
			}

			seen[article.URL] = struct{}{}
			candidates = append(candidates, *article)
		}
	}

	return candidates
}

// deliver emails the digest and marks it sent. Failures leave sent_at unset
// and are only logged: a digest persists independent of delivery.
func (o *Orchestrator) deliver(ctx context.Context, user domain.User, d *domain.Digest) {
	subject := fmt.Sprintf("Daily News Digest for %s", d.CreatedAt.Format("2006-01-02"))
	body := buildEmailBody(d)

	if err := o.mailer.Send(ctx, user.Email, subject, body); err != nil {
		o.log.ErrorContext(ctx, "Failed to send digest email",
			"error", err,
			"userID", user.ID,
			"digestID", d.ID)

		return
	}

	sentAt := time.Now().UTC()
	if err := o.db.MarkDigestSent(ctx, d.ID, sentAt); err != nil {
		o.log.ErrorContext(ctx, "Failed to mark digest as sent",
			"error", err,
			"userID", user.ID,
			"digestID", d.ID)

		return
	}
	d.SentAt = &sentAt
}

func buildEmailBody(d *domain.Digest) string {
	var sb strings.Builder

	sb.WriteString("Your daily news digest:\n\n")
	sb.WriteString(d.Summary)
	sb.WriteString("\n\nArticles:\n")

	for _, article := range d.Articles {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", article.Title, article.URL))
	}

	return sb.String()
}
