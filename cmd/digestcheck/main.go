// digestcheck runs the search -> fetch -> summarize pipeline once for a
// single query and prints the result, for checking provider configuration
// without touching the database or the scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"newsdigest/internal/config"
	"newsdigest/internal/newsearch"
	"newsdigest/internal/scraper"
	"newsdigest/internal/summarizer"
)

const (
	maxTestArticles      = 3
	maxTestContentLength = 500
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: digestcheck <query>")
		os.Exit(1)
	}
	query := os.Args[1]

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	ctx := context.Background()
	cfg := config.LoadConfig()

	search, err := newsearch.New(cfg.NewsAPIKey, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize news search provider: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Testing news search for: %s\n", query)

	refs := search.Search(ctx, query, 1)
	fmt.Printf("Found %d articles\n", len(refs))

	if len(refs) == 0 {
		return
	}
	if len(refs) > maxTestArticles {
		refs = refs[:maxTestArticles]
	}

	fetcher := scraper.NewFetcher(log)

	var contents []string
	for _, ref := range refs {
		content := fetcher.FetchText(ctx, ref.URL)
		if content == "" {
			continue
		}

		if len(content) > maxTestContentLength {
			content = content[:maxTestContentLength]
		}
		contents = append(contents, content)

		fmt.Printf("Scraped: %s\n", ref.Title)
	}

	if len(contents) == 0 {
		fmt.Println("No content scraped")
		return
	}

	summ, err := summarizer.New(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize summarizer: %v\n", err)
		os.Exit(1)
	}

	summary := summ.Summarize(ctx, contents, query)
	if summary == "" {
		fmt.Println("Summarization failed")
		return
	}

	fmt.Println("Summary:")
	fmt.Println(summary)
}
