package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsdigest/internal/config"
	"newsdigest/internal/database"
	"newsdigest/internal/digest"
	"newsdigest/internal/mailer"
	"newsdigest/internal/newsearch"
	"newsdigest/internal/scheduler"
	"newsdigest/internal/scraper"
	"newsdigest/internal/summarizer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	summ, err := summarizer.New(cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize summarizer",
			"error", err,
			"provider", cfg.LLMProvider)

		return
	}
	log.InfoContext(ctx, "Summarizer is initialized",
		"provider", cfg.LLMProvider)

	search, err := newsearch.New(cfg.NewsAPIKey, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize news search provider",
			"error", err)

		return
	}
	log.InfoContext(ctx, "News search provider is initialized",
		"newsAPIConfigured", cfg.NewsAPIKey != "")

	fetcher := scraper.NewFetcher(log)
	mail := mailer.NewSMTPMailer(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUsername,
		cfg.SMTPPassword,
		cfg.EmailFrom,
	)

	orchestrator := digest.NewOrchestrator(db, search, fetcher, summ, mail, log)

	trigger := scheduler.New(ctx, db, orchestrator, log)

	if err = trigger.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", scheduler.TickSpec)

		return
	}
	defer trigger.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", scheduler.TickSpec)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())
}
