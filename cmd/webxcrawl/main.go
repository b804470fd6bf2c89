// Command webxcrawl is the demo process wiring for the crawl engine:
// build config, store, and engine once, seed a job from -url, then run the
// periodic tick loop until interrupted or the job reaches a terminal
// status. Grounded on the teacher's root
// main.go (flag parsing, signal-based graceful shutdown), narrowed from its
// three-way traditional/smart/benchmark dispatch to this engine's
// start-then-tick lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"webxcrawl/config"
	"webxcrawl/crawler"
	"webxcrawl/database"
	"webxcrawl/fetcher"
	"webxcrawl/logging"
	"webxcrawl/models"
)

func main() {
	var (
		seedURL  = flag.String("url", "https://example.com", "Seed URL to crawl")
		maxDepth = flag.Int("depth", 2, "Maximum crawl depth")
		maxPages = flag.Int("max-pages", 0, "Maximum pages to crawl (0 = config default)")
		mode     = flag.String("mode", string(models.ModeCompact), "Extraction mode: compact or full")
	)
	flag.Parse()

	logger := logging.New(os.Getenv("CRAWLER_LOG_LEVEL"))
	cfg := config.Load(logger)
	if parsed, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(parsed)
	}

	fetcher.Configure(fetcher.Options{
		UserAgent:      cfg.UserAgent,
		TimeoutSeconds: cfg.RequestTimeoutSeconds,
	})

	store, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to open database")
	}
	defer store.Close()

	engine := crawler.NewEngine(store, logger, cfg.UserAgent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("shutting down gracefully")
		cancel()
	}()

	limit := *maxPages
	if limit <= 0 {
		limit = cfg.DefaultMaxPages
	}

	jobID, err := engine.Start([]string{*seedURL}, models.CrawlOptionsInput{
		MaxPages: &limit,
		MaxDepth: maxDepth,
		Mode:     models.Mode(*mode),
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to start crawl job")
	}
	logger.WithField("jobId", jobID).Info("crawl job started")

	poll := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("crawl loop stopped")
			return
		case <-ticker.C:
			if err := engine.ProcessActiveJobsOnce(ctx); err != nil {
				logger.WithError(err).Warn("tick failed")
				continue
			}
			status, err := engine.Status(jobID)
			if err != nil {
				logger.WithError(err).Warn("status check failed")
				continue
			}
			logger.WithField("jobId", jobID).
				WithField("status", status.Job.Status).
				WithField("done", status.Stats.Done).
				WithField("pending", status.Stats.Pending).
				Info("tick complete")
			if status.Job.Status == models.JobFinished || status.Job.Status == models.JobFailed {
				logger.WithField("jobId", jobID).Info("crawl job terminal, exiting")
				return
			}
		}
	}
}
