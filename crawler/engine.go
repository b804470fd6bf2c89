// Package crawler implements the per-tick crawl state machine: claim,
// politeness wait, fetch, extract, persist, discover. Grounded on the
// teacher's crawler.Smart (worker/tick loop, ContentAnalyzer-style scoring)
// widened into the store-backed, multi-job state machine spec §4.7 defines.
package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"webxcrawl/database"
	"webxcrawl/extractor"
	"webxcrawl/fetcher"
	"webxcrawl/models"
	"webxcrawl/robots"
	"webxcrawl/urlutil"
)

// Engine ties the store, scheduler and extraction/fetch pipeline together
// into the boundary spec §6.3 names: Start, Status, Next,
// ProcessActiveJobsOnce.
type Engine struct {
	store     *database.Store
	scheduler *Scheduler
	logger    *logrus.Logger
}

// NewEngine builds an engine with a fresh, process-lifetime scheduler.
func NewEngine(store *database.Store, logger *logrus.Logger, userAgent string) *Engine {
	return &Engine{
		store:     store,
		scheduler: NewScheduler(userAgent),
		logger:    logger,
	}
}

func sha256Hex16(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

func jobIDFor(seeds []string) string {
	return sha256Hex16(strings.Join(seeds, "|") + ":" + time.Now().UTC().Format(time.RFC3339Nano))
}

func queueItemID(jobID, rawURL string) string {
	return sha256Hex16(jobID + ":" + rawURL)
}

func seedHostSet(seedURLs []string) map[string]bool {
	hosts := map[string]bool{}
	for _, seed := range seedURLs {
		if h := hostOf(seed); h != "" {
			hosts[h] = true
		}
	}
	return hosts
}

func uniqueOrigins(seedURLs []string, cap int) []string {
	seen := map[string]bool{}
	var out []string
	for _, seed := range seedURLs {
		origin := originOf(seed)
		if origin == "" || seen[origin] {
			continue
		}
		seen[origin] = true
		out = append(out, origin)
		if len(out) >= cap {
			break
		}
	}
	return out
}

// Start normalizes and dedupes the seed set, creates the job, enqueues each
// seed at depth 0 with descending priority, and sets the job running, per
// spec §4.7 start().
func (e *Engine) Start(seedURLs []string, input models.CrawlOptionsInput) (string, error) {
	seen := map[string]bool{}
	var normalized []string
	for _, raw := range seedURLs {
		norm, ok := urlutil.Normalize(raw, "")
		if !ok {
			continue
		}
		if !strings.HasPrefix(norm, "http://") && !strings.HasPrefix(norm, "https://") {
			continue
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		normalized = append(normalized, norm)
	}
	if len(normalized) == 0 {
		return "", ErrNoValidSeeds
	}

	options := input.Resolve()
	id := jobIDFor(normalized)

	job, err := e.store.CreateCrawlJob(id, normalized, options)
	if err != nil {
		return "", fmt.Errorf("creating crawl job: %w", err)
	}

	for i, seed := range normalized {
		priority := 140 - i
		if err := e.store.EnqueueURL(queueItemID(job.ID, seed), job.ID, seed, 0, priority, hostOf(seed)); err != nil {
			return "", fmt.Errorf("enqueueing seed %q: %w", seed, err)
		}
	}

	if err := e.store.SetCrawlJobStatus(job.ID, models.JobRunning); err != nil {
		return "", fmt.Errorf("marking job running: %w", err)
	}
	return job.ID, nil
}

// Status returns a job's current record plus queue-item counts.
func (e *Engine) Status(jobID string) (models.CrawlJobStatus, error) {
	job, err := e.store.GetCrawlJob(jobID)
	if err != nil {
		return models.CrawlJobStatus{}, fmt.Errorf("loading job: %w", err)
	}
	if job == nil {
		return models.CrawlJobStatus{}, errUnknownJob(jobID)
	}
	stats, err := e.store.GetCrawlJobStats(jobID)
	if err != nil {
		return models.CrawlJobStatus{}, fmt.Errorf("loading job stats: %w", err)
	}
	return models.CrawlJobStatus{Job: *job, Stats: stats}, nil
}

// Next returns up to limit pages already persisted for a job's completed
// queue items, newest first.
func (e *Engine) Next(jobID string, limit int) ([]models.Page, error) {
	return e.store.GetCrawlPages(jobID, limit)
}

// ProcessActiveJobsOnce runs one processJobOnce tick for every active job,
// fanned out across goroutines. This is safe under spec §5's parallelism
// proviso: the scheduler's per-host caches are mutex-guarded, and claiming
// a queue row is atomic in the store (SELECT ... FOR UPDATE SKIP LOCKED),
// so no two goroutines — within this tick or across processes — ever claim
// the same row.
func (e *Engine) ProcessActiveJobsOnce(ctx context.Context) error {
	jobs, err := e.store.ListActiveCrawlJobs()
	if err != nil {
		return fmt.Errorf("listing active jobs: %w", err)
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.processJobOnce(ctx, job); err != nil {
				e.logger.WithError(err).WithField("jobId", job.ID).Warn("crawl tick failed")
			}
		}()
	}
	wg.Wait()
	return nil
}

// processJobOnce runs steps 1-12 of spec §4.7's worker tick for one job.
func (e *Engine) processJobOnce(ctx context.Context, job models.CrawlJob) error {
	opts := job.Options.Normalize()

	stats, err := e.store.GetCrawlJobStats(job.ID)
	if err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}

	if stats.Done >= opts.MaxPages {
		return e.store.SetCrawlJobStatus(job.ID, models.JobFinished)
	}

	if !e.scheduler.markInitialized(job.ID) && opts.SeedFromSitemaps {
		e.seedFromSitemaps(job, opts)
	}

	item, err := e.store.ClaimNextQueueItem(job.ID)
	if err != nil {
		return fmt.Errorf("claiming queue item: %w", err)
	}
	if item == nil {
		if stats.Pending == 0 && stats.Processing == 0 {
			return e.store.SetCrawlJobStatus(job.ID, models.JobFinished)
		}
		return nil
	}

	if procErr := e.processQueueItem(ctx, job, opts, *item); procErr != nil {
		if failErr := e.store.FailQueueItem(item.ID, procErr.Error()); failErr != nil {
			return fmt.Errorf("failing queue item after %v: %w", procErr, failErr)
		}
		refreshed, statErr := e.store.GetCrawlJobStats(job.ID)
		if statErr == nil && refreshed.Failed > 25 && refreshed.Done == 0 {
			return e.store.SetCrawlJobStatus(job.ID, models.JobFailed)
		}
	}
	return nil
}

// seedFromSitemaps runs the once-per-job-per-process sitemap seeding step
// (spec §4.7 step 2). Failures are swallowed; robots.Fetch and
// DiscoverSitemapURLs already degrade to empty results on error.
func (e *Engine) seedFromSitemaps(job models.CrawlJob, opts models.CrawlOptions) {
	seedHosts := seedHostSet(job.SeedURLs)
	for _, origin := range uniqueOrigins(job.SeedURLs, 6) {
		var rules robots.Rules
		if opts.RespectRobots {
			rules = e.scheduler.robotsFor(origin)
		}
		for _, discovered := range e.scheduler.sitemapURLsFor(origin, rules, opts.MaxSitemapUrls) {
			norm, ok := urlutil.Normalize(discovered, "")
			if !ok || !shouldQueue(norm, opts.AllowDomains, opts.DenyDomains, seedHosts) {
				continue
			}
			_ = e.store.EnqueueURL(queueItemID(job.ID, norm), job.ID, norm, 0, 120, hostOf(norm))
		}
	}
}

// processQueueItem runs steps 4-11: depth check, re-normalize, robots
// check, politeness wait, fetch+extract, persist-or-skip, complete,
// discover.
func (e *Engine) processQueueItem(ctx context.Context, job models.CrawlJob, opts models.CrawlOptions, item models.CrawlQueueItem) error {
	if item.Depth > opts.MaxDepth {
		return e.store.CompleteQueueItem(item.ID)
	}

	normalized, ok := urlutil.Normalize(item.URL, "")
	seedHosts := seedHostSet(job.SeedURLs)
	if !ok || !shouldQueue(normalized, opts.AllowDomains, opts.DenyDomains, seedHosts) {
		return e.store.CompleteQueueItem(item.ID)
	}

	domain := hostOf(normalized)
	origin := originOf(normalized)

	var rules robots.Rules
	if opts.RespectRobots {
		rules = e.scheduler.robotsFor(origin)
		parsed, err := url.Parse(normalized)
		if err != nil {
			return e.store.CompleteQueueItem(item.ID)
		}
		if !robots.CanCrawl(parsed.RequestURI(), rules) {
			return e.store.CompleteQueueItem(item.ID)
		}
	}

	if err := e.politenessWait(ctx, domain, rules, opts.PerDomainDelayMs, opts.AdaptiveDelay); err != nil {
		return err
	}

	start := time.Now()
	result, err := fetcher.OpenStatic(ctx, normalized)
	if err != nil {
		return newError(KindFetchTransient, "%v", err)
	}
	latencyMs := int(time.Since(start).Milliseconds())
	e.scheduler.observeLatency(domain, latencyMs)

	page, err := extractor.ExtractPageFromHTML(extractor.Input{
		URL:    result.FinalURL,
		HTML:   result.HTML,
		Mode:   opts.Mode,
		Source: models.SourceStatic,
	})
	if err != nil {
		return newError(KindInvariant, "extraction failed: %v", err)
	}

	if err := e.persistIfChanged(page, normalized); err != nil {
		return fmt.Errorf("persisting page: %w", err)
	}

	if err := e.store.CompleteQueueItem(item.ID); err != nil {
		return fmt.Errorf("completing item: %w", err)
	}
	e.scheduler.markFetched(domain)

	e.discoverLinks(job, opts, item, page, seedHosts)
	return nil
}

// politenessWait sleeps until suggestedDelay has elapsed since the domain's
// last fetch, interruptibly under ctx cancellation (spec §4.7 step 7, §5
// suspension points).
func (e *Engine) politenessWait(ctx context.Context, domain string, rules robots.Rules, baseDelayMs int, adaptive bool) error {
	avgLatency := e.scheduler.avgLatency(domain)
	delay := robots.SuggestedDelay(baseDelayMs, rules, avgLatency, adaptive)

	// The limiter serializes concurrent goroutines on the same domain across
	// jobs (ProcessActiveJobsOnce fans out per job); domainLastFetch alone
	// is check-then-act and not safe against two goroutines racing here.
	limiter := e.scheduler.limiterFor(domain, delay)
	limiter.SetLimit(rate.Every(time.Duration(delay) * time.Millisecond))
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	last := e.scheduler.lastFetch(domain)
	waitMs := 0
	if !last.IsZero() {
		elapsed := int(time.Since(last).Milliseconds())
		waitMs = delay - elapsed
		if waitMs < 0 {
			waitMs = 0
		}
	}
	if waitMs == 0 {
		return nil
	}

	timer := time.NewTimer(time.Duration(waitMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// persistIfChanged implements spec §4.7 step 9: compare against the latest
// stored page for the fetched URL (preferring the response URL, falling
// back to the requested one) and skip persistence on an unchanged content
// hash.
func (e *Engine) persistIfChanged(page models.Page, requestedURL string) error {
	existing, err := e.store.GetLatestPageByURL(page.URL)
	if err != nil {
		return err
	}
	if existing == nil && page.URL != requestedURL {
		existing, err = e.store.GetLatestPageByURL(requestedURL)
		if err != nil {
			return err
		}
	}
	if existing != nil && existing.ContentHash == page.ContentHash {
		return nil
	}
	return e.store.SavePage(page)
}

// discoverLinks implements spec §4.7 step 11: score and enqueue every
// admissible outbound link at the next depth. Failures are swallowed
// per-link so one bad enqueue doesn't drop the rest of the page's links.
func (e *Engine) discoverLinks(job models.CrawlJob, opts models.CrawlOptions, item models.CrawlQueueItem, page models.Page, seedHosts map[string]bool) {
	nextDepth := item.Depth + 1
	if nextDepth > opts.MaxDepth || len(job.SeedURLs) == 0 {
		return
	}

	scoreCtx := urlutil.ScoreContext{
		SeedHost:     hostOf(job.SeedURLs[0]),
		SeedKeywords: urlutil.ExtractSeedKeywords(job.SeedURLs),
	}

	for _, link := range page.Links {
		normLink, ok := urlutil.Normalize(link.URL, page.URL)
		if !ok || !shouldQueue(normLink, opts.AllowDomains, opts.DenyDomains, seedHosts) {
			continue
		}
		priority := urlutil.ScoreDiscoveredURL(normLink, nextDepth, scoreCtx)
		_ = e.store.EnqueueURL(queueItemID(job.ID, normLink), job.ID, normLink, nextDepth, priority, hostOf(normLink))
	}
}
