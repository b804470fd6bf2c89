package models

// CrawlOptions configures a single crawl job (spec §6.2). It is always the
// fully-resolved, clamped form — the snapshot persisted into
// crawl_jobs.options_json.
type CrawlOptions struct {
	MaxPages         int      `json:"maxPages"`
	MaxDepth         int      `json:"maxDepth"`
	Mode             Mode     `json:"mode"`
	AllowDomains     []string `json:"allowDomains,omitempty"`
	DenyDomains      []string `json:"denyDomains,omitempty"`
	RespectRobots    bool     `json:"respectRobots"`
	PerDomainDelayMs int      `json:"perDomainDelayMs"`
	SeedFromSitemaps bool     `json:"seedFromSitemaps"`
	MaxSitemapUrls   int      `json:"maxSitemapUrls"`
	AdaptiveDelay    bool     `json:"adaptiveDelay"`
}

// CrawlOptionsInput is the caller-facing, partially-specified form: every
// field is optional, so a bool must be a pointer to distinguish "not set"
// from "explicitly false". Engine.Start accepts this and resolves it via
// Resolve into a fully-defaulted CrawlOptions.
type CrawlOptionsInput struct {
	MaxPages         *int     `json:"maxPages,omitempty"`
	MaxDepth         *int     `json:"maxDepth,omitempty"`
	Mode             Mode     `json:"mode,omitempty"`
	AllowDomains     []string `json:"allowDomains,omitempty"`
	DenyDomains      []string `json:"denyDomains,omitempty"`
	RespectRobots    *bool    `json:"respectRobots,omitempty"`
	PerDomainDelayMs *int     `json:"perDomainDelayMs,omitempty"`
	SeedFromSitemaps *bool    `json:"seedFromSitemaps,omitempty"`
	MaxSitemapUrls   *int     `json:"maxSitemapUrls,omitempty"`
	AdaptiveDelay    *bool    `json:"adaptiveDelay,omitempty"`
}

// DefaultCrawlOptions returns the spec's documented defaults.
func DefaultCrawlOptions() CrawlOptions {
	return CrawlOptions{
		MaxPages:         100,
		MaxDepth:         2,
		Mode:             ModeCompact,
		RespectRobots:    true,
		PerDomainDelayMs: 500,
		SeedFromSitemaps: true,
		MaxSitemapUrls:   200,
		AdaptiveDelay:    true,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Resolve merges an input over the documented defaults and clamps every
// bounded field to the range in spec §6.2.
func (in CrawlOptionsInput) Resolve() CrawlOptions {
	out := DefaultCrawlOptions()

	if in.MaxPages != nil {
		out.MaxPages = *in.MaxPages
	}
	out.MaxPages = clampInt(out.MaxPages, 1, 10000)

	if in.MaxDepth != nil {
		out.MaxDepth = *in.MaxDepth
	}
	out.MaxDepth = clampInt(out.MaxDepth, 0, 10)

	if in.Mode != "" {
		out.Mode = in.Mode
	}
	if out.Mode != ModeCompact && out.Mode != ModeFull {
		out.Mode = ModeCompact
	}

	out.AllowDomains = in.AllowDomains
	out.DenyDomains = in.DenyDomains

	if in.RespectRobots != nil {
		out.RespectRobots = *in.RespectRobots
	}

	if in.PerDomainDelayMs != nil {
		out.PerDomainDelayMs = *in.PerDomainDelayMs
	}
	if out.PerDomainDelayMs < 0 {
		out.PerDomainDelayMs = 0
	}

	if in.SeedFromSitemaps != nil {
		out.SeedFromSitemaps = *in.SeedFromSitemaps
	}

	if in.MaxSitemapUrls != nil {
		out.MaxSitemapUrls = *in.MaxSitemapUrls
	}

	if in.AdaptiveDelay != nil {
		out.AdaptiveDelay = *in.AdaptiveDelay
	}

	return out
}

// Normalize re-clamps an already-resolved CrawlOptions. It is idempotent
// and is applied again when a job's persisted options snapshot is reloaded
// from the store, so hand-constructed CrawlOptions values stay in bounds.
func (o CrawlOptions) Normalize() CrawlOptions {
	return CrawlOptionsInput{
		MaxPages:         &o.MaxPages,
		MaxDepth:         &o.MaxDepth,
		Mode:             o.Mode,
		AllowDomains:     o.AllowDomains,
		DenyDomains:      o.DenyDomains,
		RespectRobots:    &o.RespectRobots,
		PerDomainDelayMs: &o.PerDomainDelayMs,
		SeedFromSitemaps: &o.SeedFromSitemaps,
		MaxSitemapUrls:   &o.MaxSitemapUrls,
		AdaptiveDelay:    &o.AdaptiveDelay,
	}.Resolve()
}
