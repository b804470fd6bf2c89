package robots

import "testing"

func TestParseAndCanCrawlLongestMatch(t *testing.T) {
	content := "User-agent: *\nDisallow: /private\nAllow: /private/ok\n"
	rules := Parse(content, "WebxCrawler")

	if CanCrawl("/private/ok/doc", rules) != true {
		t.Fatal("expected /private/ok/doc to be allowed (allow rule longer)")
	}
	if CanCrawl("/private/x", rules) != false {
		t.Fatal("expected /private/x to be disallowed")
	}
	if CanCrawl("/public", rules) != true {
		t.Fatal("expected /public to be allowed")
	}
}

func TestParseEmptyIsPermissive(t *testing.T) {
	rules := Parse("", "WebxCrawler")
	if !CanCrawl("/anything", rules) {
		t.Fatal("expected empty robots.txt to be permissive")
	}
}

func TestParseWildcardOnlyIsActive(t *testing.T) {
	rules := Parse("User-agent: *\nDisallow: /x\n", "SomeOtherBot")
	if CanCrawl("/x", rules) {
		t.Fatal("expected /x to be disallowed under wildcard group")
	}
}

func TestParseNonMatchingGroupInactive(t *testing.T) {
	rules := Parse("User-agent: OtherBot\nDisallow: /x\n", "WebxCrawler")
	if !CanCrawl("/x", rules) {
		t.Fatal("expected non-matching group to be inactive (permissive)")
	}
}

func TestParseTieGoesToAllow(t *testing.T) {
	rules := Parse("User-agent: *\nAllow: /docs\nDisallow: /docs\n", "WebxCrawler")
	if !CanCrawl("/docs", rules) {
		t.Fatal("expected a tie in match length to resolve to allow")
	}
}

func TestParseCrawlDelay(t *testing.T) {
	rules := Parse("User-agent: *\nCrawl-delay: 2\n", "WebxCrawler")
	if rules.CrawlDelayMs != 2000 {
		t.Fatalf("expected 2000ms, got %d", rules.CrawlDelayMs)
	}
}

func TestParseInvalidCrawlDelayIgnored(t *testing.T) {
	rules := Parse("User-agent: *\nCrawl-delay: -1\n", "WebxCrawler")
	if rules.CrawlDelayMs != 0 {
		t.Fatalf("expected negative crawl-delay to be ignored, got %d", rules.CrawlDelayMs)
	}
	rules = Parse("User-agent: *\nCrawl-delay: notanumber\n", "WebxCrawler")
	if rules.CrawlDelayMs != 0 {
		t.Fatalf("expected non-numeric crawl-delay to be ignored, got %d", rules.CrawlDelayMs)
	}
}

func TestParseCollectsSitemaps(t *testing.T) {
	rules := Parse("Sitemap: https://example.com/sitemap.xml\nUser-agent: *\nDisallow:\n", "WebxCrawler")
	if len(rules.Sitemaps) != 1 || rules.Sitemaps[0] != "https://example.com/sitemap.xml" {
		t.Fatalf("expected sitemap collected, got %v", rules.Sitemaps)
	}
}

func TestParseBareSlashIgnored(t *testing.T) {
	rules := Parse("User-agent: *\nDisallow: /\nAllow: /public\n", "WebxCrawler")
	if !CanCrawl("/public", rules) {
		t.Fatal("expected /public allowed")
	}
	if !CanCrawl("/other", rules) {
		// bare "/" disallow is ignored entirely, so with no other match, permissive.
		t.Fatal("expected bare '/' disallow to be ignored")
	}
}

func TestSuggestedDelay(t *testing.T) {
	rules := Rules{CrawlDelayMs: 1000}
	if got := SuggestedDelay(500, rules, 0, true); got != 1000 {
		t.Fatalf("expected robots crawl-delay to win, got %d", got)
	}
	if got := SuggestedDelay(500, Rules{}, 1000, true); got != 1400 {
		t.Fatalf("expected adaptive delay 1400, got %d", got)
	}
	if got := SuggestedDelay(500, Rules{}, 1000, false); got != 500 {
		t.Fatalf("expected base delay when adaptive disabled, got %d", got)
	}
}
