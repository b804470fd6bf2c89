package urlutil

import (
	"net/url"
	"strings"
)

// binaryExtensions are path suffixes that make a URL unlikely to be worth
// crawling as an HTML page.
var binaryExtensions = []string{
	// images
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".bmp", ".tiff",
	// archives
	".zip", ".tar", ".gz", ".rar", ".7z", ".bz2",
	// media
	".mp3", ".mp4", ".wav", ".avi", ".mov", ".webm", ".flac", ".ogg",
	// stylesheet / script
	".css", ".js", ".mjs",
	// documents/feeds explicitly named by spec
	".pdf", ".json", ".xml", ".rss", ".atom",
}

// IsLikelyCrawlable reports whether url is http(s) and does not point at a
// known binary/asset/feed extension.
func IsLikelyCrawlable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	lowerPath := strings.ToLower(u.Path)
	for _, ext := range binaryExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return false
		}
	}
	return true
}

// nuisancePaths are exact-match nuisance paths.
var nuisancePaths = map[string]bool{
	"/robots.txt":  true,
	"/sitemap.xml": true,
	"/ads.txt":     true,
}

// nuisanceSubstrings are path substrings that mark a URL as low-value for
// content crawling (auth, checkout, admin APIs, ...).
var nuisanceSubstrings = []string{
	"/wp-json/", "/api/", "/graphql", "/cdn-cgi/", "/cart", "/checkout",
	"/login", "/signin", "/account", "/admin",
}

// IsNuisance reports whether a URL points at a well-known non-content path.
// A URL that cannot be parsed is treated as nuisance.
func IsNuisance(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.Path
	if nuisancePaths[path] {
		return true
	}
	lower := strings.ToLower(path)
	for _, sub := range nuisanceSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// stopTokens are dropped from extracted seed keywords.
var stopTokens = map[string]bool{
	"www": true, "http": true, "https": true, "index": true, "html": true, "php": true,
}

func tokenize(s string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// ExtractSeedKeywords tokenizes host+path of every seed URL, keeps tokens of
// length >= 3 (minus stop tokens), and caps the result at 30 keywords.
func ExtractSeedKeywords(seedURLs []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, raw := range seedURLs {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		for _, tok := range tokenize(u.Host + u.Path) {
			if len(tok) < 3 || stopTokens[tok] || seen[tok] {
				continue
			}
			seen[tok] = true
			out = append(out, tok)
			if len(out) >= 30 {
				return out
			}
		}
	}
	return out
}
