package robots

import (
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"time"

	"webxcrawl/urlutil"
)

// sitemapFetchTimeout is the spec-mandated 10s ceiling on a sitemap fetch.
const sitemapFetchTimeout = 10 * time.Second

const sitemapIndexQueueCap = 30
const sitemapMaxExpansions = 12

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapindex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

func fetchXML(u, userAgent string) ([]byte, bool) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, false
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{Transport: httpClient.Transport, Timeout: sitemapFetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}
	return body, true
}

// DiscoverSitemapURLs seeds a work queue from rules.Sitemaps (or
// {origin}/sitemap.xml as a fallback), expands sitemap indexes up to
// sitemapMaxExpansions times, and returns up to limit discovered page URLs.
func DiscoverSitemapURLs(rules Rules, origin, userAgent string, limit int) []string {
	queue := append([]string{}, rules.Sitemaps...)
	if len(queue) == 0 {
		queue = append(queue, strings.TrimRight(origin, "/")+"/sitemap.xml")
	}

	seenSitemaps := map[string]bool{}
	var pages []string
	expansions := 0

	for len(queue) > 0 && expansions < sitemapMaxExpansions {
		next := queue[0]
		queue = queue[1:]

		normalized, ok := urlutil.Normalize(next, "")
		if !ok {
			normalized = next
		}
		if seenSitemaps[normalized] {
			continue
		}
		seenSitemaps[normalized] = true
		expansions++

		body, ok := fetchXML(next, userAgent)
		if !ok {
			continue
		}

		isIndex := strings.Contains(string(body), "<sitemapindex")
		locs := extractLocs(body)

		for _, loc := range locs {
			locNorm, ok := urlutil.Normalize(loc, "")
			if !ok {
				continue
			}
			if isIndex || strings.Contains(strings.ToLower(loc), "sitemap") {
				if len(queue) < sitemapIndexQueueCap {
					queue = append(queue, locNorm)
				}
				continue
			}
			pages = append(pages, locNorm)
			if len(pages) >= limit {
				return pages
			}
		}
	}

	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages
}

// extractLocs pulls every <loc> value out of either a <urlset> or
// <sitemapindex> document, tolerating whichever root element is present.
func extractLocs(body []byte) []string {
	var set urlset
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		out := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			if u.Loc != "" {
				out = append(out, u.Loc)
			}
		}
		return out
	}

	var idx sitemapindex
	if err := xml.Unmarshal(body, &idx); err == nil {
		out := make([]string, 0, len(idx.Sitemaps))
		for _, s := range idx.Sitemaps {
			if s.Loc != "" {
				out = append(out, s.Loc)
			}
		}
		return out
	}

	return nil
}
