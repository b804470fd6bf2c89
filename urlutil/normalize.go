// Package urlutil normalizes, classifies, and scores URLs for the crawl
// frontier. It is grounded on the teacher's utils.IsValidURL/NormalizeURL,
// generalized to the fuller normalization/classification/scoring contract
// the crawl engine needs.
package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// trackingPrefixes are query-key prefixes stripped regardless of case.
var trackingPrefixes = []string{"utm_"}

// trackingKeys are exact (case-insensitive) query keys always stripped.
var trackingKeys = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"igshid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref":     true,
	"ref_src": true,
	"source":  true,
	"spm":     true,
}

// Normalize resolves input against an optional base URL and returns the
// canonicalized absolute URL, or ("", false) if it cannot be normalized.
// Normalization is idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(input string, base string) (string, bool) {
	var u *url.URL
	var err error

	if base != "" {
		baseURL, berr := url.Parse(base)
		if berr != nil {
			return "", false
		}
		rel, rerr := url.Parse(input)
		if rerr != nil {
			return "", false
		}
		u = baseURL.ResolveReference(rel)
	} else {
		u, err = url.Parse(input)
		if err != nil {
			return "", false
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	u.Host = strings.ToLower(u.Host)
	u.Host = dropDefaultPort(u.Scheme, u.Host)
	u.Fragment = ""

	u.Path = collapseSlashes(u.Path)
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	u.RawQuery = cleanQuery(u.RawQuery)

	return u.String(), true
}

func dropDefaultPort(scheme, host string) string {
	h, port, ok := strings.Cut(host, ":")
	if !ok {
		return host
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		return h
	}
	return host
}

func collapseSlashes(path string) string {
	var b strings.Builder
	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isTrackingKey(key string) bool {
	lower := strings.ToLower(key)
	if trackingKeys[lower] {
		return true
	}
	for _, prefix := range trackingPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func cleanQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if isTrackingKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		// Keys are sorted lexicographically; values keep their original
		// (stable) order within a key, per spec §4.1.
		for _, v := range values[k] {
			q.Add(k, v)
		}
	}
	return q.Encode()
}
