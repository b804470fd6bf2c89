// Package extractor turns raw HTML into a structured models.Page: headings,
// key paragraphs, links, forms, and synthesized actions with stable IDs.
// It is a pure function of its input — no I/O — grounded on the teacher's
// ContentAnalyzer scoring generalized into the full spec §4.3/§4.4
// extraction and action-synthesis pipeline.
package extractor

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"webxcrawl/models"
)

const extractorVersion = "v1"

// Input is the extractor's boundary input (spec §6.4).
type Input struct {
	URL    string
	HTML   string
	Mode   models.Mode
	Source models.Source
}

func modeCaps(mode models.Mode) (headings, links, paragraphs int) {
	if mode == models.ModeFull {
		return 40, 80, 35
	}
	return 12, 25, 10
}

// resolveURL resolves href against base, returning ("", false) if either
// side fails to parse.
func resolveURL(base, href string) (string, bool) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	rel, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := baseURL.ResolveReference(rel)
	return resolved.String(), true
}

func sameHost(a, b string) bool {
	ua, err1 := url.Parse(a)
	ub, err2 := url.Parse(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return strings.EqualFold(ua.Hostname(), ub.Hostname())
}

// ExtractPageFromHTML implements the spec §4.3 algorithm. It is a pure
// function: given the same input it always returns the same output modulo
// FetchedAt/ID (which are seeded from the current time).
func ExtractPageFromHTML(in Input) (models.Page, error) {
	mode := in.Mode
	if mode == "" {
		mode = models.ModeCompact
	}
	source := in.Source
	if source == "" {
		source = models.SourceStatic
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in.HTML))
	if err != nil {
		return models.Page{}, fmt.Errorf("parsing html: %w", err)
	}

	headingCap, linkCap, paragraphCap := modeCaps(mode)

	canonical := extractCanonical(doc, in.URL)
	article := selectArticle(doc)
	paragraphs := collectParagraphs(article.node)
	if len(paragraphs) > 20 {
		paragraphs = paragraphs[:20]
	}
	if len(paragraphs) > paragraphCap {
		paragraphs = paragraphs[:paragraphCap]
	}

	headings := collectHeadings(doc, headingCap)
	links := collectLinks(doc, in.URL, linkCap)
	forms := collectForms(doc, in.URL)
	actions := synthesizeActions(doc, in.URL)

	title := firstNonEmpty(article.title, docTitle(doc.Nodes[0]))

	contentHash := sha256Hex16(title + "\n" + strings.Join(paragraphs, "\n"))

	fetchedAt := time.Now().UTC()
	fetchedAtStr := fetchedAt.Format(time.RFC3339)
	id := sha256Hex16(in.URL + ":" + contentHash + ":" + fetchedAtStr)

	return models.Page{
		ID:               id,
		URL:              in.URL,
		CanonicalURL:     canonical,
		Title:            title,
		FetchedAt:        fetchedAt,
		ContentHash:      contentHash,
		ExtractorVersion: extractorVersion,
		Mode:             mode,
		Source:           source,
		Headings:         headings,
		KeyParagraphs:    paragraphs,
		Links:            links,
		Forms:            forms,
		Actions:          actions,
	}, nil
}

func extractCanonical(doc *goquery.Document, base string) string {
	href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	resolved, ok := resolveURL(base, href)
	if !ok {
		return ""
	}
	return resolved
}

func collectHeadings(doc *goquery.Document, cap int) []string {
	var out []string
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := normalizeWhitespace(sel.Text())
		if text != "" {
			out = append(out, text)
		}
		return len(out) < cap
	})
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}

func collectLinks(doc *goquery.Document, base string, cap int) []models.Link {
	var out []models.Link
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		text := normalizeWhitespace(sel.Text())
		resolved, ok := resolveURL(base, href)
		if !ok || resolved == "" || text == "" {
			return true
		}
		rel, _ := sel.Attr("rel")
		out = append(out, models.Link{
			URL:        resolved,
			Text:       truncate(text, 160),
			Rel:        rel,
			IsInternal: sameHost(base, resolved),
		})
		return len(out) < cap
	})
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}

func collectForms(doc *goquery.Document, base string) []models.Form {
	var out []models.Form
	doc.Find("form").Each(func(i int, sel *goquery.Selection) {
		id, ok := sel.Attr("id")
		if !ok || strings.TrimSpace(id) == "" {
			id = fmt.Sprintf("form_%d", i+1)
		}

		action := ""
		if raw, ok := sel.Attr("action"); ok && strings.TrimSpace(raw) != "" {
			if resolved, ok := resolveURL(base, raw); ok {
				action = resolved
			}
		}

		method := "get"
		if m, ok := sel.Attr("method"); ok && strings.TrimSpace(m) != "" {
			method = strings.ToLower(strings.TrimSpace(m))
		}

		var fields []models.FormField
		sel.Find("input, textarea, select").Each(func(_ int, f *goquery.Selection) {
			tag := goquery.NodeName(f)
			fieldType := attrOrEmpty(f, "type")
			if fieldType == "" {
				if tag == "textarea" {
					fieldType = "textarea"
				} else if tag == "select" {
					fieldType = "select"
				} else {
					fieldType = "text"
				}
			}
			name, _ := f.Attr("name")
			placeholder, _ := f.Attr("placeholder")

			label := ""
			if v, ok := f.Attr("aria-label"); ok {
				label = v
			}

			fields = append(fields, models.FormField{
				Name:        name,
				Type:        fieldType,
				Required:    hasAttr(f, "required"),
				Placeholder: placeholder,
				Label:       label,
			})
		})

		out = append(out, models.Form{
			ID:     id,
			Action: action,
			Method: method,
			Fields: fields,
		})
	})
	return out
}
