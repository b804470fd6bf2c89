package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// negativeIndicators mark a container as boilerplate rather than content,
// generalized from the teacher's ContentAnalyzer negative-signal checks.
var negativeIndicators = []string{"comment", "footer", "sidebar", "menu", "nav", "advert", "promo", "cookie"}

// candidateTagBonus mirrors the teacher's tag-weighted scoring
// (calculateImportance rewarding "article", penalizing plain divs).
var candidateTagBonus = map[string]int{
	"article": 30,
	"main":    20,
	"section": 15,
	"div":     5,
}

// readabilityResult is the article-like container this crawler picked, plus
// a best-guess title drawn from its first heading.
type readabilityResult struct {
	node  *goquery.Selection
	title string
}

// selectArticle scores every div/section/article/main candidate by the text
// volume of its descendant paragraphs, tag weight, and negative id/class signals, then
// returns the highest scoring node. It falls back to <article>, then
// <main>, then <body> when no candidate scores above zero — the same
// fallback chain the teacher pack's html parser uses.
func selectArticle(doc *goquery.Document) readabilityResult {
	best := (*goquery.Selection)(nil)
	bestScore := 0

	doc.Find("article, main, section, div").Each(func(_ int, sel *goquery.Selection) {
		score := candidateScore(sel)
		if score > bestScore {
			bestScore = score
			best = sel
		}
	})

	if best == nil {
		if s := doc.Find("article").First(); s.Length() > 0 {
			best = s
		} else if s := doc.Find("main").First(); s.Length() > 0 {
			best = s
		} else {
			best = doc.Find("body").First()
		}
	}

	title := ""
	if h := best.Find("h1").First(); h.Length() > 0 {
		title = normalizeWhitespace(h.Text())
	}

	return readabilityResult{node: best, title: title}
}

func candidateScore(sel *goquery.Selection) int {
	node := goquery.NodeName(sel)
	score := candidateTagBonus[node]

	id, _ := sel.Attr("id")
	class, _ := sel.Attr("class")
	signal := strings.ToLower(id + " " + class)
	for _, neg := range negativeIndicators {
		if strings.Contains(signal, neg) {
			score -= 30
		}
	}

	textLen := 0
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		l := len(strings.TrimSpace(p.Text()))
		if l > 25 {
			textLen += l
		}
	})
	score += textLen / 25

	linkTextLen := len(sel.Find("a").Text())
	totalTextLen := len(sel.Text())
	if totalTextLen > 0 {
		density := float64(linkTextLen) / float64(totalTextLen)
		if density > 0.5 {
			score -= 20
		}
	}

	return score
}

// collectParagraphs walks sel's <p> descendants in document order,
// whitespace-normalizes each, and drops anything of length <= 40.
func collectParagraphs(sel *goquery.Selection) []string {
	var out []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := normalizeWhitespace(p.Text())
		if len(text) > 40 {
			out = append(out, text)
		}
	})
	return out
}

// firstNonEmpty returns the first non-empty, whitespace-normalized string.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		n := normalizeWhitespace(c)
		if n != "" {
			return n
		}
	}
	return ""
}

// docTitle extracts the raw <title> text from a parsed document.
func docTitle(n *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if title != "" {
			return
		}
		if node.Type == html.ElementNode && node.Data == "title" {
			if node.FirstChild != nil {
				title = node.FirstChild.Data
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return title
}
