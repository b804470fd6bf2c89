package extractor

import (
	"strings"
	"testing"

	"webxcrawl/models"
)

const sampleHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Example Docs</title>
	<link rel="canonical" href="https://example.com/docs/guide">
</head>
<body>
	<nav class="menu"><a href="/login">Login</a></nav>
	<article>
		<h1>Getting Started</h1>
		<p>This is the first paragraph of the article and it is definitely longer than forty characters.</p>
		<h2>Installation</h2>
		<p>This is the second paragraph, also comfortably longer than the forty character minimum required.</p>
		<p>short</p>
		<a href="/docs/next">Next page</a>
		<a href="https://other.com/page">External page</a>
		<form id="signup" action="/subscribe" method="POST">
			<input type="email" name="email" required placeholder="you@example.com">
			<select name="plan"><option>free</option></select>
			<button type="submit">Sign up</button>
		</form>
	</article>
	<footer class="footer"><p>copyright footer text that is long enough to pass the paragraph length filter</p></footer>
</body>
</html>`

func TestExtractPageFromHTMLBasics(t *testing.T) {
	page, err := ExtractPageFromHTML(Input{
		URL:  "https://example.com/docs/guide",
		HTML: sampleHTML,
		Mode: models.ModeCompact,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if page.Title != "Getting Started" {
		t.Fatalf("expected article h1 as title, got %q", page.Title)
	}
	if page.CanonicalURL != "https://example.com/docs/guide" {
		t.Fatalf("unexpected canonical: %q", page.CanonicalURL)
	}
	if len(page.Headings) == 0 {
		t.Fatal("expected headings")
	}
	if len(page.KeyParagraphs) == 0 {
		t.Fatal("expected key paragraphs")
	}
	for _, p := range page.KeyParagraphs {
		if len(p) <= 40 {
			t.Fatalf("paragraph too short to pass filter: %q", p)
		}
	}
	if len(page.Links) == 0 {
		t.Fatal("expected links")
	}
	if len(page.Forms) != 1 {
		t.Fatalf("expected 1 form, got %d", len(page.Forms))
	}
	if page.Forms[0].Method != "post" {
		t.Fatalf("expected lowercase method, got %q", page.Forms[0].Method)
	}
	if page.ExtractorVersion != "v1" {
		t.Fatalf("unexpected extractor version: %q", page.ExtractorVersion)
	}
	if page.ContentHash == "" || len(page.ContentHash) != 16 {
		t.Fatalf("expected 16-char content hash, got %q", page.ContentHash)
	}
}

func TestExtractPageFromHTMLContentHashDeterminism(t *testing.T) {
	p1, err := ExtractPageFromHTML(Input{URL: "https://example.com/", HTML: sampleHTML})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := ExtractPageFromHTML(Input{URL: "https://example.com/", HTML: sampleHTML})
	if err != nil {
		t.Fatal(err)
	}
	if p1.ContentHash != p2.ContentHash {
		t.Fatalf("content hash should depend only on title/paragraphs: %q != %q", p1.ContentHash, p2.ContentHash)
	}
	if p1.ID == p2.ID {
		// IDs embed fetchedAt so back-to-back extractions may coincidentally
		// share a timestamp; this only asserts the pipeline doesn't panic
		// when it does.
		t.Log("IDs matched — same-second extraction, not a failure")
	}
}

func TestActionIDStability(t *testing.T) {
	p1, err := ExtractPageFromHTML(Input{URL: "https://example.com/", HTML: sampleHTML})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := ExtractPageFromHTML(Input{URL: "https://example.com/", HTML: sampleHTML})
	if err != nil {
		t.Fatal(err)
	}

	if len(p1.Actions) == 0 {
		t.Fatal("expected synthesized actions")
	}
	if len(p1.Actions) != len(p2.Actions) {
		t.Fatalf("action count differs across extractions: %d vs %d", len(p1.Actions), len(p2.Actions))
	}
	for i := range p1.Actions {
		if p1.Actions[i].ID != p2.Actions[i].ID {
			t.Fatalf("action id mismatch at %d: %q vs %q", i, p1.Actions[i].ID, p2.Actions[i].ID)
		}
	}
}

func TestActionSynthesisKinds(t *testing.T) {
	page, err := ExtractPageFromHTML(Input{URL: "https://example.com/", HTML: sampleHTML})
	if err != nil {
		t.Fatal(err)
	}

	kinds := map[models.ActionType]int{}
	for _, a := range page.Actions {
		kinds[a.Type]++
	}
	if kinds[models.ActionNavigate] == 0 {
		t.Fatal("expected at least one navigate action")
	}
	if kinds[models.ActionFill] == 0 {
		t.Fatal("expected at least one fill action")
	}
	if kinds[models.ActionSelect] == 0 {
		t.Fatal("expected at least one select action")
	}
	if kinds[models.ActionSubmit] == 0 {
		t.Fatal("expected at least one submit action")
	}
}

func TestExtractCompactVsFullCaps(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><article>")
	for i := 0; i < 50; i++ {
		b.WriteString("<h2>Heading number that repeats</h2>")
		b.WriteString("<p>This paragraph is intentionally long enough to pass the forty character minimum filter.</p>")
	}
	b.WriteString("</article></body></html>")
	html := b.String()

	compact, err := ExtractPageFromHTML(Input{URL: "https://example.com/", HTML: html, Mode: models.ModeCompact})
	if err != nil {
		t.Fatal(err)
	}
	full, err := ExtractPageFromHTML(Input{URL: "https://example.com/", HTML: html, Mode: models.ModeFull})
	if err != nil {
		t.Fatal(err)
	}

	if len(compact.Headings) > 12 || len(compact.KeyParagraphs) > 10 {
		t.Fatalf("compact caps violated: headings=%d paragraphs=%d", len(compact.Headings), len(compact.KeyParagraphs))
	}
	if len(full.Headings) > 40 || len(full.KeyParagraphs) > 20 {
		t.Fatalf("full caps violated: headings=%d paragraphs=%d", len(full.Headings), len(full.KeyParagraphs))
	}
	if len(full.Headings) <= len(compact.Headings) {
		t.Fatalf("expected full mode to keep more headings than compact")
	}
}
