// Package benchmark adapts the teacher's traditional-vs-smart timing
// comparison (benchmark/benchmark.go) into a compact-vs-full extraction
// mode comparison: same fetched HTML, two ExtractPageFromHTML calls, sizing
// the "compact mode minimizes downstream token cost" claim spec.md makes.
package benchmark

import (
	"encoding/json"
	"fmt"
	"strings"

	"webxcrawl/extractor"
	"webxcrawl/models"
)

// ModeStats summarizes one extraction mode's output shape.
type ModeStats struct {
	Mode             models.Mode `json:"mode"`
	Headings         int         `json:"headings"`
	KeyParagraphs    int         `json:"keyParagraphs"`
	Links            int         `json:"links"`
	Forms            int         `json:"forms"`
	Actions          int         `json:"actions"`
	SerializedBytes  int         `json:"serializedBytes"`
}

// Comparison is the paired compact/full result for one page.
type Comparison struct {
	URL     string    `json:"url"`
	Compact ModeStats `json:"compact"`
	Full    ModeStats `json:"full"`
}

func statsFor(page models.Page) (ModeStats, error) {
	raw, err := json.Marshal(page)
	if err != nil {
		return ModeStats{}, fmt.Errorf("marshaling page: %w", err)
	}
	return ModeStats{
		Mode:            page.Mode,
		Headings:        len(page.Headings),
		KeyParagraphs:   len(page.KeyParagraphs),
		Links:           len(page.Links),
		Forms:           len(page.Forms),
		Actions:         len(page.Actions),
		SerializedBytes: len(raw),
	}, nil
}

// RunModeComparison extracts url/html twice (compact then full) and returns
// their shape/size comparison.
func RunModeComparison(url, html string) (*Comparison, error) {
	compactPage, err := extractor.ExtractPageFromHTML(extractor.Input{
		URL: url, HTML: html, Mode: models.ModeCompact, Source: models.SourceStatic,
	})
	if err != nil {
		return nil, fmt.Errorf("extracting compact mode: %w", err)
	}
	fullPage, err := extractor.ExtractPageFromHTML(extractor.Input{
		URL: url, HTML: html, Mode: models.ModeFull, Source: models.SourceStatic,
	})
	if err != nil {
		return nil, fmt.Errorf("extracting full mode: %w", err)
	}

	compactStats, err := statsFor(compactPage)
	if err != nil {
		return nil, err
	}
	fullStats, err := statsFor(fullPage)
	if err != nil {
		return nil, err
	}

	return &Comparison{URL: url, Compact: compactStats, Full: fullStats}, nil
}

// Report renders a Comparison as the teacher's fixed-width table, grounded
// on benchmark.displayComparison's layout.
func Report(c *Comparison) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extraction mode comparison for %s\n", c.URL)
	fmt.Fprintf(&b, "%-20s %-12s %-12s %-12s\n", "Metric", "Compact", "Full", "Reduction")
	b.WriteString(strings.Repeat("-", 58) + "\n")

	row := func(label string, compact, full int) {
		fmt.Fprintf(&b, "%-20s %-12d %-12d %-12s\n", label, compact, full, reductionPct(compact, full))
	}
	row("Headings", c.Compact.Headings, c.Full.Headings)
	row("Key paragraphs", c.Compact.KeyParagraphs, c.Full.KeyParagraphs)
	row("Links", c.Compact.Links, c.Full.Links)
	row("Serialized bytes", c.Compact.SerializedBytes, c.Full.SerializedBytes)

	return b.String()
}

func reductionPct(compact, full int) string {
	if full == 0 {
		return "N/A"
	}
	pct := (1 - float64(compact)/float64(full)) * 100
	return fmt.Sprintf("-%.1f%%", pct)
}
