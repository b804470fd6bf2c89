package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"webxcrawl/models"
)

const maxActionScanNodes = 150
const maxActions = 80

// escapeAttrValue escapes double quotes inside a CSS attribute-value
// selector fragment.
func escapeAttrValue(v string) string {
	return strings.ReplaceAll(v, `"`, `\"`)
}

// escapeIdent backslash-escapes any character outside [A-Za-z0-9_-] so the
// result is safe to splice into a CSS id/class selector.
func escapeIdent(v string) string {
	var b strings.Builder
	for _, r := range v {
		isSafe := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !isSafe {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// nthOfType returns the 1-based (minimum 1) index of sel among its
// preceding siblings sharing the same tag name.
func nthOfType(sel *goquery.Selection) int {
	tag := goquery.NodeName(sel)
	index := 1
	node := sel.Get(0)
	for prev := node.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && prev.Data == tag {
			index++
		}
	}
	return index
}

// buildSelector computes a CSS-like strict selector for sel using the
// priority chain in spec §4.4: id, then name, then aria-label, then the
// first two classes, then a positional nth-of-type fallback.
func buildSelector(sel *goquery.Selection) string {
	tag := goquery.NodeName(sel)

	if id, ok := sel.Attr("id"); ok && strings.TrimSpace(id) != "" {
		return "#" + escapeIdent(strings.TrimSpace(id))
	}
	if name, ok := sel.Attr("name"); ok && strings.TrimSpace(name) != "" {
		return fmt.Sprintf(`%s[name="%s"]`, tag, escapeAttrValue(name))
	}
	if label, ok := sel.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
		return fmt.Sprintf(`%s[aria-label="%s"]`, tag, escapeAttrValue(label))
	}
	if class, ok := sel.Attr("class"); ok && strings.TrimSpace(class) != "" {
		fields := strings.Fields(class)
		if len(fields) > 2 {
			fields = fields[:2]
		}
		var b strings.Builder
		b.WriteString(tag)
		for _, f := range fields {
			b.WriteByte('.')
			b.WriteString(escapeIdent(f))
		}
		return b.String()
	}
	return fmt.Sprintf("%s:nth-of-type(%d)", tag, nthOfType(sel))
}

// synthesizeActions scans the first maxActionScanNodes interactive elements
// in document order and produces a deterministic, de-duplicated, capped
// list of Actions.
func synthesizeActions(doc *goquery.Document, baseURL string) []models.Action {
	var actions []models.Action
	seen := map[string]bool{}
	scanned := 0

	doc.Find(`a[href], button, input[type=submit], form, input, textarea, select`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		scanned++
		if scanned > maxActionScanNodes {
			return false
		}

		action, ok := synthesizeOne(sel, baseURL)
		if !ok {
			return true
		}
		if seen[action.ID] {
			return true
		}
		seen[action.ID] = true
		actions = append(actions, action)
		return len(actions) < maxActions
	})

	return actions
}

func synthesizeOne(sel *goquery.Selection, baseURL string) (models.Action, bool) {
	tag := goquery.NodeName(sel)
	selector := buildSelector(sel)
	if selector == "" {
		return models.Action{}, false
	}

	switch {
	case tag == "a":
		href, ok := sel.Attr("href")
		if !ok {
			return models.Action{}, false
		}
		resolved, ok := resolveURL(baseURL, href)
		if !ok {
			return models.Action{}, false
		}
		label := firstNonEmpty(sel.Text(), resolved)
		id := sha256Hex16(fmt.Sprintf("nav:%s:%s", selector, resolved))
		return models.Action{
			ID:       id,
			Type:     models.ActionNavigate,
			Label:    label,
			Selector: selector,
			Params:   map[string]any{},
		}, true

	case tag == "form" || tag == "button" || (tag == "input" && strings.EqualFold(attrOrEmpty(sel, "type"), "submit")):
		label := firstNonEmpty(sel.Text(), "Submit")
		id := sha256Hex16(fmt.Sprintf("submit:%s", selector))
		return models.Action{
			ID:       id,
			Type:     models.ActionSubmit,
			Label:    label,
			Selector: selector,
			Params:   map[string]any{},
		}, true

	case tag == "select":
		required := hasAttr(sel, "required")
		id := sha256Hex16(fmt.Sprintf("select:%s", selector))
		return models.Action{
			ID:       id,
			Type:     models.ActionSelect,
			Label:    firstNonEmpty(labelFor(sel), "Select"),
			Selector: selector,
			Params: map[string]any{
				"value":    "string",
				"required": required,
			},
		}, true

	case tag == "input" || tag == "textarea":
		required := hasAttr(sel, "required")
		id := sha256Hex16(fmt.Sprintf("fill:%s", selector))
		return models.Action{
			ID:       id,
			Type:     models.ActionFill,
			Label:    firstNonEmpty(labelFor(sel), "Fill"),
			Selector: selector,
			Params: map[string]any{
				"value":    "string",
				"required": required,
			},
		}, true
	}

	return models.Action{}, false
}

func attrOrEmpty(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return v
}

func hasAttr(sel *goquery.Selection, name string) bool {
	_, ok := sel.Attr(name)
	return ok
}

// labelFor prefers aria-label, then placeholder, then a bound <label>-like
// name attribute, matching the extractor's form-field label preference.
func labelFor(sel *goquery.Selection) string {
	if v, ok := sel.Attr("aria-label"); ok {
		return v
	}
	if v, ok := sel.Attr("placeholder"); ok {
		return v
	}
	if v, ok := sel.Attr("name"); ok {
		return v
	}
	return ""
}
