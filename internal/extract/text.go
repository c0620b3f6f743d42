package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// htmlText returns the visible text of an HTML body, one line per block element.
func htmlText(doc *goquery.Document) string {
	doc.Find("script, style, head").Remove()
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4").AppendHtml("\n")

	var lines []string
	for _, ln := range strings.Split(doc.Text(), "\n") {
		if t := cleanText(ln); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

// findLocation looks for common location markup, then a labeled location in the text.
func findLocation(doc *goquery.Document) string {
	for _, sel := range []string{
		".location",
		".job__location",
		"[data-testid='job-location']",
		"[data-testid='location']",
	} {
		if t := cleanText(doc.Find(sel).First().Text()); t != "" {
			return normalizeLocation(t)
		}
	}
	return ""
}

// labeledLocation extracts the value after a "Location:" style label.
func labeledLocation(s string) string {
	low := strings.ToLower(s)
	for _, lab := range []string{"job location:", "locations:", "location:"} {
		i := strings.Index(low, lab)
		if i < 0 {
			continue
		}
		rest := strings.TrimSpace(s[i+len(lab):])
		for _, cut := range []string{"\n", "\r", " | ", " · "} {
			if j := strings.Index(rest, cut); j >= 0 {
				rest = rest[:j]
			}
		}
		rest = cleanText(rest)
		if rest != "" && len(rest) <= 80 {
			return normalizeLocation(rest)
		}
	}
	return ""
}

// normalizeLocation drops repeated comma-separated parts.
func normalizeLocation(loc string) string {
	loc = cleanText(loc)
	parts := strings.Split(loc, ",")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		p = cleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}
