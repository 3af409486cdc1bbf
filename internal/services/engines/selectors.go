package engines

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/venor/internal/models"
)

// Logical field names recognized in selector maps.
const (
	FieldTitle       = "job_title"
	FieldCompany     = "company"
	FieldLocation    = "location"
	FieldDescription = "description"
	FieldSalary      = "salary"
	FieldDatePosted  = "date_posted"
	FieldApplyURL    = "apply_url"
	FieldJobLinks    = "job_links"
	FieldNextPage    = "next_page"
)

// builtinSelectors is the generic fallback library applied after any
// board-configured selectors fail. Ordered most-specific first.
var builtinSelectors = models.SelectorMap{
	FieldTitle: {
		"h1.job-title", "h1[class*='title']", ".job-title", "[class*='job-title']",
		"h1", "h2.title",
	},
	FieldCompany: {
		".company-name", "[class*='company-name']", "[class*='company']",
		"[data-company]", ".employer", "[itemprop='hiringOrganization']",
	},
	FieldLocation: {
		".job-location", "[class*='location']", "[data-location]",
		"[itemprop='jobLocation']",
	},
	FieldDescription: {
		".job-description", "[class*='description']", "#job-description",
		"[itemprop='description']", "article", "main",
	},
	FieldSalary: {
		".salary", "[class*='salary']", "[class*='compensation']", "[data-salary]",
	},
	FieldDatePosted: {
		".posted-date", "[class*='posted']", "time[datetime]", "[class*='date']",
		"[itemprop='datePosted']",
	},
	FieldApplyURL: {
		"a.apply-button", "a[class*='apply']", "a[href*='apply']",
	},
	FieldJobLinks: {
		"a.job-link", "a[class*='job-title']", ".job-card a", "[class*='job-listing'] a",
		"a[href*='/job/']", "a[href*='/jobs/']", "a[href*='/careers/']",
		"h2 a", "h3 a",
	},
	FieldNextPage: {
		"a[rel='next']", "a.next", "a[class*='next']", "li.next a",
		"a[aria-label='Next']", "a[aria-label='Next page']",
	},
}

var mdConverter = md.NewConverter("", true, nil)

// fieldSelectors returns the effective fallback list for a field: the
// board-configured selectors first, then the builtin library.
func fieldSelectors(selectors models.SelectorMap, field string) []string {
	configured := selectors.Get(field)
	builtin := builtinSelectors[field]
	if len(configured) == 0 {
		return builtin
	}
	out := make([]string, 0, len(configured)+len(builtin))
	out = append(out, configured...)
	out = append(out, builtin...)
	return out
}

// extractText returns the trimmed text of the first selector that matches a
// non-empty element.
func extractText(doc *goquery.Document, selectors models.SelectorMap, field string) string {
	for _, sel := range fieldSelectors(selectors, field) {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		// Prefer datetime attributes on <time> elements
		if field == FieldDatePosted {
			if dt, ok := node.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
				return strings.TrimSpace(dt)
			}
		}
		text := strings.TrimSpace(node.Text())
		if text != "" {
			return collapseWhitespace(text)
		}
	}
	return ""
}

// extractDescription returns the first matching description region rendered
// to markdown, falling back to plain text when conversion fails.
func extractDescription(doc *goquery.Document, selectors models.SelectorMap) string {
	for _, sel := range fieldSelectors(selectors, FieldDescription) {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		html, err := node.Html()
		if err == nil && strings.TrimSpace(html) != "" {
			if markdown, err := mdConverter.ConvertString(html); err == nil {
				markdown = strings.TrimSpace(markdown)
				if markdown != "" {
					return markdown
				}
			}
		}
		text := strings.TrimSpace(node.Text())
		if text != "" {
			return collapseWhitespace(text)
		}
	}
	return ""
}

// extractHref returns the href of the first matching anchor.
func extractHref(doc *goquery.Document, selectors models.SelectorMap, field string) string {
	for _, sel := range fieldSelectors(selectors, field) {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if href, ok := node.Attr("href"); ok && strings.TrimSpace(href) != "" {
			return strings.TrimSpace(href)
		}
	}
	return ""
}

// extractLinks collects all hrefs matched by the job-links selectors,
// preserving document order and dropping duplicates.
func extractLinks(doc *goquery.Document, selectors models.SelectorMap) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, sel := range fieldSelectors(selectors, FieldJobLinks) {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			href = strings.TrimSpace(href)
			if href == "" {
				return
			}
			if _, dup := seen[href]; dup {
				return
			}
			seen[href] = struct{}{}
			links = append(links, href)
		})
		if len(links) > 0 {
			break
		}
	}
	return links
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
