package engines

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venor/internal/models"
)

const detailPageHTML = `
<html><body>
  <h1 class="job-title">Senior Go Engineer</h1>
  <div class="company-name">Acme Corp</div>
  <span class="job-location">Berlin, Germany</span>
  <div class="job-description"><p>Build <strong>distributed</strong> systems.</p></div>
  <span class="salary">€80,000 - €100,000</span>
  <time class="posted-date" datetime="2025-11-01">1 week ago</time>
  <a class="apply-button" href="/apply/123">Apply</a>
</body></html>`

const listingPageHTML = `
<html><body>
  <div class="job-card"><a href="/jobs/1">Job One</a></div>
  <div class="job-card"><a href="/jobs/2">Job Two</a></div>
  <div class="job-card"><a href="/jobs/1">Job One Again</a></div>
  <a rel="next" href="/jobs?page=2">Next</a>
</body></html>`

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractTextUsesBuiltinFallbacks(t *testing.T) {
	doc := parseDoc(t, detailPageHTML)

	assert.Equal(t, "Senior Go Engineer", extractText(doc, nil, FieldTitle))
	assert.Equal(t, "Acme Corp", extractText(doc, nil, FieldCompany))
	assert.Equal(t, "Berlin, Germany", extractText(doc, nil, FieldLocation))
	assert.Equal(t, "€80,000 - €100,000", extractText(doc, nil, FieldSalary))
}

func TestExtractTextPrefersConfiguredSelectors(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<h1>Wrong Title</h1>
		<div id="real-title">Right Title</div>
	</body></html>`)

	selectors := models.SelectorMap{FieldTitle: {"#real-title"}}
	assert.Equal(t, "Right Title", extractText(doc, selectors, FieldTitle))
}

func TestExtractTextPrefersDatetimeAttribute(t *testing.T) {
	doc := parseDoc(t, detailPageHTML)
	assert.Equal(t, "2025-11-01", extractText(doc, nil, FieldDatePosted))
}

func TestExtractDescriptionRendersMarkdown(t *testing.T) {
	doc := parseDoc(t, detailPageHTML)
	desc := extractDescription(doc, nil)
	assert.Contains(t, desc, "**distributed**")
}

func TestExtractLinksDeduplicates(t *testing.T) {
	doc := parseDoc(t, listingPageHTML)
	links := extractLinks(doc, nil)
	assert.Equal(t, []string{"/jobs/1", "/jobs/2"}, links)
}

func TestExtractHrefNextPage(t *testing.T) {
	doc := parseDoc(t, listingPageHTML)
	assert.Equal(t, "/jobs?page=2", extractHref(doc, nil, FieldNextPage))
}

func TestBuildRawJob(t *testing.T) {
	doc := parseDoc(t, detailPageHTML)

	job := buildRawJob(doc, "https://example.com/jobs/123", nil, models.EngineStatic)
	require.NotNil(t, job)
	assert.Equal(t, "Senior Go Engineer", job.Title)
	assert.Equal(t, "Acme Corp", job.Company)
	assert.Equal(t, models.EngineStatic, job.Engine)
	require.NotNil(t, job.PostedDate)
	assert.Equal(t, "2025-11-01", job.PostedDate.Format("2006-01-02"))
	// Apply link is resolved against the page URL
	assert.Equal(t, "https://example.com/apply/123", job.URL)
}

func TestBuildRawJobMissingCompany(t *testing.T) {
	doc := parseDoc(t, `<html><body><h1>Title Only</h1></body></html>`)
	assert.Nil(t, buildRawJob(doc, "https://example.com/x", nil, models.EngineStatic))
}

func TestDetectBlockPage(t *testing.T) {
	assert.NotEmpty(t, detectBlockPage([]byte("<html>Please complete the CAPTCHA to continue</html>")))
	assert.NotEmpty(t, detectBlockPage([]byte("<html>Access Denied</html>")))
	assert.Empty(t, detectBlockPage([]byte("<html><h1>Jobs</h1></html>")))
}

func TestBuildSearchURL(t *testing.T) {
	assert.Equal(t, "https://example.com/jobs", buildSearchURL("https://example.com/jobs", "", ""))

	u := buildSearchURL("https://example.com/jobs", "golang", "berlin")
	assert.Contains(t, u, "q=golang")
	assert.Contains(t, u, "location=berlin")
}

func TestSplitFeedTitle(t *testing.T) {
	title, company := splitFeedTitle("Senior Engineer at Acme")
	assert.Equal(t, "Senior Engineer", title)
	assert.Equal(t, "Acme", company)

	title, company = splitFeedTitle("Acme: Senior Engineer")
	assert.Equal(t, "Senior Engineer", title)
	assert.Equal(t, "Acme", company)

	title, company = splitFeedTitle("Senior Engineer")
	assert.Equal(t, "Senior Engineer", title)
	assert.Empty(t, company)
}

func TestClassifyFetchError(t *testing.T) {
	assert.Equal(t, models.ErrKindRateLimited, models.KindOf(classifyFetchError(models.EngineStatic, "h", 429, nil)))
	assert.Equal(t, models.ErrKindBlocked, models.KindOf(classifyFetchError(models.EngineStatic, "h", 403, nil)))
	assert.Equal(t, models.ErrKindTransient, models.KindOf(classifyFetchError(models.EngineStatic, "h", 503, nil)))
	assert.Equal(t, models.ErrKindParse, models.KindOf(classifyFetchError(models.EngineStatic, "h", 404, nil)))
}
