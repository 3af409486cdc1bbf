package advisor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/venor/internal/models"
)

const analyzeSystemPrompt = `You are an expert at analyzing job board websites for automated scraping.
Respond with a single JSON object and nothing else. No markdown, no commentary.`

func buildAnalyzePrompt(baseURL, htmlSample string) string {
	return fmt.Sprintf(`Analyze this job board and recommend a scraping approach.

URL: %s

HTML sample:
%s

Respond with JSON in exactly this shape:
{
  "recommended_engine": "static|browser|feed",
  "complexity": 0.0,
  "requires_js": false,
  "anti_bot_measures": [],
  "rate_limit_rpm": 0,
  "confidence": 0.0,
  "selectors": {
    "job_links": ["css selector"],
    "job_title": ["css selector"],
    "company": ["css selector"],
    "location": ["css selector"],
    "description": ["css selector"],
    "salary": ["css selector"],
    "date_posted": ["css selector"],
    "next_page": ["css selector"]
  }
}

Only include selector fields you are confident about. complexity and
confidence are values between 0 and 1.`, baseURL, htmlSample)
}

const selectorsSystemPrompt = `You are an expert at writing CSS selectors for job listing pages.
Respond with a single JSON object and nothing else.`

func buildSelectorsPrompt(html, boardName string) string {
	return fmt.Sprintf(`Generate CSS selectors to extract job data from %s.

HTML:
%s

Respond with JSON mapping field names to an ordered list of candidate
selectors, most specific first:
{
  "job_links": [], "job_title": [], "company": [], "location": [],
  "description": [], "salary": [], "date_posted": [], "apply_url": [],
  "next_page": []
}

Omit fields with no reliable selector.`, boardName, html)
}

const reviewSystemPrompt = `You assess the quality of scraped job postings.
Respond with a single JSON object and nothing else.`

func buildReviewPrompt(job *models.RawJob) string {
	return fmt.Sprintf(`Review this scraped job posting for quality and completeness.

Title: %s
Company: %s
Location: %s
Salary: %s
Description:
%s

Respond with JSON:
{
  "quality": 0.0,
  "completeness": 0.0,
  "relevance": 0.0,
  "issues": [],
  "suggestions": [],
  "is_duplicate_likely": false
}

All scores are values between 0 and 1.`,
		job.Title, job.Company, job.Location, job.Salary, truncate(job.Description, 4000))
}

const antiBotSystemPrompt = `You identify anti-bot and anti-scraping measures on web pages.
Respond with a single JSON object and nothing else.`

func buildAntiBotPrompt(html string, headers http.Header) string {
	var hdr strings.Builder
	for _, key := range []string{"Server", "Cf-Ray", "X-Frame-Options", "Set-Cookie", "X-Powered-By"} {
		if v := headers.Get(key); v != "" {
			fmt.Fprintf(&hdr, "%s: %s\n", key, truncate(v, 200))
		}
	}

	return fmt.Sprintf(`Identify anti-bot measures present on this page.

Response headers:
%s
HTML sample:
%s

Respond with JSON:
{"measures": ["cloudflare", "captcha", "fingerprinting", ...]}

Use an empty list when nothing is detected.`, hdr.String(), html)
}

const tuningSystemPrompt = `You tune scraping parameters from operational metrics.
Respond with a single JSON object and nothing else.`

func buildTuningPrompt(data *models.BoardPerformanceData) string {
	return fmt.Sprintf(`Recommend scraping parameters for a board with this recent profile.

Board: %s
Sessions: %d
Success rate: %.2f
Average response time: %.1fs
Error rate: %.2f
Rate limit hits: %d
Blocked sessions: %d

Respond with JSON:
{
  "delay_seconds": 2,
  "concurrency": 1,
  "timeout_seconds": 30,
  "ua_strategy": "rotate|fixed",
  "use_proxy": false,
  "notes": []
}`,
		data.BoardID, data.Sessions, data.SuccessRate, data.AvgResponseTime,
		data.ErrorRate, data.RateLimitHits, data.BlockedCount)
}

// extractJSON pulls the first JSON object out of a model response, tolerating
// markdown fences and surrounding prose.
func extractJSON(response string) (string, error) {
	s := strings.TrimSpace(response)

	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return s[start : end+1], nil
}

func decodeJSON(response string, v interface{}) error {
	raw, err := extractJSON(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("malformed advisor response: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// clamp01 bounds a score to [0,1]; models occasionally return out-of-range
// values.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
