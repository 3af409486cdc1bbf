package engines

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venor/internal/httpclient"
	"github.com/ternarybob/venor/internal/models"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Remote Jobs</title>
  <link>https://remoteok.io</link>
  <item>
    <title>Go Engineer at Acme</title>
    <link>https://remoteok.io/jobs/1</link>
    <description>Build Go services.</description>
    <pubDate>Mon, 03 Nov 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Data Scientist at Beta Inc</title>
    <link>https://remoteok.io/jobs/2</link>
    <description>Python and SQL.</description>
  </item>
  <item>
    <title>Designer at Gamma</title>
    <link>https://remoteok.io/jobs/3</link>
    <description>Figma all day.</description>
  </item>
</channel>
</rss>`

func newFeedForTest(t *testing.T) (*FeedEngine, *httptest.Server) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feedXML)
	}))
	t.Cleanup(server.Close)

	client := httpclient.New(httpclient.Options{Timeout: 5 * time.Second})
	return NewFeedEngine(client, &noopLimiter{}), server
}

func feedBoard(url string) *models.JobBoard {
	return &models.JobBoard{
		ID:      "board_remoteok",
		Name:    "RemoteOK",
		BaseURL: url,
		Engine:  models.EngineFeed,
	}
}

func TestFeedListAndExtract(t *testing.T) {
	engine, server := newFeedForTest(t)
	board := feedBoard(server.URL)

	urls, pages, err := engine.ListJobs(context.Background(), board, "", "", 1)
	require.NoError(t, err)
	require.Len(t, urls, 3)
	assert.Equal(t, 1, pages)

	job, err := engine.ExtractJob(context.Background(), urls[0], nil)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "Go Engineer", job.Title)
	assert.Equal(t, "Acme", job.Company)
	assert.Equal(t, models.EngineFeed, job.Engine)
	require.NotNil(t, job.PostedDate)
	assert.Equal(t, "2025-11-03", job.PostedDate.UTC().Format("2006-01-02"))
}

func TestFeedQueryFilter(t *testing.T) {
	engine, server := newFeedForTest(t)
	board := feedBoard(server.URL)

	urls, _, err := engine.ListJobs(context.Background(), board, "python", "", 1)
	require.NoError(t, err)
	require.Len(t, urls, 1)

	job, err := engine.ExtractJob(context.Background(), urls[0], nil)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "Data Scientist", job.Title)
}

func TestFeedNoMatches(t *testing.T) {
	engine, server := newFeedForTest(t)
	board := feedBoard(server.URL)

	_, _, err := engine.ListJobs(context.Background(), board, "haskell", "", 1)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindEmpty, models.KindOf(err))
}

func TestFeedExtractUnknownURL(t *testing.T) {
	engine, server := newFeedForTest(t)
	board := feedBoard(server.URL)

	_, _, err := engine.ListJobs(context.Background(), board, "", "", 1)
	require.NoError(t, err)

	_, err = engine.ExtractJob(context.Background(), "https://elsewhere.example.com/x", nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindParse, models.KindOf(err))
}

const secondFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>More Remote Jobs</title>
  <link>https://weworkremotely.com</link>
  <item>
    <title>SRE at Delta</title>
    <link>https://weworkremotely.com/jobs/10</link>
    <description>Keep things up.</description>
  </item>
  <item>
    <title>Backend Engineer at Epsilon</title>
    <link>https://weworkremotely.com/jobs/11</link>
    <description>APIs in Go.</description>
  </item>
</channel>
</rss>`

func serveFeed(t *testing.T, xml string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, xml)
	}))
	t.Cleanup(server.Close)
	return server
}

// Two boards share one engine instance; listing the second board must not
// evict the first board's cached entries.
func TestFeedCacheSurvivesSecondBoard(t *testing.T) {
	client := httpclient.New(httpclient.Options{Timeout: 5 * time.Second})
	engine := NewFeedEngine(client, &noopLimiter{})

	serverA := serveFeed(t, feedXML)
	serverB := serveFeed(t, secondFeedXML)

	urlsA, _, err := engine.ListJobs(context.Background(), feedBoard(serverA.URL), "", "", 1)
	require.NoError(t, err)
	require.NotEmpty(t, urlsA)

	boardB := &models.JobBoard{
		ID:      "board_wwr",
		Name:    "WeWorkRemotely",
		BaseURL: serverB.URL,
		Engine:  models.EngineFeed,
	}
	urlsB, _, err := engine.ListJobs(context.Background(), boardB, "", "", 1)
	require.NoError(t, err)
	require.NotEmpty(t, urlsB)

	job, err := engine.ExtractJob(context.Background(), urlsA[0], nil)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "Go Engineer", job.Title)
}

func TestFeedConcurrentSessionsKeepEntries(t *testing.T) {
	client := httpclient.New(httpclient.Options{Timeout: 5 * time.Second})
	engine := NewFeedEngine(client, &noopLimiter{})

	boards := []*models.JobBoard{
		{ID: "board_a", Name: "A", BaseURL: serveFeed(t, feedXML).URL, Engine: models.EngineFeed},
		{ID: "board_b", Name: "B", BaseURL: serveFeed(t, secondFeedXML).URL, Engine: models.EngineFeed},
	}

	results := make([][]string, len(boards))
	var wg sync.WaitGroup
	for i, board := range boards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			urls, pages, err := engine.ListJobs(context.Background(), board, "", "", 1)
			assert.NoError(t, err)
			assert.Equal(t, 1, pages)
			results[i] = urls
		}()
	}
	wg.Wait()

	for _, urls := range results {
		require.NotEmpty(t, urls)
		for _, u := range urls {
			job, err := engine.ExtractJob(context.Background(), u, nil)
			require.NoError(t, err)
			require.NotNil(t, job)
		}
	}
}

func TestFeedProbe(t *testing.T) {
	engine, server := newFeedForTest(t)
	assert.True(t, engine.Probe(context.Background(), server.URL))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not a feed</html>")
	}))
	defer bad.Close()
	assert.False(t, engine.Probe(context.Background(), bad.URL))
}
