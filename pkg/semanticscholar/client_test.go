package semanticscholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperscout/backend/internal/httputil"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

const sampleResponse = `{
  "total": 2,
  "offset": 0,
  "data": [
    {
      "paperId": "649def34f8be52c8b66281af98ae884c09aef38b",
      "title": "Attention Is All You Need",
      "abstract": "The dominant sequence transduction models...",
      "year": 2017,
      "venue": "Neural Information Processing Systems",
      "citationCount": 90000,
      "url": "https://www.semanticscholar.org/paper/649def34",
      "authors": [{"authorId": "1", "name": "Ashish Vaswani"}],
      "externalIds": {"ArXiv": "1706.03762", "DOI": "10.48550/arXiv.1706.03762"},
      "openAccessPdf": {"url": "https://arxiv.org/pdf/1706.03762.pdf", "status": "GREEN"},
      "publicationDate": "2017-06-12"
    },
    {
      "paperId": "deadbeef",
      "title": "Closed Access Paper",
      "year": 2021,
      "externalIds": {"DOI": "10.1000/closed.1"},
      "authors": []
    }
  ]
}`

func TestSearch(t *testing.T) {
	var gotYear, gotAPIKey, gotFields string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotYear = r.URL.Query().Get("year")
		gotAPIKey = r.Header.Get("x-api-key")
		gotFields = r.URL.Query().Get("fields")
		w.Write([]byte(sampleResponse))
	}))
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	c := NewClient("secret-key")
	papers, err := c.Search(context.Background(), "attention", 2017, 2023, 20)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	assert.Equal(t, "2017-2023", gotYear)
	assert.Equal(t, "secret-key", gotAPIKey)
	assert.Contains(t, gotFields, "openAccessPdf")

	p := papers[0]
	assert.Equal(t, "semanticscholar", p.Source)
	assert.Equal(t, "Attention Is All You Need", p.Title)
	assert.Equal(t, "10.48550/arXiv.1706.03762", p.DOI)
	assert.Equal(t, 2017, p.Year)
	assert.Equal(t, "Neural Information Processing Systems", p.Venue)
	assert.Equal(t, "https://arxiv.org/pdf/1706.03762.pdf", p.PDFURL)
	assert.True(t, p.IsOpenAccess)
	require.Len(t, p.Authors, 1)
	assert.Equal(t, "Ashish Vaswani", p.Authors[0].Name)

	// No openAccessPdf means not open access and no PDF link.
	assert.False(t, papers[1].IsOpenAccess)
	assert.Empty(t, papers[1].PDFURL)
}

func TestSearchNoAPIKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("x-api-key"))
		w.Write([]byte(`{"total":0,"offset":0,"data":[]}`))
	}))
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	c := NewClient("")
	papers, err := c.Search(context.Background(), "attention", 0, 0, 20)
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestSearchRetriesRateLimit(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"total":0,"offset":0,"data":[]}`))
	}))
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	c := NewClient("")
	_, err := c.Search(context.Background(), "attention", 0, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFormatYearRange(t *testing.T) {
	assert.Equal(t, "2017-2023", formatYearRange(2017, 2023))
	assert.Equal(t, "2017-", formatYearRange(2017, 0))
	assert.Equal(t, "-2023", formatYearRange(0, 2023))
	assert.Equal(t, "", formatYearRange(0, 0))
}

func TestHealthCheck(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"total":0,"offset":0,"data":[]}`))
	}))

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	c := NewClient("")
	assert.True(t, c.HealthCheck(context.Background()))

	ts.Close()
	assert.False(t, c.HealthCheck(context.Background()))
}
