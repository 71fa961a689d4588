package arxiv

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

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <opensearch:totalResults>2</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <title>Attention Is All You Need</title>
    <summary>The dominant sequence transduction models are based on complex
  recurrent or convolutional neural networks.</summary>
    <published>2017-06-12T17:57:34Z</published>
    <arxiv:doi>10.48550/arXiv.1706.03762</arxiv:doi>
    <arxiv:journal_ref>NeurIPS 2017</arxiv:journal_ref>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
    <category term="cs.CL"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.00001v1</id>
    <title>A Second Paper</title>
    <summary>Another abstract.</summary>
    <published>2023-01-01T00:00:00Z</published>
    <author><name>Jane Doe</name></author>
  </entry>
</feed>`

func TestSearch(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		assert.Equal(t, "10", r.URL.Query().Get("max_results"))
		w.Write([]byte(sampleFeed))
	}))
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	c := NewClient()
	papers, err := c.Search(context.Background(), "attention transformers", 2017, 2023, 10)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	assert.Contains(t, gotQuery, "all:attention transformers")
	assert.Contains(t, gotQuery, "submittedDate:[201701010000 TO 202312312359]")

	p := papers[0]
	assert.Equal(t, "arxiv", p.Source)
	assert.Equal(t, "Attention Is All You Need", p.Title)
	assert.Equal(t, "10.48550/arXiv.1706.03762", p.DOI)
	assert.Equal(t, "NeurIPS 2017", p.Venue)
	assert.Equal(t, 2017, p.Year)
	assert.Equal(t, "http://arxiv.org/pdf/1706.03762v7", p.PDFURL)
	assert.True(t, p.IsOpenAccess)
	require.Len(t, p.Authors, 2)
	assert.Equal(t, "Ashish Vaswani", p.Authors[0].Name)

	// Entry without an explicit pdf link falls back to the canonical URL.
	assert.Equal(t, "https://arxiv.org/pdf/2301.00001", papers[1].PDFURL)
}

func TestSearchNoYearFilter(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		w.Write([]byte(sampleFeed))
	}))
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	c := NewClient()
	_, err := c.Search(context.Background(), "attention", 0, 0, 10)
	require.NoError(t, err)
	assert.NotContains(t, gotQuery, "submittedDate")
}

func TestSearchMalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not xml at all <<<"))
	}))
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	c := NewClient()
	_, err := c.Search(context.Background(), "attention", 0, 0, 10)
	assert.Error(t, err)
}

func TestSearchServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	c := NewClient()
	_, err := c.Search(context.Background(), "attention", 0, 0, 10)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	c := NewClient()
	assert.True(t, c.HealthCheck(context.Background()))

	ts.Close()
	assert.False(t, c.HealthCheck(context.Background()))
}

func TestExtractArxivID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"http://arxiv.org/abs/2301.00001v1", "2301.00001"},
		{"http://arxiv.org/abs/hep-th/9901001v2", "hep-th/9901001"},
		{"http://arxiv.org/abs/1706.03762", "1706.03762"},
		{"http://example.com/nothing", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractArxivID(tc.in), tc.in)
	}
}
