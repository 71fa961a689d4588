package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paperscout/backend/internal/domain"
	"github.com/paperscout/backend/internal/httputil"
)

// baseURL is a variable so tests can point the client at a local server.
var baseURL = "https://api.semanticscholar.org/graph/v1"

const sourceName = "semanticscholar"

type Client struct {
	httpClient *http.Client
	apiKey     string // optional, raises the rate limit
	maxRetries int
}

// NewClient creates a Semantic Scholar Graph API client. apiKey may be empty;
// unauthenticated requests share a pool with an aggressive rate limit, which
// is why searches go through the retrying transport.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		apiKey: apiKey,
	}
}

// API response types
type searchResponse struct {
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Data   []paperResult `json:"data"`
}

type paperResult struct {
	PaperID         string         `json:"paperId"`
	Title           string         `json:"title"`
	Abstract        string         `json:"abstract"`
	Year            int            `json:"year"`
	Venue           string         `json:"venue"`
	CitationCount   int            `json:"citationCount"`
	URL             string         `json:"url"`
	Authors         []authorInfo   `json:"authors"`
	ExternalIDs     externalIDs    `json:"externalIds"`
	OpenAccessPDF   *openAccessPDF `json:"openAccessPdf"`
	PublicationDate string         `json:"publicationDate"` // "YYYY-MM-DD"
}

type authorInfo struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type externalIDs struct {
	ArXiv  string `json:"ArXiv"`
	DOI    string `json:"DOI"`
	PubMed string `json:"PubMed"`
	PMCID  string `json:"PMCID,omitempty"`
}

type openAccessPDF struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

func (c *Client) SourceName() string {
	return sourceName
}

// Search queries the Graph API paper search endpoint. yearFrom/yearTo of 0
// mean unbounded; bounds are mapped to the API's year range syntax
// ("2017-2023", "2017-", "-2023").
func (c *Client) Search(ctx context.Context, query string, yearFrom, yearTo, limit int) ([]domain.RawPaper, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("offset", "0")
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("fields", "title,abstract,year,venue,citationCount,url,authors,externalIds,openAccessPdf,publicationDate")

	if yearRange := formatYearRange(yearFrom, yearTo); yearRange != "" {
		params.Set("year", yearRange)
	}

	reqURL := fmt.Sprintf("%s/paper/search?%s", baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "PaperScout/1.0 (academic-search)")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("semantic scholar API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("semantic scholar API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	papers := make([]domain.RawPaper, 0, len(searchResp.Data))
	for i := range searchResp.Data {
		if paper, ok := resultToPaper(&searchResp.Data[i]); ok {
			papers = append(papers, paper)
		}
	}

	return papers, nil
}

// HealthCheck issues a minimal search and reports whether the API answered.
func (c *Client) HealthCheck(ctx context.Context) bool {
	params := url.Values{}
	params.Set("query", "test")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/paper/search?%s", baseURL, params.Encode()), nil)
	if err != nil {
		return false
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func formatYearRange(yearFrom, yearTo int) string {
	switch {
	case yearFrom > 0 && yearTo > 0:
		return fmt.Sprintf("%d-%d", yearFrom, yearTo)
	case yearFrom > 0:
		return fmt.Sprintf("%d-", yearFrom)
	case yearTo > 0:
		return fmt.Sprintf("-%d", yearTo)
	default:
		return ""
	}
}

func resultToPaper(r *paperResult) (domain.RawPaper, bool) {
	if r.Title == "" {
		return domain.RawPaper{}, false
	}

	// Build authors
	authors := make([]domain.Author, 0, len(r.Authors))
	for _, a := range r.Authors {
		if a.Name != "" {
			authors = append(authors, domain.Author{Name: strings.TrimSpace(a.Name)})
		}
	}

	// Build PDF URL
	pdfURL := ""
	if r.OpenAccessPDF != nil && r.OpenAccessPDF.URL != "" {
		pdfURL = r.OpenAccessPDF.URL
	} else if r.ExternalIDs.ArXiv != "" {
		pdfURL = fmt.Sprintf("https://arxiv.org/pdf/%s", r.ExternalIDs.ArXiv)
	}

	isOA := r.OpenAccessPDF != nil && r.OpenAccessPDF.URL != ""

	payload := map[string]interface{}{
		"citation_count": r.CitationCount,
		"s2_paper_id":    r.PaperID,
	}
	if r.ExternalIDs.ArXiv != "" {
		payload["arxiv_id"] = r.ExternalIDs.ArXiv
	}
	if r.ExternalIDs.PMCID != "" {
		payload["pmc_id"] = r.ExternalIDs.PMCID
	}
	rawPayload, _ := json.Marshal(payload)

	return domain.RawPaper{
		Source:       sourceName,
		Title:        strings.TrimSpace(r.Title),
		Authors:      authors,
		Abstract:     strings.TrimSpace(r.Abstract),
		DOI:          r.ExternalIDs.DOI,
		URL:          r.URL,
		PDFURL:       pdfURL,
		Year:         r.Year,
		Venue:        r.Venue,
		IsOpenAccess: isOA,
		RawPayload:   rawPayload,
	}, true
}
