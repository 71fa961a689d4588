package openalex

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
var baseURL = "https://api.openalex.org"

const sourceName = "openalex"

// Client is an OpenAlex API client for academic paper search.
// OpenAlex is free, has no rate limits (with polite pool), and provides citation counts.
type Client struct {
	httpClient *http.Client
	email      string // for polite pool — faster responses
	maxRetries int
}

// NewClient creates a new OpenAlex API client.
// email is optional but recommended — it puts you in the "polite pool" for faster responses.
func NewClient(email string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		email:      email,
	}
}

// --- OpenAlex API response types ---

type searchResponse struct {
	Meta struct {
		Count   int `json:"count"`
		Page    int `json:"page"`
		PerPage int `json:"per_page"`
	} `json:"meta"`
	Results []workResult `json:"results"`
}

type workResult struct {
	ID                    string                 `json:"id"`
	DOI                   string                 `json:"doi"`
	Title                 string                 `json:"title"`
	DisplayName           string                 `json:"display_name"`
	PublicationYear       int                    `json:"publication_year"`
	PublicationDate       string                 `json:"publication_date"`
	Type                  string                 `json:"type"`
	CitedByCount          int                    `json:"cited_by_count"`
	Authorships           []authorship           `json:"authorships"`
	PrimaryLocation       *location              `json:"primary_location"`
	OpenAccess            *openAccess            `json:"open_access"`
	IDs                   map[string]interface{} `json:"ids"`
	AbstractInvertedIndex map[string][]int       `json:"abstract_inverted_index"`
}

type authorship struct {
	AuthorPosition string `json:"author_position"`
	Author         struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		Orcid       string `json:"orcid"`
	} `json:"author"`
	Institutions []struct {
		DisplayName string `json:"display_name"`
	} `json:"institutions"`
}

type location struct {
	IsOA           bool    `json:"is_oa"`
	LandingPageURL string  `json:"landing_page_url"`
	PDFURL         string  `json:"pdf_url"`
	Source         *source `json:"source"`
}

type source struct {
	ID                   string `json:"id"`
	DisplayName          string `json:"display_name"`
	HostOrganizationName string `json:"host_organization_name"`
	Type                 string `json:"type"`
}

type openAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}

func (c *Client) SourceName() string {
	return sourceName
}

// Search queries the OpenAlex works endpoint. yearFrom/yearTo of 0 mean
// unbounded; bounds are mapped to from/to_publication_date filters.
func (c *Client) Search(ctx context.Context, query string, yearFrom, yearTo, limit int) ([]domain.RawPaper, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("per_page", fmt.Sprintf("%d", limit))
	params.Set("page", "1")

	var filters []string
	if yearFrom > 0 {
		filters = append(filters, fmt.Sprintf("from_publication_date:%d-01-01", yearFrom))
	}
	if yearTo > 0 {
		filters = append(filters, fmt.Sprintf("to_publication_date:%d-12-31", yearTo))
	}
	if len(filters) > 0 {
		params.Set("filter", strings.Join(filters, ","))
	}

	// Polite pool — OpenAlex recommends providing email for faster responses
	if c.email != "" {
		params.Set("mailto", c.email)
	}

	reqURL := fmt.Sprintf("%s/works?%s", baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	ua := "PaperScout/1.0 (academic-search)"
	if c.email != "" {
		ua = fmt.Sprintf("PaperScout/1.0 (mailto:%s)", c.email)
	}
	req.Header.Set("User-Agent", ua)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OpenAlex API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	papers := make([]domain.RawPaper, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		if paper, ok := workToPaper(&searchResp.Results[i]); ok {
			papers = append(papers, paper)
		}
	}

	return papers, nil
}

// HealthCheck issues a minimal works query and reports whether the API answered.
func (c *Client) HealthCheck(ctx context.Context) bool {
	params := url.Values{}
	params.Set("per_page", "1")
	if c.email != "" {
		params.Set("mailto", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/works?%s", baseURL, params.Encode()), nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// workToPaper converts an OpenAlex work result to a raw paper
func workToPaper(w *workResult) (domain.RawPaper, bool) {
	title := w.Title
	if title == "" {
		title = w.DisplayName
	}
	if title == "" {
		return domain.RawPaper{}, false
	}

	// Build authors
	authors := make([]domain.Author, 0, len(w.Authorships))
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			author := domain.Author{Name: strings.TrimSpace(a.Author.DisplayName)}
			if len(a.Institutions) > 0 && a.Institutions[0].DisplayName != "" {
				author.Affiliation = a.Institutions[0].DisplayName
			}
			authors = append(authors, author)
		}
	}

	// OpenAlex reports DOIs as full URLs
	doi := strings.TrimPrefix(w.DOI, "https://doi.org/")

	arxivID := extractArXivID(w)

	// Landing page beats the OpenAlex entity URL
	pageURL := w.ID
	if w.PrimaryLocation != nil && w.PrimaryLocation.LandingPageURL != "" {
		pageURL = w.PrimaryLocation.LandingPageURL
	}

	// Build PDF URL
	pdfURL := ""
	if w.PrimaryLocation != nil && w.PrimaryLocation.PDFURL != "" {
		pdfURL = w.PrimaryLocation.PDFURL
	} else if w.OpenAccess != nil && w.OpenAccess.OAURL != "" {
		pdfURL = w.OpenAccess.OAURL
	}
	// Fallback for arXiv papers
	if pdfURL == "" && arxivID != "" {
		pdfURL = fmt.Sprintf("https://arxiv.org/pdf/%s", arxivID)
	}

	isOA := w.OpenAccess != nil && w.OpenAccess.IsOA

	venue := ""
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		venue = w.PrimaryLocation.Source.DisplayName
	}

	// Reconstruct abstract from inverted index
	abstract := reconstructAbstract(w.AbstractInvertedIndex)

	payload := map[string]interface{}{
		"citation_count": w.CitedByCount,
		"openalex_id":    w.ID,
		"type":           w.Type,
	}
	if w.OpenAccess != nil && w.OpenAccess.OAStatus != "" {
		payload["oa_status"] = w.OpenAccess.OAStatus
	}
	if pmcid := extractPMCID(w); pmcid != "" {
		payload["pmc_id"] = pmcid
	}
	rawPayload, _ := json.Marshal(payload)

	return domain.RawPaper{
		Source:       sourceName,
		Title:        strings.TrimSpace(title),
		Authors:      authors,
		Abstract:     strings.TrimSpace(abstract),
		DOI:          doi,
		URL:          pageURL,
		PDFURL:       pdfURL,
		Year:         w.PublicationYear,
		Venue:        venue,
		IsOpenAccess: isOA,
		RawPayload:   rawPayload,
	}, true
}

// extractArXivID tries to extract an arXiv ID from an OpenAlex work
func extractArXivID(w *workResult) string {
	// Check DOI for arXiv pattern (most reliable)
	if w.DOI != "" {
		doi := strings.TrimPrefix(w.DOI, "https://doi.org/")
		lower := strings.ToLower(doi)
		if strings.HasPrefix(lower, "10.48550/arxiv.") {
			return doi[len("10.48550/arxiv."):]
		}
	}

	// Check primary location for arXiv source
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		srcName := strings.ToLower(w.PrimaryLocation.Source.DisplayName)
		if strings.Contains(srcName, "arxiv") && w.PrimaryLocation.LandingPageURL != "" {
			url := w.PrimaryLocation.LandingPageURL
			if idx := strings.Index(url, "/abs/"); idx != -1 {
				id := url[idx+5:]
				return strings.TrimRight(id, "/")
			}
		}
	}

	return ""
}

// extractPMCID tries to extract a PubMed Central ID from an OpenAlex work
func extractPMCID(w *workResult) string {
	if pmcid, ok := w.IDs["pmcid"]; ok {
		if pmcidStr, ok := pmcid.(string); ok {
			// Format: "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC12345/"
			id := strings.TrimPrefix(pmcidStr, "https://www.ncbi.nlm.nih.gov/pmc/articles/")
			return strings.Trim(id, "/")
		}
	}
	return ""
}

// reconstructAbstract rebuilds a plain text abstract from OpenAlex's inverted index format.
// OpenAlex stores abstracts as {"word": [position1, position2], ...}
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	// Find the maximum position to size the array
	maxPos := 0
	for _, positions := range invertedIndex {
		for _, pos := range positions {
			if pos > maxPos {
				maxPos = pos
			}
		}
	}

	// Build words array indexed by position
	words := make([]string, maxPos+1)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			if pos >= 0 && pos <= maxPos {
				words[pos] = word
			}
		}
	}

	// Join with spaces, filtering empty slots
	var sb strings.Builder
	for i, word := range words {
		if word != "" {
			if i > 0 && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(word)
		}
	}

	return sb.String()
}
