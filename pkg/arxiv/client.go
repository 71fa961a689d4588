package arxiv

import (
	"context"
	"encoding/json"
	"encoding/xml"
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
var baseURL = "http://export.arxiv.org/api/query"

const sourceName = "arxiv"

type Client struct {
	httpClient *http.Client
	maxRetries int
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Feed represents the arXiv Atom feed response
type Feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	Entries      []Entry  `xml:"entry"`
}

type Entry struct {
	ID         string     `xml:"id"`
	Title      string     `xml:"title"`
	Summary    string     `xml:"summary"`
	Published  string     `xml:"published"`
	Updated    string     `xml:"updated"`
	DOI        string     `xml:"doi"`
	JournalRef string     `xml:"journal_ref"`
	Authors    []Author   `xml:"author"`
	Links      []Link     `xml:"link"`
	Category   []Category `xml:"category"`
}

type Author struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

type Link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type Category struct {
	Term string `xml:"term,attr"`
}

func (c *Client) SourceName() string {
	return sourceName
}

// Search queries the arXiv Atom API. yearFrom/yearTo of 0 mean unbounded;
// arXiv filters on submission date, so the bounds are mapped to
// submittedDate ranges.
func (c *Client) Search(ctx context.Context, query string, yearFrom, yearTo, limit int) ([]domain.RawPaper, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	searchQuery := fmt.Sprintf("all:%s", query)
	if yearFrom > 0 || yearTo > 0 {
		from := yearFrom
		if from == 0 {
			from = 1900
		}
		to := yearTo
		if to == 0 {
			to = 2099
		}
		searchQuery += fmt.Sprintf(" AND submittedDate:[%d01010000 TO %d12312359]", from, to)
	}

	params := url.Values{}
	params.Set("search_query", searchQuery)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", limit))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	reqURL := fmt.Sprintf("%s?%s", baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("arxiv API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("arxiv API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read arxiv response: %w", err)
	}

	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse arxiv response: %w", err)
	}

	papers := make([]domain.RawPaper, 0, len(feed.Entries))
	for i := range feed.Entries {
		if paper, ok := entryToPaper(&feed.Entries[i]); ok {
			papers = append(papers, paper)
		}
	}

	return papers, nil
}

// HealthCheck issues a minimal query and reports whether the API answered.
func (c *Client) HealthCheck(ctx context.Context) bool {
	params := url.Values{}
	params.Set("search_query", "all:electron")
	params.Set("max_results", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", baseURL, params.Encode()), nil)
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

func entryToPaper(entry *Entry) (domain.RawPaper, bool) {
	// Extract arXiv ID from the full URL
	// e.g., "http://arxiv.org/abs/2301.00001v1" -> "2301.00001"
	arxivID := extractArxivID(entry.ID)
	if arxivID == "" {
		return domain.RawPaper{}, false
	}

	authors := make([]domain.Author, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, domain.Author{
			Name:        strings.TrimSpace(a.Name),
			Affiliation: strings.TrimSpace(a.Affiliation),
		})
	}

	year := 0
	if entry.Published != "" {
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			year = t.Year()
		}
	}

	// Extract PDF URL
	pdfURL := fmt.Sprintf("https://arxiv.org/pdf/%s", arxivID)
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}

	categories := make([]string, 0, len(entry.Category))
	for _, cat := range entry.Category {
		categories = append(categories, cat.Term)
	}
	rawPayload, _ := json.Marshal(map[string]interface{}{
		"arxiv_id":   arxivID,
		"categories": categories,
	})

	return domain.RawPaper{
		Source:       sourceName,
		Title:        strings.TrimSpace(entry.Title),
		Authors:      authors,
		Abstract:     strings.TrimSpace(entry.Summary),
		DOI:          strings.TrimSpace(entry.DOI),
		URL:          entry.ID,
		PDFURL:       pdfURL,
		Year:         year,
		Venue:        strings.TrimSpace(entry.JournalRef),
		IsOpenAccess: true, // every arXiv holding is freely downloadable
		RawPayload:   rawPayload,
	}, true
}

func extractArxivID(fullURL string) string {
	// Handle formats like:
	// "http://arxiv.org/abs/2301.00001v1"
	// "http://arxiv.org/abs/hep-th/9901001v1"
	parts := strings.Split(fullURL, "/abs/")
	if len(parts) != 2 {
		return ""
	}
	id := parts[1]
	// Remove version suffix
	if idx := strings.LastIndex(id, "v"); idx > 0 {
		// Check if everything after 'v' is a number
		versionPart := id[idx+1:]
		isVersion := true
		for _, c := range versionPart {
			if c < '0' || c > '9' {
				isVersion = false
				break
			}
		}
		if isVersion && len(versionPart) > 0 {
			id = id[:idx]
		}
	}
	return id
}
