package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/paperscout/backend/internal/domain"
	"github.com/paperscout/backend/internal/httputil"
)

// baseURL is a variable so tests can point the client at a local server.
var baseURL = "https://api.unpaywall.org/v2"

// Client resolves open access status for DOIs via the Unpaywall REST API.
// Unpaywall requires a contact email on every request.
type Client struct {
	httpClient *http.Client
	email      string
	maxRetries int
}

func NewClient(email string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		email:      email,
	}
}

// --- Unpaywall API response types ---

type doiResponse struct {
	DOI            string       `json:"doi"`
	IsOA           bool         `json:"is_oa"`
	OAStatus       string       `json:"oa_status"`
	Updated        string       `json:"updated"`
	BestOALocation *oaLocation  `json:"best_oa_location"`
	OALocations    []oaLocation `json:"oa_locations"`
}

type oaLocation struct {
	URL       string `json:"url"`
	URLForPDF string `json:"url_for_pdf"`
	HostType  string `json:"host_type"` // "publisher" or "repository"
	License   string `json:"license"`
	IsBest    bool   `json:"is_best"`
}

// Lookup fetches the open access record for a DOI. A 404 means Unpaywall does
// not know the DOI; that is reported as closed access, not an error.
func (c *Client) Lookup(ctx context.Context, doi string) (*domain.OpenAccessInfo, error) {
	params := url.Values{}
	params.Set("email", c.email)

	reqURL := fmt.Sprintf("%s/%s?%s", baseURL, doi, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("unpaywall request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return &domain.OpenAccessInfo{IsOpenAccess: false}, nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unpaywall returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var doiResp doiResponse
	if err := json.Unmarshal(body, &doiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return responseToInfo(&doiResp), nil
}

func responseToInfo(r *doiResponse) *domain.OpenAccessInfo {
	info := &domain.OpenAccessInfo{IsOpenAccess: r.IsOA}

	if r.Updated != "" {
		if t, err := time.Parse(time.RFC3339, r.Updated); err == nil {
			info.LastUpdated = t
		}
	}

	loc := pickLocation(r)
	if loc == nil {
		return info
	}

	if loc.URLForPDF != "" {
		info.PDFURL = loc.URLForPDF
	} else {
		info.PDFURL = loc.URL
	}
	info.License = loc.License

	return info
}

// pickLocation chooses the most useful open access location. Repository
// copies beat publisher pages, then Unpaywall's own is_best flag; the first
// location wins ties.
func pickLocation(r *doiResponse) *oaLocation {
	if len(r.OALocations) == 0 {
		return r.BestOALocation
	}

	best := -1
	bestScore := -1
	for i := range r.OALocations {
		score := 0
		if r.OALocations[i].HostType == "repository" {
			score += 2
		}
		if r.OALocations[i].IsBest {
			score++
		}
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return &r.OALocations[best]
}
