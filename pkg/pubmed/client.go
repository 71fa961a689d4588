package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paperscout/backend/internal/domain"
	"github.com/paperscout/backend/internal/httputil"
)

// baseURL is a variable so tests can point the client at a local server.
// ESearch and EFetch live under the same eutils root.
var baseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const sourceName = "pubmed"

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

// ESearch response types
type ESearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  IDList   `xml:"IdList"`
}

type IDList struct {
	IDs []string `xml:"Id"`
}

// EFetch response types
type PubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []PubmedArticle `xml:"PubmedArticle"`
}

type PubmedArticle struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
	PubmedData      PubmedData      `xml:"PubmedData"`
}

type MedlineCitation struct {
	PMID    PMID    `xml:"PMID"`
	Article Article `xml:"Article"`
}

type PMID struct {
	Value string `xml:",chardata"`
}

type Article struct {
	Journal         Journal       `xml:"Journal"`
	ArticleTitle    string        `xml:"ArticleTitle"`
	Abstract        Abstract      `xml:"Abstract"`
	AuthorList      AuthorList    `xml:"AuthorList"`
	ArticleDate     []ArticleDate `xml:"ArticleDate"`
	ELocationIDList []ELocationID `xml:"ELocationID"`
}

type Journal struct {
	Title   string      `xml:"Title"`
	PubDate JournalDate `xml:"JournalIssue>PubDate"`
}

type JournalDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

type Abstract struct {
	AbstractTexts []AbstractText `xml:"AbstractText"`
}

type AbstractText struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type AuthorList struct {
	Authors []PubmedAuthor `xml:"Author"`
}

type PubmedAuthor struct {
	LastName    string   `xml:"LastName"`
	ForeName    string   `xml:"ForeName"`
	Affiliation []string `xml:"AffiliationInfo>Affiliation"`
}

type ArticleDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type ELocationID struct {
	EIdType string `xml:"EIdType,attr"`
	Value   string `xml:",chardata"`
}

type PubmedData struct {
	ArticleIDList ArticleIDList `xml:"ArticleIdList"`
}

type ArticleIDList struct {
	ArticleIDs []ArticleID `xml:"ArticleId"`
}

type ArticleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

func (c *Client) SourceName() string {
	return sourceName
}

// Search runs the two-step E-utilities flow: ESearch for PMIDs, then EFetch
// for article details. yearFrom/yearTo of 0 mean unbounded; NCBI requires
// mindate and maxdate together, so open ends get wide defaults.
func (c *Client) Search(ctx context.Context, query string, yearFrom, yearTo, limit int) ([]domain.RawPaper, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	// Step 1: ESearch to get PMIDs
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retstart", "0")
	params.Set("retmax", fmt.Sprintf("%d", limit))
	params.Set("sort", "relevance")
	params.Set("retmode", "xml")

	if yearFrom > 0 || yearTo > 0 {
		from := yearFrom
		if from == 0 {
			from = 1900
		}
		to := yearTo
		if to == 0 {
			to = 2099
		}
		params.Set("datetype", "pdat")
		params.Set("mindate", strconv.Itoa(from))
		params.Set("maxdate", strconv.Itoa(to))
	}

	body, err := c.get(ctx, fmt.Sprintf("%s/esearch.fcgi?%s", baseURL, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("pubmed esearch request failed: %w", err)
	}

	var searchResult ESearchResult
	if err := xml.Unmarshal(body, &searchResult); err != nil {
		return nil, fmt.Errorf("failed to parse esearch response: %w", err)
	}

	if len(searchResult.IDList.IDs) == 0 {
		return []domain.RawPaper{}, nil
	}

	// Step 2: EFetch to get article details
	return c.fetchArticles(ctx, searchResult.IDList.IDs)
}

// HealthCheck issues a minimal ESearch and reports whether the API answered.
func (c *Client) HealthCheck(ctx context.Context) bool {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", "cancer")
	params.Set("retmax", "1")
	params.Set("retmode", "xml")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/esearch.fcgi?%s", baseURL, params.Encode()), nil)
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

func (c *Client) fetchArticles(ctx context.Context, pmids []string) ([]domain.RawPaper, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")
	params.Set("rettype", "abstract")

	body, err := c.get(ctx, fmt.Sprintf("%s/efetch.fcgi?%s", baseURL, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("pubmed efetch request failed: %w", err)
	}

	var articleSet PubmedArticleSet
	if err := xml.Unmarshal(body, &articleSet); err != nil {
		return nil, fmt.Errorf("failed to parse efetch response: %w", err)
	}

	papers := make([]domain.RawPaper, 0, len(articleSet.Articles))
	for i := range articleSet.Articles {
		if paper, ok := articleToPaper(&articleSet.Articles[i]); ok {
			papers = append(papers, paper)
		}
	}

	return papers, nil
}

// get issues a retrying GET and returns the body. NCBI answers 429 when a
// caller exceeds 3 requests per second, which the retry transport absorbs.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func articleToPaper(article *PubmedArticle) (domain.RawPaper, bool) {
	pmid := article.MedlineCitation.PMID.Value
	if pmid == "" {
		return domain.RawPaper{}, false
	}

	// Build abstract text
	var abstractParts []string
	for _, text := range article.MedlineCitation.Article.Abstract.AbstractTexts {
		if text.Label != "" {
			abstractParts = append(abstractParts, fmt.Sprintf("%s: %s", text.Label, text.Text))
		} else {
			abstractParts = append(abstractParts, text.Text)
		}
	}
	abstract := strings.Join(abstractParts, "\n\n")

	// Build authors
	authors := make([]domain.Author, 0, len(article.MedlineCitation.Article.AuthorList.Authors))
	for _, a := range article.MedlineCitation.Article.AuthorList.Authors {
		name := strings.TrimSpace(fmt.Sprintf("%s %s", a.ForeName, a.LastName))
		if name == "" {
			continue
		}
		affiliation := ""
		if len(a.Affiliation) > 0 {
			affiliation = a.Affiliation[0]
		}
		authors = append(authors, domain.Author{
			Name:        name,
			Affiliation: affiliation,
		})
	}

	year := parseYear(article)

	// Find DOI and PMC ID
	var doi, pmcID string
	for _, id := range article.PubmedData.ArticleIDList.ArticleIDs {
		switch id.IDType {
		case "doi":
			doi = id.Value
		case "pmc":
			pmcID = id.Value
		}
	}

	// A PMC deposit means the full text is freely readable
	pdfURL := ""
	if pmcID != "" {
		pdfURL = fmt.Sprintf("https://www.ncbi.nlm.nih.gov/pmc/articles/%s/pdf/", pmcID)
	}

	payload := map[string]interface{}{
		"pmid": pmid,
	}
	if pmcID != "" {
		payload["pmc_id"] = pmcID
	}
	rawPayload, _ := json.Marshal(payload)

	return domain.RawPaper{
		Source:       sourceName,
		Title:        strings.TrimSpace(article.MedlineCitation.Article.ArticleTitle),
		Authors:      authors,
		Abstract:     abstract,
		DOI:          doi,
		URL:          fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid),
		PDFURL:       pdfURL,
		Year:         year,
		Venue:        article.MedlineCitation.Article.Journal.Title,
		IsOpenAccess: pmcID != "",
		RawPayload:   rawPayload,
	}, true
}

// parseYear reads the publication year from the journal issue date, falling
// back to the electronic article date, then to MedlineDate strings like
// "2017 Nov-Dec".
func parseYear(article *PubmedArticle) int {
	pubDate := article.MedlineCitation.Article.Journal.PubDate
	if y, err := strconv.Atoi(pubDate.Year); err == nil && y > 0 {
		return y
	}
	for _, d := range article.MedlineCitation.Article.ArticleDate {
		if y, err := strconv.Atoi(d.Year); err == nil && y > 0 {
			return y
		}
	}
	if len(pubDate.MedlineDate) >= 4 {
		if y, err := strconv.Atoi(pubDate.MedlineDate[:4]); err == nil && y > 0 {
			return y
		}
	}
	return 0
}
