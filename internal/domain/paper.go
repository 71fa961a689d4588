package domain

import (
	"context"
	"encoding/json"
	"time"
)

// RawPaper is one source's view of a paper, produced per request and never
// persisted directly. RawPayload carries the provider's original record for
// diagnostics and survives the response cache round-trip.
type RawPaper struct {
	Source       string          `json:"source"`
	Title        string          `json:"title"`
	Authors      []Author        `json:"authors,omitempty"`
	Abstract     string          `json:"abstract,omitempty"`
	DOI          string          `json:"doi,omitempty"`
	URL          string          `json:"url,omitempty"`
	PDFURL       string          `json:"pdf_url,omitempty"`
	Year         int             `json:"year,omitempty"`
	Venue        string          `json:"venue,omitempty"`
	IsOpenAccess bool            `json:"is_open_access"`
	RawPayload   json.RawMessage `json:"raw_payload,omitempty"`
}

type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// RankedResult pairs a paper with its relevance score. Ordering is
// meaningful; equal scores keep their pre-ranking relative order.
type RankedResult struct {
	RawPaper
	Score float64 `json:"score"`
}

// OpenAccessInfo describes free-availability of a paper, keyed by DOI.
type OpenAccessInfo struct {
	IsOpenAccess bool      `json:"is_open_access"`
	PDFURL       string    `json:"pdf_url,omitempty"`
	License      string    `json:"license,omitempty"`
	LastUpdated  time.Time `json:"last_updated,omitempty"`
}

// SourceClient is the contract every external catalog provider implements.
// yearFrom/yearTo of 0 mean unbounded. Implementations translate the common
// query into the provider's wire format and map responses into RawPaper;
// they return an error on network or parse failure and leave recovery to
// the caller.
type SourceClient interface {
	SourceName() string
	Search(ctx context.Context, query string, yearFrom, yearTo, limit int) ([]RawPaper, error)
	HealthCheck(ctx context.Context) bool
}

// OpenAccessResolver looks up free-availability for a DOI. "Not found" is a
// valid answer ({IsOpenAccess: false}, nil); a non-nil error means the
// lookup itself could not be completed.
type OpenAccessResolver interface {
	Lookup(ctx context.Context, doi string) (*OpenAccessInfo, error)
}
