package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Topic is the persisted identity of one distinct search signature. It is
// created once and never mutated or deleted by the engine; repeated
// identical searches reuse the same row.
type Topic struct {
	ID        uuid.UUID `json:"id"`
	Query     string    `json:"query"`
	Language  string    `json:"language"`
	YearFrom  int       `json:"year_from,omitempty"`
	YearTo    int       `json:"year_to,omitempty"`
	Signature string    `json:"signature"`
	CreatedAt time.Time `json:"created_at"`
}

// PersistedPaper is the subset of a ranked result written to the store under
// a Topic. Rows are append-only: one batch per search, never updated or
// deleted by the search flow.
type PersistedPaper struct {
	ID           uuid.UUID `json:"id"`
	TopicID      uuid.UUID `json:"topic_id"`
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	Authors      []Author  `json:"authors,omitempty"`
	Abstract     string    `json:"abstract,omitempty"`
	DOI          string    `json:"doi,omitempty"`
	URL          string    `json:"url,omitempty"`
	PDFURL       string    `json:"pdf_url,omitempty"`
	Year         int       `json:"year,omitempty"`
	Venue        string    `json:"venue,omitempty"`
	IsOpenAccess bool      `json:"is_open_access"`
	Score        float64   `json:"score"`
	CreatedAt    time.Time `json:"created_at"`
}

type TopicRepository interface {
	// FindBySignature returns (nil, nil) when no topic matches.
	FindBySignature(ctx context.Context, signature string) (*Topic, error)
	// FindByID returns (nil, nil) when no topic matches.
	FindByID(ctx context.Context, id uuid.UUID) (*Topic, error)
	// Create inserts the topic. When a concurrent search already created a
	// topic with the same signature, the passed struct is overwritten with
	// the stored row instead.
	Create(ctx context.Context, topic *Topic) error
	ListRecent(ctx context.Context, limit int) ([]*Topic, error)
}

type ResultRepository interface {
	InsertBatch(ctx context.Context, results []*PersistedPaper) error
	ListByTopic(ctx context.Context, topicID uuid.UUID) ([]*PersistedPaper, error)
}
