package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperscout/backend/internal/domain"
)

type ResultRepository struct {
	db *pgxpool.Pool
}

func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

// InsertBatch appends one search run's ranked results. The batch goes out as
// a single pipeline, so it lands atomically: either every row is stored or
// none is.
func (r *ResultRepository) InsertBatch(ctx context.Context, results []*domain.PersistedPaper) error {
	if len(results) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		INSERT INTO topic_results (id, topic_id, source, title, authors, abstract, doi, url, pdf_url, year, venue, is_open_access, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	batch := &pgx.Batch{}
	for _, res := range results {
		authorsJSON, err := json.Marshal(res.Authors)
		if err != nil {
			return err
		}
		batch.Queue(query,
			res.ID,
			res.TopicID,
			res.Source,
			res.Title,
			authorsJSON,
			res.Abstract,
			res.DOI,
			res.URL,
			res.PDFURL,
			res.Year,
			res.Venue,
			res.IsOpenAccess,
			res.Score,
			res.CreatedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListByTopic returns every stored result for a topic, newest batch first,
// best score first within a batch.
func (r *ResultRepository) ListByTopic(ctx context.Context, topicID uuid.UUID) ([]*domain.PersistedPaper, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		SELECT id, topic_id, source, title, authors, abstract, doi, url, pdf_url, year, venue, is_open_access, score, created_at
		FROM topic_results
		WHERE topic_id = $1
		ORDER BY created_at DESC, score DESC
	`

	rows, err := r.db.Query(ctx, query, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.PersistedPaper
	for rows.Next() {
		res := &domain.PersistedPaper{}
		var authorsJSON []byte
		if err := rows.Scan(
			&res.ID,
			&res.TopicID,
			&res.Source,
			&res.Title,
			&authorsJSON,
			&res.Abstract,
			&res.DOI,
			&res.URL,
			&res.PDFURL,
			&res.Year,
			&res.Venue,
			&res.IsOpenAccess,
			&res.Score,
			&res.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(authorsJSON) > 0 {
			if err := json.Unmarshal(authorsJSON, &res.Authors); err != nil {
				return nil, err
			}
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
