package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperscout/backend/internal/domain"
)

type TopicRepository struct {
	db *pgxpool.Pool
}

func NewTopicRepository(db *pgxpool.Pool) *TopicRepository {
	return &TopicRepository{db: db}
}

func (r *TopicRepository) FindBySignature(ctx context.Context, signature string) (*domain.Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, query, language, year_from, year_to, signature, created_at
		FROM topics WHERE signature = $1
	`

	topic := &domain.Topic{}
	err := r.db.QueryRow(ctx, query, signature).Scan(
		&topic.ID,
		&topic.Query,
		&topic.Language,
		&topic.YearFrom,
		&topic.YearTo,
		&topic.Signature,
		&topic.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func (r *TopicRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, query, language, year_from, year_to, signature, created_at
		FROM topics WHERE id = $1
	`

	topic := &domain.Topic{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&topic.ID,
		&topic.Query,
		&topic.Language,
		&topic.YearFrom,
		&topic.YearTo,
		&topic.Signature,
		&topic.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// Create inserts the topic. Signatures are unique; when a concurrent search
// wins the insert race, the stored row is adopted into the passed struct so
// both searches end up appending to the same topic.
func (r *TopicRepository) Create(ctx context.Context, topic *domain.Topic) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO topics (id, query, language, year_from, year_to, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (signature) DO NOTHING
	`

	if topic.ID == uuid.Nil {
		topic.ID = uuid.New()
	}
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now()
	}

	tag, err := r.db.Exec(ctx, query,
		topic.ID,
		topic.Query,
		topic.Language,
		topic.YearFrom,
		topic.YearTo,
		topic.Signature,
		topic.CreatedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		existing, err := r.FindBySignature(ctx, topic.Signature)
		if err != nil {
			return err
		}
		if existing != nil {
			*topic = *existing
		}
	}
	return nil
}

func (r *TopicRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, query, language, year_from, year_to, signature, created_at
		FROM topics
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []*domain.Topic
	for rows.Next() {
		topic := &domain.Topic{}
		if err := rows.Scan(
			&topic.ID,
			&topic.Query,
			&topic.Language,
			&topic.YearFrom,
			&topic.YearTo,
			&topic.Signature,
			&topic.CreatedAt,
		); err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}
