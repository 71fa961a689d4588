package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/paperscout/backend/internal/domain"
)

var ErrTopicNotFound = errors.New("topic not found")

// TopicUsecase serves read access to persisted topics and their result
// batches.
type TopicUsecase struct {
	topics  domain.TopicRepository
	results domain.ResultRepository
}

func NewTopicUsecase(topics domain.TopicRepository, results domain.ResultRepository) *TopicUsecase {
	return &TopicUsecase{
		topics:  topics,
		results: results,
	}
}

func (u *TopicUsecase) ListTopics(ctx context.Context, limit int) ([]*domain.Topic, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return u.topics.ListRecent(ctx, limit)
}

// TopicResults is the payload for one topic's stored results, newest batch
// first.
type TopicResults struct {
	Topic   *domain.Topic            `json:"topic"`
	Results []*domain.PersistedPaper `json:"results"`
}

func (u *TopicUsecase) GetTopicResults(ctx context.Context, topicID uuid.UUID) (*TopicResults, error) {
	topic, err := u.topics.FindByID(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, ErrTopicNotFound
	}

	rows, err := u.results.ListByTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}

	return &TopicResults{Topic: topic, Results: rows}, nil
}
