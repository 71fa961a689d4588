package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paperscout/backend/internal/domain"
	"github.com/paperscout/backend/internal/metrics"
)

var (
	ErrInvalidInput = errors.New("invalid search input")
	ErrStoreFailed  = errors.New("failed to persist search results")
)

const (
	minQueryLen  = 3
	maxQueryLen  = 1000
	defaultLimit = 25
	maxLimit     = 100
	minYear      = 1900

	defaultEnrichBatchSize = 10
)

// SearchConfig tunes the enrichment stage. Zero values fall back to safe
// defaults, except the delay: zero means no pause between batches.
type SearchConfig struct {
	EnrichBatchSize  int
	EnrichBatchDelay time.Duration
}

// SearchUsecase runs the whole aggregation pipeline: fan out to the sources,
// dedupe, enrich open access data, filter, rank, truncate, persist.
type SearchUsecase struct {
	sources  []domain.SourceClient
	resolver domain.OpenAccessResolver
	topics   domain.TopicRepository
	results  domain.ResultRepository
	cfg      SearchConfig
	log      *zap.Logger
}

func NewSearchUsecase(
	sources []domain.SourceClient,
	resolver domain.OpenAccessResolver,
	topics domain.TopicRepository,
	results domain.ResultRepository,
	cfg SearchConfig,
	log *zap.Logger,
) *SearchUsecase {
	if cfg.EnrichBatchSize <= 0 {
		cfg.EnrichBatchSize = defaultEnrichBatchSize
	}
	return &SearchUsecase{
		sources:  sources,
		resolver: resolver,
		topics:   topics,
		results:  results,
		cfg:      cfg,
		log:      log,
	}
}

// SearchMetadata describes one search run. TotalResults counts everything the
// sources returned before deduplication; FilteredResults is the length of
// Results; SourceCounts breaks TotalResults down per source (a failed source
// reports 0).
type SearchMetadata struct {
	TopicID          uuid.UUID      `json:"topic_id"`
	Query            string         `json:"query"`
	TotalResults     int            `json:"total_results"`
	FilteredResults  int            `json:"filtered_results"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	SourceCounts     map[string]int `json:"source_counts"`
}

// SearchResponse is the API payload for one search run. Results are the
// persisted rows, so every item carries its durable identifier for the
// downstream report layer.
type SearchResponse struct {
	Results  []*domain.PersistedPaper `json:"results"`
	Metadata SearchMetadata           `json:"metadata"`
}

// Search executes the pipeline for one query. Source failures degrade to
// fewer results and enrichment failures leave papers untouched; only invalid
// input and persistence failures surface as errors. Cancellation is honored
// between stages, so an abandoned request never writes a partial batch.
func (u *SearchUsecase) Search(ctx context.Context, q domain.SearchQuery) (*SearchResponse, error) {
	start := time.Now()
	currentYear := time.Now().Year()

	if err := validateQuery(&q, currentYear); err != nil {
		metrics.SearchesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	merged, counts := u.fanOut(ctx, q)
	total := len(merged)
	if err := ctx.Err(); err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	deduped := dedupePapers(merged)

	u.enrich(ctx, deduped)
	if err := ctx.Err(); err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	filtered := deduped
	if q.OpenAccessOnly {
		oa := make([]domain.RawPaper, 0, len(deduped))
		for _, p := range deduped {
			if p.IsOpenAccess {
				oa = append(oa, p)
			}
		}
		filtered = oa
	}

	ranked := rankPapers(filtered, q.Text, currentYear)
	if len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}

	if err := ctx.Err(); err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	topic, rows, err := u.persist(ctx, q, ranked)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.SearchesTotal.WithLabelValues("ok").Inc()
	u.log.Info("search completed",
		zap.String("topic_id", topic.ID.String()),
		zap.String("query", q.Text),
		zap.Int("total_results", total),
		zap.Int("deduped", len(deduped)),
		zap.Int("returned", len(rows)),
		zap.Duration("took", time.Since(start)))

	return &SearchResponse{
		Results: rows,
		Metadata: SearchMetadata{
			TopicID:          topic.ID,
			Query:            q.Text,
			TotalResults:     total,
			FilteredResults:  len(rows),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			SourceCounts:     counts,
		},
	}, nil
}

// validateQuery normalizes and checks the query in place, applying defaults
// for limit and language.
func validateQuery(q *domain.SearchQuery, currentYear int) error {
	q.Text = strings.TrimSpace(q.Text)
	if n := len([]rune(q.Text)); n < minQueryLen || n > maxQueryLen {
		return fmt.Errorf("%w: query must be between %d and %d characters", ErrInvalidInput, minQueryLen, maxQueryLen)
	}

	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.Limit < 1 || q.Limit > maxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, maxLimit)
	}

	if q.Language == "" {
		q.Language = "en"
	}

	maxYear := currentYear + 1
	if q.YearFrom != 0 && (q.YearFrom < minYear || q.YearFrom > maxYear) {
		return fmt.Errorf("%w: year_from must be between %d and %d", ErrInvalidInput, minYear, maxYear)
	}
	if q.YearTo != 0 && (q.YearTo < minYear || q.YearTo > maxYear) {
		return fmt.Errorf("%w: year_to must be between %d and %d", ErrInvalidInput, minYear, maxYear)
	}
	if q.YearFrom != 0 && q.YearTo != 0 && q.YearFrom > q.YearTo {
		return fmt.Errorf("%w: year_from must not be after year_to", ErrInvalidInput)
	}

	return nil
}

// fanOut queries every registered source concurrently and concatenates the
// per-source results in registration order, which keeps downstream dedup and
// ranking tie-breaks deterministic regardless of which source answered first.
// A failing source contributes nothing instead of failing the search.
func (u *SearchUsecase) fanOut(ctx context.Context, q domain.SearchQuery) ([]domain.RawPaper, map[string]int) {
	perSource := make([][]domain.RawPaper, len(u.sources))

	var wg sync.WaitGroup
	for i, src := range u.sources {
		wg.Add(1)
		go func(i int, src domain.SourceClient) {
			defer wg.Done()

			started := time.Now()
			papers, err := src.Search(ctx, q.Text, q.YearFrom, q.YearTo, q.Limit)
			metrics.SourceRequestDuration.WithLabelValues(src.SourceName()).Observe(time.Since(started).Seconds())

			if err != nil {
				metrics.SourceRequestsTotal.WithLabelValues(src.SourceName(), "error").Inc()
				u.log.Warn("source search failed",
					zap.String("source", src.SourceName()),
					zap.Error(err))
				return
			}
			metrics.SourceRequestsTotal.WithLabelValues(src.SourceName(), "ok").Inc()
			perSource[i] = papers
		}(i, src)
	}
	wg.Wait()

	var merged []domain.RawPaper
	counts := make(map[string]int, len(u.sources))
	for i, papers := range perSource {
		counts[u.sources[i].SourceName()] = len(papers)
		merged = append(merged, papers...)
	}
	return merged, counts
}

// enrich resolves open access status for every DOI-bearing paper, in batches
// with a pause between them to stay inside the resolver's rate limit. The
// merge only upgrades: a paper already flagged open access is never
// downgraded, and an existing PDF link is never overwritten. Lookup failures
// leave the paper as the source reported it.
func (u *SearchUsecase) enrich(ctx context.Context, papers []domain.RawPaper) {
	if u.resolver == nil {
		return
	}

	var idxs []int
	for i := range papers {
		if strings.TrimSpace(papers[i].DOI) != "" {
			idxs = append(idxs, i)
		}
	}

	for start := 0; start < len(idxs); start += u.cfg.EnrichBatchSize {
		if ctx.Err() != nil {
			return
		}
		end := min(start+u.cfg.EnrichBatchSize, len(idxs))

		var wg sync.WaitGroup
		for _, i := range idxs[start:end] {
			wg.Add(1)
			go func(p *domain.RawPaper) {
				defer wg.Done()

				info, err := u.resolver.Lookup(ctx, p.DOI)
				if err != nil {
					metrics.OALookupsTotal.WithLabelValues("error").Inc()
					u.log.Warn("open access lookup failed",
						zap.String("doi", p.DOI),
						zap.Error(err))
					return
				}
				metrics.OALookupsTotal.WithLabelValues("ok").Inc()

				if info.IsOpenAccess {
					p.IsOpenAccess = true
					if p.PDFURL == "" && info.PDFURL != "" {
						p.PDFURL = info.PDFURL
					}
				}
			}(&papers[i])
		}
		wg.Wait()

		if end < len(idxs) && u.cfg.EnrichBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(u.cfg.EnrichBatchDelay):
			}
		}
	}
}

// persist finds or creates the topic for the query's signature and appends
// the ranked results under it, returning the stored rows.
func (u *SearchUsecase) persist(ctx context.Context, q domain.SearchQuery, ranked []domain.RankedResult) (*domain.Topic, []*domain.PersistedPaper, error) {
	topic, err := u.topics.FindBySignature(ctx, q.Signature())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: looking up topic: %v", ErrStoreFailed, err)
	}
	if topic == nil {
		topic = &domain.Topic{
			ID:        uuid.New(),
			Query:     q.Text,
			Language:  q.Language,
			YearFrom:  q.YearFrom,
			YearTo:    q.YearTo,
			Signature: q.Signature(),
			CreatedAt: time.Now(),
		}
		if err := u.topics.Create(ctx, topic); err != nil {
			return nil, nil, fmt.Errorf("%w: creating topic: %v", ErrStoreFailed, err)
		}
	}

	now := time.Now()
	rows := make([]*domain.PersistedPaper, 0, len(ranked))
	for _, r := range ranked {
		rows = append(rows, &domain.PersistedPaper{
			ID:           uuid.New(),
			TopicID:      topic.ID,
			Source:       r.Source,
			Title:        r.Title,
			Authors:      r.Authors,
			Abstract:     r.Abstract,
			DOI:          r.DOI,
			URL:          r.URL,
			PDFURL:       r.PDFURL,
			Year:         r.Year,
			Venue:        r.Venue,
			IsOpenAccess: r.IsOpenAccess,
			Score:        r.Score,
			CreatedAt:    now,
		})
	}

	if err := u.results.InsertBatch(ctx, rows); err != nil {
		return nil, nil, fmt.Errorf("%w: inserting results: %v", ErrStoreFailed, err)
	}

	return topic, rows, nil
}

// SourceHealth reports one upstream's reachability.
type SourceHealth struct {
	Source  string `json:"source"`
	Healthy bool   `json:"healthy"`
}

// SourcesHealth probes every registered source concurrently.
func (u *SearchUsecase) SourcesHealth(ctx context.Context) []SourceHealth {
	out := make([]SourceHealth, len(u.sources))

	var wg sync.WaitGroup
	for i, src := range u.sources {
		wg.Add(1)
		go func(i int, src domain.SourceClient) {
			defer wg.Done()
			out[i] = SourceHealth{
				Source:  src.SourceName(),
				Healthy: src.HealthCheck(ctx),
			}
		}(i, src)
	}
	wg.Wait()

	return out
}
