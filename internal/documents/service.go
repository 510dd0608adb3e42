package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const latestTTL = time.Hour

// LatestCache keeps a per-patient pointer to the newest analysis in Redis so
// the common "what did you last tell me" read skips Postgres.
type LatestCache struct {
	client *redis.Client
}

func NewLatestCache(client *redis.Client) *LatestCache {
	return &LatestCache{client: client}
}

func latestKey(patientID uuid.UUID) string {
	return fmt.Sprintf("analysis:latest:%s", patientID.String())
}

func (c *LatestCache) Set(ctx context.Context, res *Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshaling latest result: %w", err)
	}
	return c.client.Set(ctx, latestKey(res.PatientID), data, latestTTL).Err()
}

// Get returns nil without error on a cache miss.
func (c *LatestCache) Get(ctx context.Context, patientID uuid.UUID) (*Result, error) {
	data, err := c.client.Get(ctx, latestKey(patientID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("getting latest pointer: %w", err)
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unmarshaling latest pointer: %w", err)
	}
	return &res, nil
}

// Service pairs the durable result store with the latest-pointer cache.
type Service struct {
	repo  Repository
	cache *LatestCache
}

func NewService(repo Repository, cache *LatestCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Persist writes the result durably and refreshes the latest pointer. A
// cache write failure is logged, not returned: the row is what matters.
func (s *Service) Persist(ctx context.Context, res *Result) error {
	if err := s.repo.Create(ctx, res); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, res); err != nil {
		slog.Warn("documents: caching latest pointer failed", "error", err, "patient_id", res.PatientID)
	}
	return nil
}

// Latest serves from the cache and falls back to a Postgres scan on a miss
// or a cache error. Returns nil without error when no analyses exist.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID) (*Result, error) {
	res, err := s.cache.Get(ctx, patientID)
	if err != nil {
		slog.Warn("documents: latest pointer cache unavailable", "error", err, "patient_id", patientID)
	} else if res != nil {
		return res, nil
	}
	return s.repo.GetLatest(ctx, patientID)
}

// List returns a page of the analysis audit history, newest first.
func (s *Service) List(ctx context.Context, patientID uuid.UUID, page, pageSize int) ([]Result, int64, error) {
	results, err := s.repo.ListByPatient(ctx, patientID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.repo.CountByPatient(ctx, patientID)
	if err != nil {
		return nil, 0, err
	}
	return results, count, nil
}

// SimilarFindings returns the primary-analysis text of past runs closest to
// the given embedding. Any failure yields an empty slice: this feed is a
// supplement, never a reason to fail a request.
func (s *Service) SimilarFindings(ctx context.Context, patientID uuid.UUID, embedding []float32, limit int, threshold float64) []string {
	if len(embedding) == 0 {
		return nil
	}
	findings, err := s.repo.SearchSimilar(ctx, patientID, embedding, limit, threshold)
	if err != nil {
		slog.Warn("documents: similar-finding search failed", "error", err, "patient_id", patientID)
		return nil
	}
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Content)
	}
	return out
}
