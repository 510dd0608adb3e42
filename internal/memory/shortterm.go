package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ShortTermStore caches the recent conversation window in Redis lists so the
// pipeline can load it without touching Postgres on the hot path.
type ShortTermStore struct {
	client *redis.Client
}

func NewShortTermStore(client *redis.Client) *ShortTermStore {
	return &ShortTermStore{client: client}
}

func turnsKey(patientID uuid.UUID) string {
	return fmt.Sprintf("turns:%s", patientID.String())
}

// GetRecentTurns returns the last `limit` cached turns in chronological order.
func (s *ShortTermStore) GetRecentTurns(ctx context.Context, patientID uuid.UUID, limit int) ([]ConversationTurn, error) {
	key := turnsKey(patientID)

	vals, err := s.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}

	turns := make([]ConversationTurn, 0, len(vals))
	for _, v := range vals {
		var turn ConversationTurn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			continue // skip malformed entries
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// AppendTurn pushes a turn onto the patient's list, trims to maxTurns and
// refreshes the TTL.
func (s *ShortTermStore) AppendTurn(ctx context.Context, patientID uuid.UUID, turn ConversationTurn, maxTurns, ttlSec int) error {
	key := turnsKey(patientID)

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshaling turn: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, int64(-maxTurns), -1)
	pipe.Expire(ctx, key, time.Duration(ttlSec)*time.Second)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// Clear deletes the cached window for one patient.
func (s *ShortTermStore) Clear(ctx context.Context, patientID uuid.UUID) error {
	return s.client.Del(ctx, turnsKey(patientID)).Err()
}
