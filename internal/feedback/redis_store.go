package feedback

import (
	"context"
	"encoding/json"
	"fmt"

	"smartsdlc/internal/models"
	"smartsdlc/internal/redis"
)

// RedisStore appends feedback to a redis stream. XADD is atomic, so the
// stream order is the arrival order across every server instance.
type RedisStore struct {
	client *redis.Client
	stream string
}

func NewRedisStore(client *redis.Client, stream string) *RedisStore {
	if stream == "" {
		stream = "smartsdlc:feedback"
	}
	return &RedisStore{client: client, stream: stream}
}

func (s *RedisStore) Append(ctx context.Context, fb models.Feedback) error {
	payload, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	if _, err := s.client.XAdd(ctx, s.stream, map[string]any{
		"message_id": fb.MessageID,
		"data":       string(payload),
	}); err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.Feedback, error) {
	entries, err := s.client.XRange(ctx, s.stream)
	if err != nil {
		return nil, fmt.Errorf("read feedback stream: %w", err)
	}
	out := make([]models.Feedback, 0, len(entries))
	for _, e := range entries {
		raw, _ := e.Values["data"].(string)
		var fb models.Feedback
		if err := json.Unmarshal([]byte(raw), &fb); err != nil {
			return nil, fmt.Errorf("decode feedback %s: %w", e.ID, err)
		}
		out = append(out, fb)
	}
	return out, nil
}

func (s *RedisStore) ListByMessageID(ctx context.Context, messageID string) ([]models.Feedback, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterByMessage(all, messageID), nil
}
