// Package feedback records user ratings on an append-only store and
// aggregates them per feature.
package feedback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartsdlc/internal/apperr"
	"smartsdlc/internal/config"
	"smartsdlc/internal/models"
	"smartsdlc/internal/redis"
	"smartsdlc/internal/storage"
)

const acknowledgement = "Feedback received successfully"

// Collector validates feedback and appends it to a Store.
type Collector struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewCollector(store Store, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Record appends one feedback entry. A rating outside [MinRating, MaxRating]
// is rejected before anything is written. messageID is stored as given.
func (c *Collector) Record(ctx context.Context, rating int, comment, messageID, feature string) (*models.Acknowledgement, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, apperr.Validation("rating", fmt.Sprintf("Rating must be between %d and %d", models.MinRating, models.MaxRating))
	}
	fb := models.Feedback{
		ID:         c.newID(),
		Rating:     rating,
		Comment:    comment,
		MessageID:  messageID,
		Feature:    strings.TrimSpace(feature),
		ReceivedAt: c.now().UTC(),
	}
	if err := c.store.Append(ctx, fb); err != nil {
		return nil, fmt.Errorf("record feedback: %w", err)
	}
	c.logger.Info("feedback recorded", "id", fb.ID, "rating", fb.Rating, "message_id", fb.MessageID, "feature", fb.Feature)
	return &models.Acknowledgement{ID: fb.ID, Message: acknowledgement, ReceivedAt: fb.ReceivedAt}, nil
}

func (c *Collector) List(ctx context.Context) ([]models.Feedback, error) {
	return c.store.List(ctx)
}

func (c *Collector) ListByMessageID(ctx context.Context, messageID string) ([]models.Feedback, error) {
	return c.store.ListByMessageID(ctx, messageID)
}

// Stats aggregates the total count and average rating, overall and per
// feature. Entries without a feature are grouped under "general".
func (c *Collector) Stats(ctx context.Context) (*models.FeedbackStats, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate(all), nil
}

func aggregate(all []models.Feedback) *models.FeedbackStats {
	stats := &models.FeedbackStats{Features: map[string]models.FeatureStats{}}
	if len(all) == 0 {
		return stats
	}
	type acc struct{ count, sum int }
	features := map[string]*acc{}
	total := 0
	for _, fb := range all {
		total += fb.Rating
		name := fb.Feature
		if name == "" {
			name = "general"
		}
		a, ok := features[name]
		if !ok {
			a = &acc{}
			features[name] = a
		}
		a.count++
		a.sum += fb.Rating
	}
	stats.Total = len(all)
	stats.AverageRating = round2(float64(total) / float64(len(all)))
	for name, a := range features {
		stats.Features[name] = models.FeatureStats{
			Count:         a.count,
			AverageRating: round2(float64(a.sum) / float64(a.count)),
		}
	}
	return stats
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewStore builds the store selected by cfg.Feedback.Backend. The returned
// closer releases any connection the store holds.
func NewStore(cfg *config.Config) (Store, io.Closer, error) {
	backend := strings.ToLower(cfg.Feedback.Backend)
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "file":
		s, err := NewFileStore(cfg.Feedback.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case "sqlite", "sqlite3", "mysql":
		db, err := storage.Open(cfg.Feedback.Backend, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(db, backend); err != nil {
			db.Close()
			return nil, nil, err
		}
		return NewSQLStore(db), db, nil
	case "redis":
		client, err := redis.NewRedisClient(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return NewRedisStore(client, cfg.Feedback.StreamKey), client, nil
	default:
		return nil, nil, fmt.Errorf("unsupported feedback backend: %s", cfg.Feedback.Backend)
	}
}
