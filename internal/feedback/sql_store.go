package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartsdlc/internal/models"
)

// SQLStore keeps feedback in the feedback table created by storage.Migrate.
// Rows are only ever inserted; seq preserves arrival order.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Append(ctx context.Context, fb models.Feedback) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, rating, comment, message_id, feature, received_at) VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.Rating, fb.Comment, fb.MessageID, fb.Feature, fb.ReceivedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]models.Feedback, error) {
	return s.query(ctx, `SELECT id, rating, comment, message_id, feature, received_at FROM feedback ORDER BY seq`)
}

func (s *SQLStore) ListByMessageID(ctx context.Context, messageID string) ([]models.Feedback, error) {
	return s.query(ctx, `SELECT id, rating, comment, message_id, feature, received_at FROM feedback WHERE message_id = ? ORDER BY seq`, messageID)
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]models.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	out := make([]models.Feedback, 0)
	for rows.Next() {
		var (
			fb         models.Feedback
			receivedAt time.Time
		)
		if err := rows.Scan(&fb.ID, &fb.Rating, &fb.Comment, &fb.MessageID, &fb.Feature, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		fb.ReceivedAt = receivedAt.UTC()
		out = append(out, fb)
	}
	return out, rows.Err()
}
