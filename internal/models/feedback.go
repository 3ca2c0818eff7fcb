package models

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Feedback is one immutable rating entry.
type Feedback struct {
	ID         string    `json:"id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	MessageID  string    `json:"messageId,omitempty"`
	Feature    string    `json:"feature,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type Acknowledgement struct {
	ID         string    `json:"id"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type FeatureStats struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}

type FeedbackStats struct {
	Total         int                     `json:"total_feedback"`
	AverageRating float64                 `json:"average_rating"`
	Features      map[string]FeatureStats `json:"features"`
}
