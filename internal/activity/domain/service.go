package domain

import (
	"context"
	"errors"
	"time"
)

type RecordActivityRequest struct {
	Type       string         `json:"type"`
	CampaignID *string        `json:"campaign_id"`
	Metadata   map[string]any `json:"metadata"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Service interface {
	// Record appends one business event. Persistence failures surface to
	// the caller.
	Record(ctx context.Context, req RecordActivityRequest) (*ActivityRecord, error)
	// CountByType counts events with occurred_at in [from, to), per type.
	CountByType(ctx context.Context, from, to time.Time) (map[Type]int64, error)
}

var ErrInvalidActivityType = errors.New("invalid_activity_type")
