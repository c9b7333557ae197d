package domain

import (
	"context"
	"errors"
	"time"
)

type RecordUsageRequest struct {
	GenerationID     string         `json:"generation_id"`
	Model            string         `json:"model"`
	PromptTokens     int64          `json:"prompt_tokens"`
	CompletionTokens int64          `json:"completion_tokens"`
	CostUSD          float64        `json:"cost_usd"`
	CampaignID       *string        `json:"campaign_id"`
	EmailID          *string        `json:"email_id"`
	Purpose          string         `json:"purpose"`
	Metadata         map[string]any `json:"metadata"`
}

// ReportBucket aggregates usage records sharing one bucket key.
type ReportBucket struct {
	Key              string  `json:"key"`
	Calls            int64   `json:"calls"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Report is the usage breakdown for an inclusive date range: per-day,
// per-model and per-purpose buckets plus range totals.
type Report struct {
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Totals    ReportBucket   `json:"totals"`
	ByDay     []ReportBucket `json:"by_day"`
	ByModel   []ReportBucket `json:"by_model"`
	ByPurpose []ReportBucket `json:"by_purpose"`
}

type Service interface {
	// Record upserts one metered call keyed on generation id. It never
	// rejects a structurally valid event for having a zero or partial cost.
	Record(ctx context.Context, req RecordUsageRequest) (*UsageRecord, error)
	// SumCostUSD sums cost_usd for records created in [from, to).
	SumCostUSD(ctx context.Context, from, to time.Time) (float64, error)
	// Report buckets records created in [start, end] by day, model and
	// purpose.
	Report(ctx context.Context, start, end time.Time) (*Report, error)
}

var (
	ErrInvalidGenerationID = errors.New("invalid_generation_id")
	ErrInvalidModel        = errors.New("invalid_model")
	ErrInvalidPurpose      = errors.New("invalid_purpose")
	ErrInvalidCost         = errors.New("invalid_cost")
	ErrInvalidTokens       = errors.New("invalid_tokens")
	ErrInvalidDateRange    = errors.New("invalid_date_range")
)
