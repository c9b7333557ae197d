package domain

import (
	"context"
	"errors"
)

const (
	// TrendsMinMonths and TrendsMaxMonths bound the trends window.
	TrendsMinMonths = 1
	TrendsMaxMonths = 24
)

type Service interface {
	// GetOrCreate fetches the summary row for a month, lazily creating it
	// seeded with configured fixed costs and zero counts.
	GetOrCreate(ctx context.Context, year, month int) (*MonthlySummary, error)
	// Recompute rebuilds a month's totals from raw usage and activity
	// records under a per-month lock. When persisting the refreshed row
	// fails, the in-memory computation is still returned alongside the
	// error so callers can degrade to unsaved-but-correct data.
	Recompute(ctx context.Context, year, month int) (*MonthlySummary, error)
	// Trends returns the last N calendar months oldest-first, backfilling
	// months without a stored row as zero-variable-cost summaries built
	// from current fixed-cost configuration.
	Trends(ctx context.Context, months int) ([]MonthlySummary, error)
}

var (
	ErrInvalidMonth = errors.New("invalid_month")
	ErrInvalidRange = errors.New("invalid_range")
)
