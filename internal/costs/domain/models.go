// Package domain contains the materialized monthly cost summary.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MonthlySummary is one row per (year, month): fixed subscription costs,
// the converted variable AI cost, activity counts and derived unit
// economics. It is a read cache — recomputing from raw usage and activity
// records always wins over whatever is stored here.
type MonthlySummary struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	Year                int          `gorm:"not null;uniqueIndex:idx_monthly_summaries_year_month,priority:1" json:"year"`
	Month               int          `gorm:"not null;uniqueIndex:idx_monthly_summaries_year_month,priority:2" json:"month"`
	InstantlyCost       float64      `gorm:"type:numeric(12,2);not null" json:"instantly_cost"`
	GoogleWorkspaceCost float64      `gorm:"type:numeric(12,2);not null" json:"google_workspace_cost"`
	OpenRouterCost      float64      `gorm:"type:numeric(12,2);not null" json:"openrouter_cost"`
	TotalCost           float64      `gorm:"type:numeric(12,2);not null" json:"total_cost"`
	EmailsSent          int64        `gorm:"not null" json:"emails_sent"`
	MeetingsBooked      int64        `gorm:"not null" json:"meetings_booked"`
	CostPerEmail        float64      `gorm:"type:numeric(12,6);not null" json:"cost_per_email"`
	CostPerMeeting      float64      `gorm:"type:numeric(12,6);not null" json:"cost_per_meeting"`
	ExchangeRate        float64      `gorm:"type:numeric(8,4);not null" json:"exchange_rate"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (MonthlySummary) TableName() string { return "monthly_summaries" }

// PeriodStart is the first instant of the summary's month.
func (s MonthlySummary) PeriodStart() time.Time {
	return time.Date(s.Year, time.Month(s.Month), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodEnd is the first instant of the following month.
func (s MonthlySummary) PeriodEnd() time.Time {
	return s.PeriodStart().AddDate(0, 1, 0)
}
