// Package domain defines the dashboard snapshot served to the UI.
package domain

import (
	"time"

	costsdomain "github.com/outboundiq/costwatch/internal/costs/domain"
)

// Display carries pre-formatted EUR strings so the UI never re-implements
// money formatting.
type Display struct {
	TotalCost      string `json:"total_cost"`
	OpenRouterCost string `json:"openrouter_cost"`
	CostPerEmail   string `json:"cost_per_email"`
	CostPerMeeting string `json:"cost_per_meeting"`
}

// MetricsSnapshot is the cached view of the current month: the recomputed
// summary, derived budget fields and the efficiency score.
type MetricsSnapshot struct {
	Summary         costsdomain.MonthlySummary `json:"summary"`
	EfficiencyScore int                        `json:"efficiency_score"`
	BudgetRemaining float64                    `json:"budget_remaining"`
	OverBudget      bool                       `json:"over_budget"`
	Display         Display                    `json:"display"`
	ComputedAt      time.Time                  `json:"computed_at"`
}
