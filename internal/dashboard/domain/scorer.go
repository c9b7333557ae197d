package domain

import (
	"math"

	"github.com/outboundiq/costwatch/internal/config"
	costsdomain "github.com/outboundiq/costwatch/internal/costs/domain"
)

// EfficiencyScore grades a month from 0 to 100 against the configured
// unit-cost targets. Each metric loses points linearly with its relative
// overage: at target or below scores 100, at double the target scores 0.
// Metrics without activity score 100 since no money was wasted per unit.
// The month's score is the equal-weight average of both metrics, rounded
// to the nearest integer.
func EfficiencyScore(summary costsdomain.MonthlySummary, cfg config.CostConfig) int {
	email := metricScore(summary.CostPerEmail, cfg.TargetCostPerEmail, summary.EmailsSent)
	meeting := metricScore(summary.CostPerMeeting, cfg.TargetCostPerMeeting, summary.MeetingsBooked)

	score := int(math.Round(clampScore((email + meeting) / 2)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func metricScore(actual, target float64, count int64) float64 {
	if count == 0 || actual <= target {
		return 100
	}
	if target <= 0 {
		return 0
	}
	return clampScore(100 - (actual-target)/target*100)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
