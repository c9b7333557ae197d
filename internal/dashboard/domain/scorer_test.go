package domain

import (
	"testing"

	"github.com/outboundiq/costwatch/internal/config"
	costsdomain "github.com/outboundiq/costwatch/internal/costs/domain"
	"github.com/stretchr/testify/assert"
)

func scorerConfig() config.CostConfig {
	cfg := config.DefaultCostConfig()
	cfg.TargetCostPerEmail = 0.10
	cfg.TargetCostPerMeeting = 5.00
	return cfg
}

func TestEfficiencyScoreAtTarget(t *testing.T) {
	score := EfficiencyScore(costsdomain.MonthlySummary{
		EmailsSent:     100,
		MeetingsBooked: 10,
		CostPerEmail:   0.10,
		CostPerMeeting: 5.00,
	}, scorerConfig())
	assert.Equal(t, 100, score)
}

func TestEfficiencyScoreZeroActivityMonth(t *testing.T) {
	// No emails and no meetings means nothing was wasted per unit.
	score := EfficiencyScore(costsdomain.MonthlySummary{TotalCost: 123}, scorerConfig())
	assert.Equal(t, 100, score)
}

func TestEfficiencyScoreLinearPenalty(t *testing.T) {
	tests := []struct {
		name    string
		summary costsdomain.MonthlySummary
		want    int
	}{
		{
			name: "emails 50 percent over, meetings on target",
			summary: costsdomain.MonthlySummary{
				EmailsSent:     100,
				MeetingsBooked: 10,
				CostPerEmail:   0.15,
				CostPerMeeting: 5.00,
			},
			want: 75, // (50 + 100) / 2
		},
		{
			name: "both at double the target",
			summary: costsdomain.MonthlySummary{
				EmailsSent:     100,
				MeetingsBooked: 10,
				CostPerEmail:   0.20,
				CostPerMeeting: 10.00,
			},
			want: 0,
		},
		{
			name: "metric without activity scores full",
			summary: costsdomain.MonthlySummary{
				EmailsSent:     100,
				MeetingsBooked: 0,
				CostPerEmail:   0.15,
			},
			want: 75, // (50 + 100) / 2
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EfficiencyScore(tt.summary, scorerConfig()))
		})
	}
}

func TestEfficiencyScoreNeverLeavesBounds(t *testing.T) {
	// A runaway month must clamp at 0, not go negative.
	score := EfficiencyScore(costsdomain.MonthlySummary{
		EmailsSent:     1,
		MeetingsBooked: 1,
		CostPerEmail:   10000,
		CostPerMeeting: 10000,
	}, scorerConfig())
	assert.Equal(t, 0, score)

	// Under-target months clamp at 100.
	score = EfficiencyScore(costsdomain.MonthlySummary{
		EmailsSent:     1000,
		MeetingsBooked: 100,
		CostPerEmail:   0.001,
		CostPerMeeting: 0.5,
	}, scorerConfig())
	assert.Equal(t, 100, score)
}
