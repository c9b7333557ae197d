package currency

import (
	"testing"

	"github.com/outboundiq/costwatch/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		rate   float64
		want   float64
	}{
		{name: "hundred dollars at default rate", amount: 100, rate: 0.92, want: 92.00},
		{name: "five dollars at default rate", amount: 5.00, rate: 0.92, want: 4.60},
		{name: "zero amount", amount: 0, rate: 0.92, want: 0},
		{name: "rounds half up at cent boundary", amount: 0.125, rate: 1, want: 0.13},
		{name: "rounds down below half cent", amount: 0.124, rate: 1, want: 0.12},
		{name: "six decimal usage cost", amount: 0.004575, rate: 0.92, want: 0.00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Convert(tt.amount, tt.rate), 1e-9)
		})
	}
}

func TestConverterUsesConfiguredRate(t *testing.T) {
	cfg := config.DefaultCostConfig()
	cfg.USDToEURRate = 0.85
	conv := NewConverter(config.NewStaticCostConfigHolder(cfg))

	assert.InDelta(t, 0.85, conv.Rate(), 1e-9)
	assert.InDelta(t, 85.00, conv.USDToEUR(100), 1e-9)
}
