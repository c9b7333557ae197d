// Package currency converts variable costs from USD into the EUR reporting
// currency using a configured exchange rate.
package currency

import (
	"math"

	"github.com/outboundiq/costwatch/internal/config"
)

// Convert applies the exchange rate and rounds half-up at the cent boundary.
func Convert(amount, rate float64) float64 {
	return math.Floor(amount*rate*100+0.5) / 100
}

// Converter converts USD amounts using the currently configured rate.
// The rate is configuration, never fetched live.
type Converter struct {
	costs *config.CostConfigHolder
}

func NewConverter(costs *config.CostConfigHolder) *Converter {
	return &Converter{costs: costs}
}

func (c *Converter) Rate() float64 {
	return c.costs.Get().USDToEURRate
}

func (c *Converter) USDToEUR(amount float64) float64 {
	return Convert(amount, c.Rate())
}
