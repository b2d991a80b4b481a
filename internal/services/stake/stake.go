// Package stake resolves the per-trade notional for a cycle.
package stake

import (
	"context"

	"github.com/pasiu/gridbot/config"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const percentageMultiplier = 100

type equityReader interface {
	AccountEquity(ctx context.Context) (decimal.Decimal, error)
}

// Calculator turns the configured stake policy into a concrete amount. It is
// called once per poll cycle so every symbol trades with the same stake.
type Calculator struct {
	broker equityReader
	logger *zap.Logger
}

// NewCalculator creates a stake calculator.
func NewCalculator(broker equityReader, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{broker: broker, logger: logger}
}

// Amount resolves the stake for this cycle. Percent mode reads account equity
// from the broker; if that fails or the equity is not positive, the fixed
// amount is used as a fallback so the cycle still trades.
func (c *Calculator) Amount(ctx context.Context, settings config.StakeSettings) decimal.Decimal {
	if settings.Mode != config.StakeModePercent {
		return settings.FixedAmount
	}

	equity, err := c.broker.AccountEquity(ctx)
	if err != nil {
		c.logger.Warn("failed to read account equity, falling back to fixed stake",
			zap.Error(err))
		return settings.FixedAmount
	}
	if equity.LessThanOrEqual(decimal.Zero) {
		c.logger.Warn("account equity is not positive, falling back to fixed stake",
			zap.String("equity", equity.String()))
		return settings.FixedAmount
	}

	return equity.Mul(settings.PercentAmount).Div(decimal.NewFromInt(percentageMultiplier))
}
