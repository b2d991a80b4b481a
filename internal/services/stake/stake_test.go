package stake

import (
	"context"
	"errors"
	"testing"

	"github.com/pasiu/gridbot/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeEquityReader struct {
	equity decimal.Decimal
	err    error
}

func (f *fakeEquityReader) AccountEquity(ctx context.Context) (decimal.Decimal, error) {
	return f.equity, f.err
}

func TestAmount_FixedMode(t *testing.T) {
	calc := NewCalculator(&fakeEquityReader{}, nil)

	amount := calc.Amount(context.Background(), config.StakeSettings{
		Mode:        config.StakeModeFixed,
		FixedAmount: decimal.NewFromInt(25),
	})
	require.True(t, amount.Equal(decimal.NewFromInt(25)))
}

func TestAmount_PercentMode(t *testing.T) {
	calc := NewCalculator(&fakeEquityReader{equity: decimal.NewFromInt(10000)}, nil)

	amount := calc.Amount(context.Background(), config.StakeSettings{
		Mode:          config.StakeModePercent,
		FixedAmount:   decimal.NewFromInt(10),
		PercentAmount: decimal.NewFromFloat(1.5),
	})
	require.True(t, amount.Equal(decimal.NewFromInt(150)))
}

func TestAmount_PercentModeFallsBackOnError(t *testing.T) {
	calc := NewCalculator(&fakeEquityReader{err: errors.New("api down")}, nil)

	amount := calc.Amount(context.Background(), config.StakeSettings{
		Mode:          config.StakeModePercent,
		FixedAmount:   decimal.NewFromInt(10),
		PercentAmount: decimal.NewFromInt(2),
	})
	require.True(t, amount.Equal(decimal.NewFromInt(10)))
}

func TestAmount_PercentModeFallsBackOnZeroEquity(t *testing.T) {
	calc := NewCalculator(&fakeEquityReader{equity: decimal.Zero}, nil)

	amount := calc.Amount(context.Background(), config.StakeSettings{
		Mode:          config.StakeModePercent,
		FixedAmount:   decimal.NewFromInt(10),
		PercentAmount: decimal.NewFromInt(2),
	})
	require.True(t, amount.Equal(decimal.NewFromInt(10)))
}
