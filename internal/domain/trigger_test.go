package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testParams() TriggerParams {
	return TriggerParams{
		BuyDropPercent:  decimal.NewFromFloat(1.0),
		SellRisePercent: decimal.NewFromFloat(2.0),
		TradeAmount:     decimal.NewFromInt(10),
		AlwaysOn:        true,
		AlwaysOnAmount:  decimal.NewFromInt(1),
	}
}

func mustLot(t *testing.T, price, qty float64) Lot {
	t.Helper()
	lot, err := NewLot(decimal.NewFromFloat(price), decimal.NewFromFloat(qty), time.Now())
	require.NoError(t, err)
	return lot
}

func TestEvaluateSymbol_EmptyLedgerAlwaysOn(t *testing.T) {
	proposals := EvaluateSymbol(nil, decimal.NewFromInt(100), testParams())

	require.Len(t, proposals, 1)
	require.Equal(t, ActionBuy, proposals[0].Action)
	require.True(t, proposals[0].Amount.Equal(decimal.NewFromInt(1)))
}

func TestEvaluateSymbol_EmptyLedgerAlwaysOff(t *testing.T) {
	params := testParams()
	params.AlwaysOn = false

	proposals := EvaluateSymbol(nil, decimal.NewFromInt(100), params)

	require.Len(t, proposals, 1)
	require.Equal(t, ActionBuy, proposals[0].Action)
	require.True(t, proposals[0].Amount.Equal(decimal.NewFromInt(10)))
}

func TestEvaluateSymbol_SellExactlyAtThreshold(t *testing.T) {
	lot := mustLot(t, 100, 1)

	// 100 -> 102 is exactly +2%
	proposals := EvaluateSymbol([]Lot{lot}, decimal.NewFromInt(102), testParams())

	require.Len(t, proposals, 1)
	require.Equal(t, ActionSell, proposals[0].Action)
	require.Equal(t, lot.ID, proposals[0].LotID)
}

func TestEvaluateSymbol_SellJustBelowThreshold(t *testing.T) {
	lot := mustLot(t, 100, 1)

	proposals := EvaluateSymbol([]Lot{lot}, decimal.NewFromFloat(101.9), testParams())

	for _, p := range proposals {
		require.NotEqual(t, ActionSell, p.Action)
	}
}

func TestEvaluateSymbol_BuyOnDrop(t *testing.T) {
	lot := mustLot(t, 100, 1)

	// lowest is 100, 98.9 is a 1.1% drop against a 1.0% threshold
	proposals := EvaluateSymbol([]Lot{lot}, decimal.NewFromFloat(98.9), testParams())

	require.Len(t, proposals, 1)
	require.Equal(t, ActionBuy, proposals[0].Action)
	require.True(t, proposals[0].Amount.Equal(decimal.NewFromInt(10)))
}

func TestEvaluateSymbol_NoBuyAboveDropThreshold(t *testing.T) {
	lot := mustLot(t, 100, 1)

	// 99.1 is only a 0.9% drop
	proposals := EvaluateSymbol([]Lot{lot}, decimal.NewFromFloat(99.1), testParams())

	require.Empty(t, proposals)
}

func TestEvaluateSymbol_DropMeasuredAgainstLowestLot(t *testing.T) {
	lots := []Lot{
		mustLot(t, 100, 1),
		mustLot(t, 95, 1),
	}

	// 1% below the cheapest lot (95), well below 100
	proposals := EvaluateSymbol(lots, decimal.NewFromFloat(94.05), testParams())

	require.Len(t, proposals, 1)
	require.Equal(t, ActionBuy, proposals[0].Action)
}

func TestEvaluateSymbol_MultipleLotsSellTogether(t *testing.T) {
	lots := []Lot{
		mustLot(t, 90, 1),
		mustLot(t, 95, 1),
	}
	params := testParams()
	params.SellRisePercent = decimal.NewFromInt(5)

	// at 100: +11.1% over 90 and +5.26% over 95, both clear 5%
	proposals := EvaluateSymbol(lots, decimal.NewFromInt(100), params)

	require.Len(t, proposals, 2)
	require.Equal(t, ActionSell, proposals[0].Action)
	require.Equal(t, ActionSell, proposals[1].Action)
	require.Equal(t, lots[0].ID, proposals[0].LotID)
	require.Equal(t, lots[1].ID, proposals[1].LotID)
}

func TestEvaluateSymbol_OnlyProfitableLotSells(t *testing.T) {
	lots := []Lot{
		mustLot(t, 90, 1),
		mustLot(t, 99.5, 1),
	}

	proposals := EvaluateSymbol(lots, decimal.NewFromInt(100), testParams())

	require.Len(t, proposals, 1)
	require.Equal(t, ActionSell, proposals[0].Action)
	require.Equal(t, lots[0].ID, proposals[0].LotID)
}

func TestEvaluateSymbol_AtMostOneBuyPerCycle(t *testing.T) {
	lots := []Lot{
		mustLot(t, 100, 1),
		mustLot(t, 105, 1),
		mustLot(t, 110, 1),
	}

	// price far below every lot still yields a single buy
	proposals := EvaluateSymbol(lots, decimal.NewFromInt(50), testParams())

	var buys int
	for _, p := range proposals {
		if p.Action == ActionBuy {
			buys++
		}
	}
	require.Equal(t, 1, buys)
}

func TestPercentageDiff(t *testing.T) {
	diff := PercentageDiff(decimal.NewFromInt(102), decimal.NewFromInt(100))
	require.True(t, diff.Equal(decimal.NewFromInt(2)))

	diff = PercentageDiff(decimal.NewFromInt(98), decimal.NewFromInt(100))
	require.True(t, diff.Equal(decimal.NewFromInt(-2)))

	diff = PercentageDiff(decimal.NewFromInt(100), decimal.Zero)
	require.True(t, diff.IsZero())
}
