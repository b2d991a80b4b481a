package domain

import (
	"github.com/shopspring/decimal"
)

const percentageMultiplier = 100

// TriggerParams are the thresholds and sizing inputs for one evaluation cycle.
// TradeAmount is the stake already resolved for this cycle; the engine never
// reads balances itself.
type TriggerParams struct {
	BuyDropPercent  decimal.Decimal
	SellRisePercent decimal.Decimal
	TradeAmount     decimal.Decimal
	AlwaysOn        bool
	AlwaysOnAmount  decimal.Decimal
}

// Proposal is one action the trigger engine wants executed. Sell proposals
// address the lot by its stable ID. Buy amounts are quote notional.
type Proposal struct {
	Action Action
	LotID  string
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// EvaluateSymbol is the pure trigger decision for a single symbol: it maps the
// current price and a ledger snapshot to proposed actions, with no I/O.
//
// Sells: every lot whose gain over its own buy price meets SellRisePercent
// triggers independently. Proposals come out in ledger order; the caller
// executes them before any buy.
//
// Buys: exactly one decision per cycle. An empty symbol always re-enters
// (with AlwaysOnAmount when AlwaysOn is set, else TradeAmount). A non-empty
// symbol buys only when the drop from its lowest buy price meets
// BuyDropPercent.
func EvaluateSymbol(lots []Lot, price decimal.Decimal, p TriggerParams) []Proposal {
	proposals := make([]Proposal, 0, len(lots)+1)

	for _, lot := range lots {
		profitPct := PercentageDiff(price, lot.BuyPrice)
		if profitPct.GreaterThanOrEqual(p.SellRisePercent) {
			proposals = append(proposals, Proposal{
				Action: ActionSell,
				LotID:  lot.ID,
				Price:  price,
			})
		}
	}

	if len(lots) == 0 {
		amount := p.TradeAmount
		if p.AlwaysOn {
			amount = p.AlwaysOnAmount
		}
		return append(proposals, Proposal{
			Action: ActionBuy,
			Price:  price,
			Amount: amount,
		})
	}

	lowest, _ := LowestBuyPrice(lots)
	dropPct := lowest.Sub(price).Div(lowest).Mul(decimal.NewFromInt(percentageMultiplier))
	if dropPct.GreaterThanOrEqual(p.BuyDropPercent) {
		proposals = append(proposals, Proposal{
			Action: ActionBuy,
			Price:  price,
			Amount: p.TradeAmount,
		})
	}

	return proposals
}

// PercentageDiff returns the percentage change of current relative to reference.
func PercentageDiff(current, reference decimal.Decimal) decimal.Decimal {
	if reference.IsZero() {
		return decimal.Zero
	}
	return current.Sub(reference).Div(reference).Mul(decimal.NewFromInt(percentageMultiplier))
}
