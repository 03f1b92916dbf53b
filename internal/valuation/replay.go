// Package valuation implements the investment account valuation engine:
// replaying a trade log into cash and holdings positions, and pricing the
// result against market quotes. Everything here is a pure function of its
// inputs; there is no persisted running state, so correctness depends on
// callers always supplying the account's full trade log.
package valuation

import (
	"sort"

	"github.com/shopspring/decimal"

	"moneta/internal/models"
)

// Position is a derived per-symbol position: the signed quantity currently
// held and the weighted-average cost basis in minor units.
type Position struct {
	Symbol    string                `json:"symbol"`
	AssetType models.TradeAssetType `json:"asset_type"`
	Quantity  decimal.Decimal       `json:"quantity"`
	CostBasis int64                 `json:"cost_basis"`
}

// Ledger is the result of replaying a trade log: the cash balance in minor
// units and the open positions. Positions that end with quantity <= 0 are
// dropped; short positions are not modeled.
type Ledger struct {
	CashBalance int64      `json:"cash_balance"`
	Positions   []Position `json:"positions"`
}

type positionKey struct {
	symbol    string
	assetType models.TradeAssetType
}

// CashEffect returns the signed cash movement of a trade in minor units.
// Withdrawal amounts are stored already negated, so withdraw adds its amount
// like the other cash movements; fees are stored positive and subtract.
func CashEffect(t *models.InvestmentTrade) int64 {
	switch t.Type {
	case models.TradeTypeBuy:
		return -(t.Amount + t.Fees)
	case models.TradeTypeSell:
		return t.Amount - t.Fees
	case models.TradeTypeFee:
		return -t.Amount
	default:
		// deposit, withdraw, dividend, interest, adjustment
		return t.Amount
	}
}

// ReplayTrades folds a full trade log into a cash balance and open positions.
// The fold is order-independent per symbol: buys accumulate quantity and cost,
// sells reduce cost basis proportionally to the fraction of the position sold
// (weighted-average method). Selling the entire position, or more, resets the
// cost basis to zero so no residual or negative basis survives.
func ReplayTrades(openingBalance int64, trades []models.InvestmentTrade) Ledger {
	cash := openingBalance
	positions := make(map[positionKey]*Position)

	for i := range trades {
		t := &trades[i]
		cash += CashEffect(t)

		switch t.Type {
		case models.TradeTypeBuy:
			p := position(positions, t)
			p.Quantity = p.Quantity.Add(t.Quantity)
			p.CostBasis += t.Amount + t.Fees

		case models.TradeTypeSell:
			p := position(positions, t)
			if p.Quantity.IsPositive() {
				if t.Quantity.GreaterThanOrEqual(p.Quantity) {
					p.CostBasis = 0
				} else {
					removed := decimal.NewFromInt(p.CostBasis).
						Mul(t.Quantity.Div(p.Quantity)).
						Round(0).IntPart()
					p.CostBasis -= removed
				}
			}
			p.Quantity = p.Quantity.Sub(t.Quantity)
		}
	}

	result := Ledger{CashBalance: cash}
	for _, p := range positions {
		if p.Quantity.IsPositive() {
			result.Positions = append(result.Positions, *p)
		}
	}
	sort.Slice(result.Positions, func(i, j int) bool {
		if result.Positions[i].Symbol != result.Positions[j].Symbol {
			return result.Positions[i].Symbol < result.Positions[j].Symbol
		}
		return result.Positions[i].AssetType < result.Positions[j].AssetType
	})
	return result
}

// position returns the accumulator for the trade's symbol, creating it on
// first touch.
func position(positions map[positionKey]*Position, t *models.InvestmentTrade) *Position {
	key := positionKey{symbol: upper(t.Symbol), assetType: t.AssetType}
	p, ok := positions[key]
	if !ok {
		p = &Position{Symbol: upper(t.Symbol), AssetType: t.AssetType}
		positions[key] = p
	}
	return p
}
