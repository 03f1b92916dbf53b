package valuation

import (
	"math"
	"strings"

	"moneta/internal/models"
)

// Quotes holds spot prices in USD dollars (not minor units), keyed by
// uppercased symbol, split by asset class. A symbol absent from its map is
// treated as price zero downstream.
type Quotes struct {
	Crypto map[string]float64 `json:"crypto"`
	Equity map[string]float64 `json:"equity"`
}

// Lookup returns the price for a symbol within an asset class, or 0 when the
// symbol has no quote.
func (q Quotes) Lookup(symbol string, assetType models.TradeAssetType) float64 {
	switch assetType {
	case models.TradeAssetCrypto:
		return q.Crypto[upper(symbol)]
	case models.TradeAssetEquity:
		return q.Equity[upper(symbol)]
	default:
		return 0
	}
}

// Holding is one priced position. Monetary fields are in USD dollars; a
// holding with no available quote stays in the list with price and market
// value zero.
type Holding struct {
	Symbol                    string                `json:"symbol"`
	AssetType                 models.TradeAssetType `json:"asset_type"`
	Quantity                  float64               `json:"quantity"`
	PricePerUnit              float64               `json:"price_per_unit"`
	MarketValue               float64               `json:"market_value"`
	CostBasis                 float64               `json:"cost_basis"`
	UnrealizedGainLoss        float64               `json:"unrealized_gain_loss"`
	UnrealizedGainLossPercent float64               `json:"unrealized_gain_loss_percent"`
}

// AccountBalance is the computed value of an investment account in USD
// dollars. Cash participates in the total value but not in cost basis or
// unrealized P&L.
type AccountBalance struct {
	TotalValue     float64   `json:"total_value"`
	CashBalance    float64   `json:"cash_balance"`
	HoldingsValue  float64   `json:"holdings_value"`
	TotalCostBasis float64   `json:"total_cost_basis"`
	TotalGainLoss  float64   `json:"total_gain_loss"`
	Holdings       []Holding `json:"holdings"`
}

// ComputeAccountBalance replays the trade log and prices the resulting
// positions. It is a pure function of (opening balance, trades, quotes);
// calling it twice with identical inputs yields identical output.
func ComputeAccountBalance(openingBalance int64, trades []models.InvestmentTrade, prices Quotes) AccountBalance {
	ledger := ReplayTrades(openingBalance, trades)

	balance := AccountBalance{
		CashBalance: dollars(ledger.CashBalance),
		Holdings:    []Holding{},
	}

	for _, pos := range ledger.Positions {
		price := prices.Lookup(pos.Symbol, pos.AssetType)
		quantity, _ := pos.Quantity.Float64()
		marketValue := quantity * price
		costBasis := dollars(pos.CostBasis)
		gainLoss := marketValue - costBasis

		h := Holding{
			Symbol:             pos.Symbol,
			AssetType:          pos.AssetType,
			Quantity:           quantity,
			PricePerUnit:       price,
			MarketValue:        marketValue,
			CostBasis:          costBasis,
			UnrealizedGainLoss: gainLoss,
		}
		if costBasis != 0 {
			h.UnrealizedGainLossPercent = gainLoss / costBasis * 100
		}

		balance.Holdings = append(balance.Holdings, h)
		balance.HoldingsValue += marketValue
		balance.TotalCostBasis += costBasis
		balance.TotalGainLoss += gainLoss
	}

	balance.TotalValue = balance.HoldingsValue + balance.CashBalance
	return balance
}

// Cents converts a dollar amount to minor units with standard rounding.
// This is the one boundary conversion between computed dollar values and
// persisted cent values; every caller storing a computed balance must use it.
func Cents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

func dollars(cents int64) float64 {
	return float64(cents) / 100
}

func upper(s string) string {
	return strings.ToUpper(s)
}
