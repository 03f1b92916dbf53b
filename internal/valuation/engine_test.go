package valuation

import (
	"math"
	"reflect"
	"testing"

	"moneta/internal/models"
)

func TestComputeAccountBalance(t *testing.T) {
	t.Run("worked_example", func(t *testing.T) {
		// Opening balance $50,000; buy 100 units at $400 with $10 fee;
		// $500 dividend; current price $450.
		trades := []models.InvestmentTrade{
			buy("VOO", models.TradeAssetEquity, 100, 4000000, 1000),
			cashTrade(models.TradeTypeDividend, 50000),
		}
		prices := Quotes{Equity: map[string]float64{"VOO": 450}}

		balance := ComputeAccountBalance(5000000, trades, prices)

		if balance.CashBalance != 10490 {
			t.Errorf("expected cash $10490, got %f", balance.CashBalance)
		}
		if len(balance.Holdings) != 1 {
			t.Fatalf("expected 1 holding, got %d", len(balance.Holdings))
		}
		h := balance.Holdings[0]
		if h.MarketValue != 45000 {
			t.Errorf("expected market value $45000, got %f", h.MarketValue)
		}
		if h.CostBasis != 40010 {
			t.Errorf("expected cost basis $40010, got %f", h.CostBasis)
		}
		if h.UnrealizedGainLoss != 4990 {
			t.Errorf("expected gain $4990, got %f", h.UnrealizedGainLoss)
		}
		if math.Abs(h.UnrealizedGainLossPercent-12.4719) > 0.001 {
			t.Errorf("expected gain ~12.47%%, got %f", h.UnrealizedGainLossPercent)
		}
		if balance.TotalValue != 55490 {
			t.Errorf("expected total $55490, got %f", balance.TotalValue)
		}
	})

	t.Run("missing_price_values_holding_at_zero", func(t *testing.T) {
		trades := []models.InvestmentTrade{
			buy("OBSCURE", models.TradeAssetEquity, 10, 50000, 0),
			buy("AAPL", models.TradeAssetEquity, 1, 15000, 0),
		}
		prices := Quotes{Equity: map[string]float64{"AAPL": 180}}

		balance := ComputeAccountBalance(0, trades, prices)

		// The unpriced holding must still appear, explicitly at price 0.
		if len(balance.Holdings) != 2 {
			t.Fatalf("expected 2 holdings, got %d", len(balance.Holdings))
		}
		var obscure *Holding
		for i := range balance.Holdings {
			if balance.Holdings[i].Symbol == "OBSCURE" {
				obscure = &balance.Holdings[i]
			}
		}
		if obscure == nil {
			t.Fatal("unpriced holding missing from result")
		}
		if obscure.PricePerUnit != 0 || obscure.MarketValue != 0 {
			t.Errorf("expected zero price and value, got %f / %f", obscure.PricePerUnit, obscure.MarketValue)
		}
		if balance.HoldingsValue != 180 {
			t.Errorf("expected holdings value $180, got %f", balance.HoldingsValue)
		}
	})

	t.Run("zero_cost_basis_avoids_divide_by_zero", func(t *testing.T) {
		trades := []models.InvestmentTrade{
			buy("FREE", models.TradeAssetEquity, 5, 0, 0),
		}
		prices := Quotes{Equity: map[string]float64{"FREE": 10}}

		balance := ComputeAccountBalance(0, trades, prices)

		h := balance.Holdings[0]
		if h.UnrealizedGainLossPercent != 0 {
			t.Errorf("expected 0%% on zero basis, got %f", h.UnrealizedGainLossPercent)
		}
		if h.UnrealizedGainLoss != 50 {
			t.Errorf("expected gain $50, got %f", h.UnrealizedGainLoss)
		}
	})

	t.Run("pure_function", func(t *testing.T) {
		trades := []models.InvestmentTrade{
			buy("BTC", models.TradeAssetCrypto, 2, 12000000, 5000),
			sell("BTC", models.TradeAssetCrypto, 1, 6500000, 2500),
			cashTrade(models.TradeTypeDeposit, 100000),
		}
		prices := Quotes{Crypto: map[string]float64{"BTC": 64000}}

		first := ComputeAccountBalance(250000, trades, prices)
		second := ComputeAccountBalance(250000, trades, prices)

		if !reflect.DeepEqual(first, second) {
			t.Errorf("identical inputs produced different outputs:\n%+v\n%+v", first, second)
		}
	})

	t.Run("empty_account", func(t *testing.T) {
		balance := ComputeAccountBalance(12345, nil, Quotes{})

		if balance.CashBalance != 123.45 {
			t.Errorf("expected cash $123.45, got %f", balance.CashBalance)
		}
		if balance.TotalValue != 123.45 {
			t.Errorf("expected total $123.45, got %f", balance.TotalValue)
		}
		if len(balance.Holdings) != 0 {
			t.Errorf("expected no holdings, got %d", len(balance.Holdings))
		}
	})
}

func TestCents(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{123.45, 12345},
		{55490, 5549000},
		{10.004, 1000},
		{10.006, 1001},
		{-0.01, -1},
	}
	for _, tc := range cases {
		if got := Cents(tc.in); got != tc.want {
			t.Errorf("Cents(%f): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestQuotesLookup(t *testing.T) {
	q := Quotes{
		Crypto: map[string]float64{"BTC": 64000},
		Equity: map[string]float64{"AAPL": 180},
	}

	if got := q.Lookup("btc", models.TradeAssetCrypto); got != 64000 {
		t.Errorf("expected 64000, got %f", got)
	}
	if got := q.Lookup("AAPL", models.TradeAssetEquity); got != 180 {
		t.Errorf("expected 180, got %f", got)
	}
	if got := q.Lookup("AAPL", models.TradeAssetCrypto); got != 0 {
		t.Errorf("expected 0 across asset classes, got %f", got)
	}
	if got := q.Lookup("UNKNOWN", models.TradeAssetEquity); got != 0 {
		t.Errorf("expected 0 for unknown symbol, got %f", got)
	}
	if got := q.Lookup("AAPL", models.TradeAssetType("bond")); got != 0 {
		t.Errorf("expected 0 for unrecognized asset type, got %f", got)
	}
}
