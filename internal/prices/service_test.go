package prices

import (
	"context"
	"errors"
	"testing"
	"time"

	"moneta/internal/models"
)

type stubProvider struct {
	name   string
	prices map[string]float64
	err    error
	calls  int
	seen   [][]string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) FetchPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	p.calls++
	p.seen = append(p.seen, symbols)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]float64)
	for _, s := range symbols {
		if price, ok := p.prices[s]; ok {
			result[s] = price
		}
	}
	return result, nil
}

func TestGetPrices(t *testing.T) {
	t.Run("empty_input_short_circuits", func(t *testing.T) {
		equity := &stubProvider{name: "equity"}
		crypto := &stubProvider{name: "crypto"}
		svc := NewServiceWith(equity, crypto, time.Minute)

		quotes, warnings := svc.GetPrices(context.Background(), nil)

		if equity.calls != 0 || crypto.calls != 0 {
			t.Errorf("expected no provider calls, got %d/%d", equity.calls, crypto.calls)
		}
		if len(quotes.Crypto) != 0 || len(quotes.Equity) != 0 {
			t.Errorf("expected empty maps, got %v / %v", quotes.Crypto, quotes.Equity)
		}
		if len(warnings) != 0 {
			t.Errorf("expected no warnings, got %v", warnings)
		}
	})

	t.Run("splits_by_asset_class", func(t *testing.T) {
		equity := &stubProvider{name: "equity", prices: map[string]float64{"AAPL": 180}}
		crypto := &stubProvider{name: "crypto", prices: map[string]float64{"BTC": 64000}}
		svc := NewServiceWith(equity, crypto, time.Minute)

		quotes, warnings := svc.GetPrices(context.Background(), []SymbolRequest{
			{Symbol: "aapl", AssetType: models.TradeAssetEquity},
			{Symbol: "btc", AssetType: models.TradeAssetCrypto},
		})

		if len(warnings) != 0 {
			t.Fatalf("unexpected warnings: %v", warnings)
		}
		if quotes.Equity["AAPL"] != 180 {
			t.Errorf("expected AAPL 180, got %v", quotes.Equity)
		}
		if quotes.Crypto["BTC"] != 64000 {
			t.Errorf("expected BTC 64000, got %v", quotes.Crypto)
		}
		if equity.calls != 1 || crypto.calls != 1 {
			t.Errorf("expected one call each, got %d/%d", equity.calls, crypto.calls)
		}
	})

	t.Run("one_class_failing_keeps_the_other", func(t *testing.T) {
		equity := &stubProvider{name: "Yahoo Finance", prices: map[string]float64{"AAPL": 180}}
		crypto := &stubProvider{name: "CoinGecko", err: errors.New("rate limited")}
		svc := NewServiceWith(equity, crypto, time.Minute)

		quotes, warnings := svc.GetPrices(context.Background(), []SymbolRequest{
			{Symbol: "AAPL", AssetType: models.TradeAssetEquity},
			{Symbol: "BTC", AssetType: models.TradeAssetCrypto},
		})

		if quotes.Equity["AAPL"] != 180 {
			t.Errorf("expected equity result to survive, got %v", quotes.Equity)
		}
		if len(quotes.Crypto) != 0 {
			t.Errorf("expected no crypto quotes, got %v", quotes.Crypto)
		}
		if len(warnings) != 1 {
			t.Fatalf("expected 1 warning, got %v", warnings)
		}
		if warnings[0].Provider != "CoinGecko" {
			t.Errorf("expected CoinGecko warning, got %s", warnings[0].Provider)
		}
	})

	t.Run("unknown_symbols_absent_not_error", func(t *testing.T) {
		equity := &stubProvider{name: "equity", prices: map[string]float64{"AAPL": 180}}
		crypto := &stubProvider{name: "crypto"}
		svc := NewServiceWith(equity, crypto, time.Minute)

		quotes, warnings := svc.GetPrices(context.Background(), []SymbolRequest{
			{Symbol: "AAPL", AssetType: models.TradeAssetEquity},
			{Symbol: "NOPE", AssetType: models.TradeAssetEquity},
		})

		if len(warnings) != 0 {
			t.Fatalf("unexpected warnings: %v", warnings)
		}
		if _, ok := quotes.Equity["NOPE"]; ok {
			t.Error("unknown symbol should be absent from the map")
		}
		if quotes.Equity["AAPL"] != 180 {
			t.Errorf("expected AAPL 180, got %v", quotes.Equity)
		}
	})

	t.Run("deduplicates_symbols", func(t *testing.T) {
		equity := &stubProvider{name: "equity", prices: map[string]float64{"AAPL": 180}}
		svc := NewServiceWith(equity, &stubProvider{name: "crypto"}, time.Minute)

		svc.GetPrices(context.Background(), []SymbolRequest{
			{Symbol: "AAPL", AssetType: models.TradeAssetEquity},
			{Symbol: "aapl", AssetType: models.TradeAssetEquity},
			{Symbol: "AAPL", AssetType: models.TradeAssetEquity},
		})

		if len(equity.seen) != 1 || len(equity.seen[0]) != 1 {
			t.Errorf("expected a single deduplicated symbol, got %v", equity.seen)
		}
	})

	t.Run("cache_short_circuits_repeat_lookups", func(t *testing.T) {
		equity := &stubProvider{name: "equity", prices: map[string]float64{"AAPL": 180}}
		svc := NewServiceWith(equity, &stubProvider{name: "crypto"}, time.Minute)
		reqs := []SymbolRequest{{Symbol: "AAPL", AssetType: models.TradeAssetEquity}}

		svc.GetPrices(context.Background(), reqs)
		quotes, _ := svc.GetPrices(context.Background(), reqs)

		if equity.calls != 1 {
			t.Errorf("expected cached second lookup, got %d calls", equity.calls)
		}
		if quotes.Equity["AAPL"] != 180 {
			t.Errorf("expected cached AAPL 180, got %v", quotes.Equity)
		}
	})

	t.Run("zero_ttl_disables_cache", func(t *testing.T) {
		equity := &stubProvider{name: "equity", prices: map[string]float64{"AAPL": 180}}
		svc := NewServiceWith(equity, &stubProvider{name: "crypto"}, 0)
		reqs := []SymbolRequest{{Symbol: "AAPL", AssetType: models.TradeAssetEquity}}

		svc.GetPrices(context.Background(), reqs)
		svc.GetPrices(context.Background(), reqs)

		if equity.calls != 2 {
			t.Errorf("expected 2 provider calls with caching disabled, got %d", equity.calls)
		}
	})
}
