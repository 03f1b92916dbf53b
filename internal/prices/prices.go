// Package prices fetches USD spot prices for crypto and equity symbols from
// external providers and normalizes them into one quote map. Results are
// cached briefly to reduce call volume; a provider failing for one asset
// class never fails the other.
package prices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"moneta/internal/config"
	"moneta/internal/logger"
	"moneta/internal/models"
	"moneta/internal/valuation"
)

// SymbolRequest identifies one symbol to price.
type SymbolRequest struct {
	Symbol    string
	AssetType models.TradeAssetType
}

// Warning describes a non-fatal provider failure. Downstream valuation
// treats the affected symbols as price zero; the caller surfaces warnings
// to the user instead of failing the request.
type Warning struct {
	Provider string
	Err      error
}

// String renders the warning as a human-readable message.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Provider, w.Err)
}

// Provider fetches current USD prices for a batch of symbols of one asset
// class. Symbols absent from the returned map simply have no quote; a
// returned error indicates the whole batch failed.
type Provider interface {
	Name() string
	FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Service combines the equity and crypto providers behind one price map,
// with a short-lived in-process cache in front of them.
type Service struct {
	equity Provider
	crypto Provider
	cache  *quoteCache
}

// NewService builds a Service with the Yahoo and CoinGecko clients from the
// application config.
func NewService(cfg *config.Config) *Service {
	return NewServiceWith(NewYahooClient(cfg), NewCoinGeckoClient(cfg), cfg.PriceCacheTTL)
}

// NewServiceWith builds a Service from explicit providers. A non-positive
// TTL disables caching.
func NewServiceWith(equity, crypto Provider, ttl time.Duration) *Service {
	return &Service{
		equity: equity,
		crypto: crypto,
		cache:  newQuoteCache(ttl),
	}
}

// GetPrices returns quotes for the requested symbols, split by asset class.
// Empty input short-circuits with empty maps and no network calls. The two
// asset classes are fetched concurrently; a failure in one degrades to
// partial results plus a warning rather than an error.
func (s *Service) GetPrices(ctx context.Context, requests []SymbolRequest) (valuation.Quotes, []Warning) {
	quotes := valuation.Quotes{
		Crypto: map[string]float64{},
		Equity: map[string]float64{},
	}
	if len(requests) == 0 {
		return quotes, nil
	}

	cryptoMisses := s.fromCache(requests, models.TradeAssetCrypto, quotes.Crypto)
	equityMisses := s.fromCache(requests, models.TradeAssetEquity, quotes.Equity)

	var (
		mu       sync.Mutex
		warnings []Warning
		wg       sync.WaitGroup
	)

	fetch := func(p Provider, symbols []string, class models.TradeAssetType, out map[string]float64) {
		defer wg.Done()
		fetched, err := p.FetchPrices(ctx, symbols)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			logger.Get().Warnw("price fetch failed",
				"provider", p.Name(),
				"symbols", len(symbols),
				"error", err.Error(),
			)
			warnings = append(warnings, Warning{Provider: p.Name(), Err: err})
			return
		}
		for symbol, price := range fetched {
			out[symbol] = price
			s.cache.set(cacheKey(class, symbol), price)
		}
	}

	if len(cryptoMisses) > 0 {
		wg.Add(1)
		go fetch(s.crypto, cryptoMisses, models.TradeAssetCrypto, quotes.Crypto)
	}
	if len(equityMisses) > 0 {
		wg.Add(1)
		go fetch(s.equity, equityMisses, models.TradeAssetEquity, quotes.Equity)
	}
	wg.Wait()

	return quotes, warnings
}

// fromCache fills out with cached quotes for the given asset class and
// returns the deduplicated symbols that still need fetching.
func (s *Service) fromCache(requests []SymbolRequest, class models.TradeAssetType, out map[string]float64) []string {
	seen := make(map[string]bool)
	var misses []string
	for _, req := range requests {
		if req.AssetType != class || req.Symbol == "" {
			continue
		}
		symbol := upper(req.Symbol)
		if seen[symbol] {
			continue
		}
		seen[symbol] = true

		if price, ok := s.cache.get(cacheKey(class, symbol)); ok {
			out[symbol] = price
			continue
		}
		misses = append(misses, symbol)
	}
	return misses
}

func cacheKey(class models.TradeAssetType, symbol string) string {
	return string(class) + ":" + symbol
}
