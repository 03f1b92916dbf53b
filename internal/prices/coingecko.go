package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"moneta/internal/config"
)

const coinGeckoSimplePricePath = "/api/v3/simple/price"

// coinIDs maps common ticker symbols to CoinGecko coin IDs. Symbols not in
// the table fall back to their lowercased form, which matches for many
// smaller coins.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"SOL":   "solana",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
	"XMR":   "monero",
	"UNI":   "uniswap",
	"BCH":   "bitcoin-cash",
	"ETC":   "ethereum-classic",
}

// CoinGeckoClient fetches crypto quotes from the CoinGecko simple price API.
type CoinGeckoClient struct {
	client *resty.Client
}

// NewCoinGeckoClient creates a CoinGecko client with a bounded timeout and
// retry budget from the application config.
func NewCoinGeckoClient(cfg *config.Config) *CoinGeckoClient {
	client := resty.New().
		SetBaseURL(cfg.CoinGeckoBaseURL).
		SetTimeout(cfg.ProviderTimeout).
		SetRetryCount(1)
	return &CoinGeckoClient{client: client}
}

// Name returns the provider's display name.
func (c *CoinGeckoClient) Name() string { return "CoinGecko" }

// FetchPrices fetches USD prices for the given crypto symbols. Symbols
// CoinGecko does not know are simply absent from the result.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	ids := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		id := coinID(symbol)
		ids = append(ids, id)
		idToSymbol[id] = upper(symbol)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"ids":           strings.Join(ids, ","),
			"vs_currencies": "usd",
		}).
		Get(coinGeckoSimplePricePath)
	if err != nil {
		return nil, fmt.Errorf("coingecko price request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("coingecko price request: unexpected status %d", resp.StatusCode())
	}

	// Response shape: {"bitcoin": {"usd": 64000.21}, ...}
	var body map[string]map[string]float64
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("coingecko price response: %w", err)
	}

	result := make(map[string]float64, len(body))
	for id, currencies := range body {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		if price := currencies["usd"]; price > 0 {
			result[symbol] = price
		}
	}
	return result, nil
}

// coinID resolves a ticker symbol to a CoinGecko coin ID.
func coinID(symbol string) string {
	if id, ok := coinIDs[upper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}
