package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"moneta/internal/config"
)

const (
	yahooQuotePath = "/v7/finance/quote"
	yahooBatchMax  = 50
	yahooUA        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// yahooQuoteResponse is the top-level Yahoo Finance API response.
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
		} `json:"result"`
		Error *json.RawMessage `json:"error"`
	} `json:"quoteResponse"`
}

// YahooClient fetches equity quotes from the Yahoo Finance batch quote API.
type YahooClient struct {
	client *resty.Client
}

// NewYahooClient creates a Yahoo Finance client with a bounded timeout and
// retry budget from the application config.
func NewYahooClient(cfg *config.Config) *YahooClient {
	client := resty.New().
		SetBaseURL(cfg.YahooBaseURL).
		SetTimeout(cfg.ProviderTimeout).
		SetRetryCount(1).
		SetHeader("User-Agent", yahooUA)
	return &YahooClient{client: client}
}

// Name returns the provider's display name.
func (c *YahooClient) Name() string { return "Yahoo Finance" }

// FetchPrices fetches USD prices for the given equity symbols, batching
// requests to stay under Yahoo's symbol-per-call limit. Symbols Yahoo does
// not know are simply absent from the result.
func (c *YahooClient) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	result := make(map[string]float64, len(symbols))

	for i := 0; i < len(symbols); i += yahooBatchMax {
		end := min(i+yahooBatchMax, len(symbols))
		if err := c.fetchBatch(ctx, symbols[i:end], result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (c *YahooClient) fetchBatch(ctx context.Context, symbols []string, out map[string]float64) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("symbols", strings.Join(symbols, ",")).
		Get(yahooQuotePath)
	if err != nil {
		return fmt.Errorf("yahoo quote request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("yahoo quote request: unexpected status %d", resp.StatusCode())
	}

	var quoteResp yahooQuoteResponse
	if err := json.Unmarshal(resp.Body(), &quoteResp); err != nil {
		return fmt.Errorf("yahoo quote response: %w", err)
	}

	for _, r := range quoteResp.QuoteResponse.Result {
		if r.RegularMarketPrice > 0 {
			out[upper(r.Symbol)] = r.RegularMarketPrice
		}
	}
	return nil
}

func upper(s string) string {
	return strings.ToUpper(s)
}
