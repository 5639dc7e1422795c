package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crypto-tracker/models"
)

// ErrProviderFailure is returned for any failed quote fetch. Callers never
// receive partial results.
var ErrProviderFailure = errors.New("failed to fetch cryptocurrency data")

const quotesLatestPath = "/v1/cryptocurrency/quotes/latest"

// CoinMarketCap fetches latest quotes from the CoinMarketCap pro API.
type CoinMarketCap struct {
	client  *http.Client
	baseURL string
	apiKey  string
	convert string
}

func NewCoinMarketCap(client *http.Client, baseURL, apiKey, convert string) *CoinMarketCap {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if convert == "" {
		convert = "USD"
	}
	return &CoinMarketCap{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		convert: strings.ToUpper(convert),
	}
}

type cmcResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]cmcCoin `json:"data"`
}

type cmcCoin struct {
	ID     int                 `json:"id"`
	Name   string              `json:"name"`
	Symbol string              `json:"symbol"`
	Quote  map[string]cmcQuote `json:"quote"`
}

type cmcQuote struct {
	Price            decimal.Decimal `json:"price"`
	PercentChange1h  decimal.Decimal `json:"percent_change_1h"`
	PercentChange24h decimal.Decimal `json:"percent_change_24h"`
	PercentChange7d  decimal.Decimal `json:"percent_change_7d"`
	MarketCap        decimal.Decimal `json:"market_cap"`
	Volume24h        decimal.Decimal `json:"volume_24h"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// NormalizeSymbols upper-cases, trims, de-duplicates and sorts symbols.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// GetQuotes returns quotes keyed by upper-case symbol. An empty symbol list
// returns an empty map without calling the API.
func (c *CoinMarketCap) GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	symbols = NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return map[string]models.Quote{}, nil
	}

	params := url.Values{}
	params.Set("symbol", strings.Join(symbols, ","))
	params.Set("convert", c.convert)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+quotesLatestPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	var result cmcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response (status %d): %w", ErrProviderFailure, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || result.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderFailure, resp.StatusCode, result.Status.ErrorMessage)
	}

	quotes := make(map[string]models.Quote, len(result.Data))
	for key, coin := range result.Data {
		q, ok := coin.Quote[c.convert]
		if !ok {
			continue
		}
		symbol := strings.ToUpper(coin.Symbol)
		if symbol == "" {
			symbol = strings.ToUpper(key)
		}
		quotes[symbol] = models.Quote{
			Symbol:           symbol,
			Name:             coin.Name,
			Price:            q.Price,
			PercentChange1h:  q.PercentChange1h,
			PercentChange24h: q.PercentChange24h,
			PercentChange7d:  q.PercentChange7d,
			MarketCap:        q.MarketCap,
			Volume24h:        q.Volume24h,
			LastUpdated:      q.LastUpdated,
		}
	}
	return quotes, nil
}
