package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const maxResponseBytes = 1 << 20

// HTTPOracle fetches JSON from a URL template and extracts the price with a
// gjson path, e.g. url "https://api.binance.com/api/v3/ticker/price?symbol={symbol}"
// and path "price".
type HTTPOracle struct {
	urlTemplate string
	pricePath   string
	headers     map[string]string
	client      *http.Client
}

// HTTPOracleConfig configures an HTTPOracle.
type HTTPOracleConfig struct {
	URL       string
	PricePath string
	Headers   map[string]string
	Timeout   time.Duration
}

// NewHTTPOracle creates a new HTTPOracle.
func NewHTTPOracle(cfg HTTPOracleConfig) *HTTPOracle {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	path := cfg.PricePath
	if path == "" {
		path = "price"
	}
	return &HTTPOracle{
		urlTemplate: cfg.URL,
		pricePath:   path,
		headers:     cfg.Headers,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch implements Oracle.
func (h *HTTPOracle) Fetch(ctx context.Context, symbol string) (float64, error) {
	target := strings.ReplaceAll(h.urlTemplate, "{symbol}", url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("creating price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pricewatch/1.0")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching price for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, fmt.Errorf("reading price response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("price source returned status %d for %s", resp.StatusCode, symbol)
	}

	res := gjson.GetBytes(body, h.pricePath)
	if !res.Exists() {
		return 0, fmt.Errorf("no value at %q for %s", h.pricePath, symbol)
	}

	var price float64
	switch res.Type {
	case gjson.Number:
		price = res.Float()
	case gjson.String:
		// Several exchanges quote prices as strings.
		price, err = strconv.ParseFloat(strings.TrimSpace(res.Str), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing price %q for %s: %w", res.Str, symbol, err)
		}
	default:
		return 0, fmt.Errorf("value at %q is not a number for %s", h.pricePath, symbol)
	}

	if err := validatePrice(symbol, price); err != nil {
		return 0, err
	}
	return price, nil
}
