// Package market provides current-price lookup: the PriceOracle contract,
// its implementations, and a short-TTL cache in front of them.
package market

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"pricewatch/internal/models"
)

// Oracle fetches the current price of a single symbol.
type Oracle interface {
	Fetch(ctx context.Context, symbol string) (float64, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, symbol string) (float64, error)

// Fetch calls f.
func (f OracleFunc) Fetch(ctx context.Context, symbol string) (float64, error) {
	return f(ctx, symbol)
}

// Provider names accepted by the configuration.
const (
	ProviderYahoo  = "yahoo"
	ProviderHTTP   = "http"
	ProviderStatic = "static"
)

// validatePrice rejects prices that cannot be compared against a threshold.
func validatePrice(symbol string, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("invalid price %v for %s", price, symbol)
	}
	return nil
}

// StaticOracle serves prices from a fixed table. Used for dry runs and tests.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewStaticOracle creates a StaticOracle with the given prices.
func NewStaticOracle(prices map[string]float64) *StaticOracle {
	o := &StaticOracle{prices: make(map[string]float64, len(prices))}
	for sym, p := range prices {
		o.prices[models.NormalizeSymbol(sym)] = p
	}
	return o
}

// Set updates the price for a symbol.
func (o *StaticOracle) Set(symbol string, price float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[models.NormalizeSymbol(symbol)] = price
}

// Fetch returns the configured price or an error for unknown symbols.
func (o *StaticOracle) Fetch(ctx context.Context, symbol string) (float64, error) {
	o.mu.RLock()
	price, ok := o.prices[models.NormalizeSymbol(symbol)]
	o.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("no data found for %s", strings.ToUpper(symbol))
	}
	if err := validatePrice(symbol, price); err != nil {
		return 0, err
	}
	return price, nil
}
