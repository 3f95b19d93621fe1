package market

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
)

// YahooOracle looks up the regular market price on Yahoo Finance.
type YahooOracle struct {
	timeout time.Duration
	get     func(symbol string) (*finance.Quote, error)
}

// NewYahooOracle creates a YahooOracle bounded by timeout per lookup.
func NewYahooOracle(timeout time.Duration) *YahooOracle {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooOracle{
		timeout: timeout,
		get:     quote.Get,
	}
}

// Fetch implements Oracle. The underlying client has no context support, so
// the lookup runs in its own goroutine and is abandoned on timeout.
func (y *YahooOracle) Fetch(ctx context.Context, symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	type result struct {
		price float64
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("yahoo quote panic: %v", r)}
			}
		}()

		q, err := y.get(symbol)
		if err != nil {
			done <- result{err: fmt.Errorf("yahoo quote %s: %w", symbol, err)}
			return
		}
		if q == nil {
			done <- result{err: fmt.Errorf("no data found for %s", symbol)}
			return
		}
		done <- result{price: q.RegularMarketPrice}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return 0, r.err
		}
		if err := validatePrice(symbol, r.price); err != nil {
			return 0, err
		}
		return r.price, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("yahoo quote %s: %w", symbol, ctx.Err())
	}
}
