package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	apperrors "pricewatch/internal/errors"
	"pricewatch/internal/models"
)

// DefaultTTL is how long a fetched price stays usable.
const DefaultTTL = 60 * time.Second

// Cache memoizes oracle prices per symbol for a short TTL.
//
// A stale entry is never served: when the oracle fails the error is
// returned and the caller skips the symbol.
type Cache struct {
	oracle Oracle
	logger zerolog.Logger

	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]models.PriceQuote

	group singleflight.Group
	now   func() time.Time
}

// NewCache creates a cache in front of oracle. A non-positive ttl uses DefaultTTL.
func NewCache(oracle Oracle, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		oracle:  oracle,
		logger:  logger.With().Str("component", "price_cache").Logger(),
		ttl:     ttl,
		entries: make(map[string]models.PriceQuote),
		now:     time.Now,
	}
}

// TTL returns the current time-to-live.
func (c *Cache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

// SetTTL changes the time-to-live. Existing entries are judged against the new value.
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// Get returns the current price for symbol.
func (c *Cache) Get(ctx context.Context, symbol string) (float64, error) {
	q, err := c.Quote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.Price, nil
}

// Quote returns the current price for symbol together with its fetch time.
// Errors match ErrPriceFetch.
func (c *Cache) Quote(ctx context.Context, symbol string) (models.PriceQuote, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return models.PriceQuote{}, apperrors.NewPriceFetchError(symbol, apperrors.NewValidationError("symbol", symbol, "must not be empty"))
	}

	if q, ok := c.fresh(symbol); ok {
		return q, nil
	}

	// Concurrent misses for one symbol share a single oracle call. The shared
	// call must not fail because the caller that started it went away, so it
	// runs detached from ctx cancellation and relies on the oracle timeout.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(symbol, func() (interface{}, error) {
		if q, ok := c.fresh(symbol); ok {
			return q, nil
		}

		price, err := c.fetch(fetchCtx, symbol)
		if err != nil {
			return nil, err
		}

		q := models.PriceQuote{Symbol: symbol, Price: price, FetchedAt: c.now()}
		c.mu.Lock()
		c.entries[symbol] = q
		c.mu.Unlock()

		c.logger.Debug().Str("symbol", symbol).Float64("price", price).Msg("Fetched price")
		return q, nil
	})
	if err != nil {
		return models.PriceQuote{}, apperrors.NewPriceFetchError(symbol, err)
	}
	return v.(models.PriceQuote), nil
}

func (c *Cache) fresh(symbol string) (models.PriceQuote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.entries[symbol]
	if !ok {
		return models.PriceQuote{}, false
	}
	if c.now().Sub(q.FetchedAt) >= c.ttl {
		return models.PriceQuote{}, false
	}
	return q, true
}

// fetch calls the oracle, converting a panic into an error.
func (c *Cache) fetch(ctx context.Context, symbol string) (price float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("oracle panic: %v", r)
		}
	}()

	price, err = c.oracle.Fetch(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if err := validatePrice(symbol, price); err != nil {
		return 0, err
	}
	return price, nil
}

// Invalidate drops the cached entry for symbol.
func (c *Cache) Invalidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, models.NormalizeSymbol(symbol))
}

// Len returns the number of cached entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
