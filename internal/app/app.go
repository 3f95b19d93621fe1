// Package app wires the store, price cache, dispatcher and monitor together.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"pricewatch/internal/config"
	apperrors "pricewatch/internal/errors"
	"pricewatch/internal/market"
	"pricewatch/internal/monitor"
	"pricewatch/internal/notify"
	"pricewatch/internal/store"
)

// App holds the process-lifetime components. Build it once with New and
// release it with Close.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      store.AlertStore
	Prices     *market.Cache
	Dispatcher *notify.MultiDispatcher
	Monitor    *monitor.Monitor
}

// New builds every component from cfg.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	oracle, err := NewOracle(cfg.Oracle)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(store.Options{Backend: cfg.Store.Backend, Path: cfg.Store.Path})
	if err != nil {
		return nil, fmt.Errorf("opening alert store: %w", err)
	}
	logger.Debug().Str("backend", cfg.Store.Backend).Str("path", cfg.Store.Path).Msg("Alert store opened")

	return assemble(cfg, logger, st, oracle), nil
}

// NewWithStore builds the app around an existing store and oracle.
func NewWithStore(cfg *config.Config, logger zerolog.Logger, st store.AlertStore, oracle market.Oracle) *App {
	return assemble(cfg, logger, st, oracle)
}

func assemble(cfg *config.Config, logger zerolog.Logger, st store.AlertStore, oracle market.Oracle) *App {
	prices := market.NewCache(oracle, cfg.Monitor.CacheTTLDuration(), logger)
	dispatcher := notify.NewFromConfig(cfg.Notifications, logger)
	if !dispatcher.Configured() {
		logger.Warn().Msg("No notification channel enabled, triggered alerts will only be recorded")
	}

	mon := monitor.New(st, prices, dispatcher, monitor.Options{
		Interval:    cfg.Monitor.CheckIntervalDuration(),
		StopTimeout: cfg.Monitor.StopTimeoutDuration(),
		Recipient:   cfg.Notifications.Recipient,
	}, logger)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Prices:     prices,
		Dispatcher: dispatcher,
		Monitor:    mon,
	}
}

// NewOracle returns the price source selected by cfg.Provider.
func NewOracle(cfg config.OracleConfig) (market.Oracle, error) {
	switch cfg.Provider {
	case market.ProviderYahoo, "":
		return market.NewYahooOracle(cfg.TimeoutDuration()), nil
	case market.ProviderHTTP:
		return market.NewHTTPOracle(market.HTTPOracleConfig{
			URL:       cfg.HTTP.URL,
			PricePath: cfg.HTTP.PricePath,
			Headers:   cfg.HTTP.Headers,
			Timeout:   cfg.TimeoutDuration(),
		}), nil
	case market.ProviderStatic:
		return market.NewStaticOracle(cfg.Static.Prices), nil
	default:
		return nil, apperrors.Wrapf(apperrors.ErrConfigInvalid, "unknown oracle provider %q", cfg.Provider)
	}
}

// Reload applies the runtime-mutable settings of cfg. The new interval
// takes effect at the monitor's next scheduled wake-up.
func (a *App) Reload(cfg *config.Config) {
	if d := cfg.Monitor.CheckIntervalDuration(); d > 0 && d != a.Monitor.Interval() {
		a.Monitor.SetInterval(d)
	}
	if ttl := cfg.Monitor.CacheTTLDuration(); ttl > 0 && ttl != a.Prices.TTL() {
		a.Prices.SetTTL(ttl)
		a.Logger.Info().Dur("ttl", ttl).Msg("Price cache TTL updated")
	}
}

// Close stops the monitor and closes the store.
func (a *App) Close() error {
	if a.Monitor.Running() {
		a.Monitor.Stop()
	}
	return a.Store.Close()
}
