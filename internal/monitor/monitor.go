// Package monitor runs the periodic alert evaluation loop.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	apperrors "pricewatch/internal/errors"
	"pricewatch/internal/logging"
	"pricewatch/internal/models"
	"pricewatch/internal/notify"
	"pricewatch/internal/store"
)

const (
	// DefaultInterval is the time between two checks.
	DefaultInterval = 300 * time.Second
	// DefaultStopTimeout bounds how long Stop waits for the loop to exit.
	DefaultStopTimeout = 2 * time.Second
)

// PriceSource resolves the current price of a symbol.
type PriceSource interface {
	Get(ctx context.Context, symbol string) (float64, error)
}

// Notifier delivers the notification for a triggered alert.
type Notifier interface {
	Send(ctx context.Context, symbol, price, recipient string) bool
}

// Options configures a Monitor.
type Options struct {
	Interval    time.Duration
	StopTimeout time.Duration
	Recipient   string
}

// Trigger is one alert that fired during a tick.
type Trigger struct {
	Alert    models.Alert `json:"alert"`
	Notified bool         `json:"notified"`
}

// TickReport summarizes one evaluation cycle.
type TickReport struct {
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
	Alerts        int       `json:"alerts"`
	Symbols       int       `json:"symbols"`
	FailedSymbols []string  `json:"failed_symbols"`
	Triggered     []Trigger `json:"triggered"`
	StoreErrors   int       `json:"store_errors"`
}

// Monitor periodically evaluates active alerts against current prices.
type Monitor struct {
	store    store.AlertStore
	prices   PriceSource
	notifier Notifier
	logger   zerolog.Logger

	recipient   string
	stopTimeout time.Duration
	interval    atomic.Int64
	now         func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// tickMu serializes the loop with CheckNow.
	tickMu sync.Mutex
}

// New creates a stopped monitor.
func New(st store.AlertStore, prices PriceSource, notifier Notifier, opts Options, logger zerolog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	m := &Monitor{
		store:       st,
		prices:      prices,
		notifier:    notifier,
		logger:      logging.WithComponent(logger, "monitor"),
		recipient:   opts.Recipient,
		stopTimeout: opts.StopTimeout,
		now:         time.Now,
	}
	m.interval.Store(int64(opts.Interval))
	return m
}

// Interval returns the time between checks.
func (m *Monitor) Interval() time.Duration {
	return time.Duration(m.interval.Load())
}

// SetInterval changes the time between checks. The running loop picks the
// new value up when it next schedules a wake-up.
func (m *Monitor) SetInterval(d time.Duration) error {
	if d <= 0 {
		return apperrors.NewValidationError("interval", d.String(), "must be positive")
	}
	if old := time.Duration(m.interval.Swap(int64(d))); old != d {
		m.logger.Info().Dur("old", old).Dur("new", d).Msg("Check interval updated")
	}
	return nil
}

// maxIntervalSeconds is the largest whole-second interval a time.Duration holds.
const maxIntervalSeconds = math.MaxInt64 / int64(time.Second)

// IntervalFromSeconds converts a user-supplied number of seconds into an
// interval, rejecting values that are not positive or do not fit a Duration.
func IntervalFromSeconds(seconds int64) (time.Duration, error) {
	if seconds <= 0 || seconds > maxIntervalSeconds {
		return 0, apperrors.NewValidationError("interval", seconds, fmt.Sprintf("must be between 1 and %d seconds", maxIntervalSeconds))
	}
	return time.Duration(seconds) * time.Second, nil
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Start launches the loop. It returns false if the monitor is already running.
func (m *Monitor) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.logger.Warn().Msg("Monitoring already running")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.run(ctx, done)

	m.logger.Info().Dur("interval", m.Interval()).Msg("Monitoring started")
	return true
}

// Stop signals the loop to exit and waits at most the stop timeout for it.
// It returns false if the monitor was not running.
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		m.logger.Warn().Msg("Monitoring is not running")
		return false
	}
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	cancel()

	timer := time.NewTimer(m.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		m.logger.Info().Msg("Monitoring stopped")
	case <-timer.C:
		m.logger.Warn().Dur("timeout", m.stopTimeout).Msg("Monitoring stop timed out, check still in flight")
	}
	return true
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		m.tick(ctx)

		wait := m.Interval()
		m.logger.Debug().Time("next_check", m.now().Add(wait)).Msg("Sleeping until next check")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// CheckNow runs one evaluation cycle synchronously.
func (m *Monitor) CheckNow(ctx context.Context) TickReport {
	return m.tick(ctx)
}

func (m *Monitor) tick(ctx context.Context) (report TickReport) {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	started := m.now()
	report = TickReport{
		StartedAt:     started,
		FailedSymbols: []string{},
		Triggered:     []Trigger{},
	}
	defer func() {
		report.DurationMS = m.now().Sub(started).Milliseconds()
	}()

	alerts, err := m.store.ListActive(ctx)
	if err != nil {
		report.StoreErrors++
		m.logger.Error().Err(err).Msg("Failed to list active alerts")
		return report
	}

	symbols, bySymbol := groupBySymbol(alerts)
	report.Alerts = len(alerts)
	report.Symbols = len(symbols)

	m.logger.Info().Int("alerts", len(alerts)).Int("symbols", len(symbols)).Msg("Checking alerts")

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return report
		}

		log := logging.WithSymbol(m.logger, symbol)

		price, err := m.prices.Get(ctx, symbol)
		if err != nil {
			report.FailedSymbols = append(report.FailedSymbols, symbol)
			log.Warn().Err(err).Msg("Price fetch failed, skipping symbol")
			continue
		}
		log.Debug().Float64("price", price).Msg("Resolved price")

		for _, alert := range bySymbol[symbol] {
			if !Check(alert, price) {
				continue
			}
			if ctx.Err() != nil {
				return report
			}
			if t, ok := m.trigger(ctx, alert, price, &report); ok {
				report.Triggered = append(report.Triggered, t)
			}
		}
	}

	m.logger.Info().
		Int("alerts", report.Alerts).
		Int("triggered", len(report.Triggered)).
		Int("failed_symbols", len(report.FailedSymbols)).
		Msg("Check complete")

	return report
}

// trigger records the transition and then sends the notification. Both steps
// run detached from ctx cancellation: a recorded trigger always gets its
// single delivery attempt.
func (m *Monitor) trigger(ctx context.Context, alert models.Alert, price float64, report *TickReport) (Trigger, bool) {
	log := logging.WithAlertID(logging.WithSymbol(m.logger, alert.Symbol), alert.ID)
	ctx = context.WithoutCancel(ctx)

	triggered, err := m.store.MarkTriggered(ctx, alert.ID, price, m.now())
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			log.Debug().Msg("Alert no longer active, skipping")
			return Trigger{}, false
		}
		report.StoreErrors++
		log.Error().Err(err).Msg("Failed to record triggered alert")
		return Trigger{}, false
	}

	logging.LogTrigger(m.logger, alert.ID, alert.Symbol, string(alert.Direction), alert.Threshold, price)

	sent := m.notifier.Send(ctx, alert.Symbol, notify.FormatPrice(price), m.recipient)
	logging.LogDispatch(m.logger, alert.ID, alert.Symbol, sent)

	return Trigger{Alert: triggered, Notified: sent}, true
}

// groupBySymbol returns the distinct symbols in first-seen order and the
// alerts for each.
func groupBySymbol(alerts []models.Alert) ([]string, map[string][]models.Alert) {
	var symbols []string
	bySymbol := make(map[string][]models.Alert)
	for _, a := range alerts {
		if _, ok := bySymbol[a.Symbol]; !ok {
			symbols = append(symbols, a.Symbol)
		}
		bySymbol[a.Symbol] = append(bySymbol[a.Symbol], a)
	}
	return symbols, bySymbol
}
