// Package notify delivers triggered-alert notifications.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pricewatch/internal/config"
	apperrors "pricewatch/internal/errors"
)

// MessageTemplate is the fixed alert text. {symbol} and {price} are its only placeholders.
const MessageTemplate = "{symbol} price alert: now at ${price}"

// DefaultTimeout bounds a whole Send call.
const DefaultTimeout = 10 * time.Second

// RenderMessage substitutes symbol and price into MessageTemplate.
func RenderMessage(symbol, price string) string {
	return strings.NewReplacer("{symbol}", symbol, "{price}", price).Replace(MessageTemplate)
}

// FormatPrice formats a price with two decimals, e.g. 101 -> "101.00".
// Rounding applies to the exact binary value, as printf's %.2f does, so
// 2.675 renders as "2.67".
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}

// Dispatcher defines the notification boundary used by the monitor.
// Send never panics and returns false on any failure.
type Dispatcher interface {
	Send(ctx context.Context, symbol, price, recipient string) bool
}

// Channel delivers a rendered message over one medium.
type Channel interface {
	Name() string
	IsEnabled() bool
	Deliver(ctx context.Context, msg Message) error
}

// Message is one rendered notification.
type Message struct {
	Symbol    string
	Price     string
	Recipient string
	Body      string
	Timestamp time.Time
}

// MultiDispatcher sends notifications to every enabled channel.
type MultiDispatcher struct {
	mu        sync.RWMutex
	channels  []Channel
	recipient string
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewMultiDispatcher creates an empty dispatcher. A non-positive timeout uses DefaultTimeout.
func NewMultiDispatcher(recipient string, timeout time.Duration, logger zerolog.Logger) *MultiDispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MultiDispatcher{
		channels:  make([]Channel, 0),
		recipient: recipient,
		timeout:   timeout,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// NewFromConfig creates a dispatcher with the channels enabled in cfg.
func NewFromConfig(cfg config.NotificationConfig, logger zerolog.Logger) *MultiDispatcher {
	d := NewMultiDispatcher(cfg.Recipient, cfg.TimeoutDuration(), logger)

	if cfg.Twilio.Enabled {
		d.AddChannel(NewTwilioChannel(cfg.Twilio))
	}
	if cfg.Telegram.Enabled {
		d.AddChannel(NewTelegramChannel(cfg.Telegram))
	}
	if cfg.Webhook.Enabled {
		d.AddChannel(NewWebhookChannel(cfg.Webhook))
	}
	if cfg.Log.Enabled {
		d.AddChannel(NewLogChannel(logger))
	}

	return d
}

// AddChannel adds a notification channel.
func (d *MultiDispatcher) AddChannel(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, ch)
}

// Configured reports whether at least one channel is enabled.
func (d *MultiDispatcher) Configured() bool {
	return len(d.enabled()) > 0
}

// ChannelNames returns the names of the enabled channels.
func (d *MultiDispatcher) ChannelNames() []string {
	var names []string
	for _, ch := range d.enabled() {
		names = append(names, ch.Name())
	}
	return names
}

func (d *MultiDispatcher) enabled() []Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Channel, 0, len(d.channels))
	for _, ch := range d.channels {
		if ch.IsEnabled() {
			out = append(out, ch)
		}
	}
	return out
}

// Send renders the template and delivers it to every enabled channel within
// one shared timeout. It reports true only if at least one channel is enabled
// and all enabled channels succeeded. An empty recipient uses the default.
func (d *MultiDispatcher) Send(ctx context.Context, symbol, price, recipient string) bool {
	channels := d.enabled()
	if len(channels) == 0 {
		d.logger.Warn().Str("symbol", symbol).Msg("No notification channel is configured. Cannot send message.")
		return false
	}

	if recipient == "" {
		recipient = d.recipient
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msg := Message{
		Symbol:    symbol,
		Price:     price,
		Recipient: recipient,
		Body:      RenderMessage(symbol, price),
		Timestamp: time.Now(),
	}

	ok := true
	for _, ch := range channels {
		start := time.Now()
		if err := deliver(ctx, ch, msg); err != nil {
			ok = false
			d.logger.Error().
				Err(apperrors.NewNotificationError(ch.Name(), symbol, err)).
				Str("channel", ch.Name()).
				Dur("duration", time.Since(start)).
				Msg("Notification delivery failed")
			continue
		}
		d.logger.Debug().
			Str("channel", ch.Name()).
			Str("symbol", symbol).
			Dur("duration", time.Since(start)).
			Msg("Notification delivered")
	}
	return ok
}

// deliver calls ch.Deliver, converting a panic into an error.
func deliver(ctx context.Context, ch Channel, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panic: %v", r)
		}
	}()
	return ch.Deliver(ctx, msg)
}

// NoOpDispatcher drops every notification and reports failure.
type NoOpDispatcher struct{}

// Send always returns false.
func (NoOpDispatcher) Send(ctx context.Context, symbol, price, recipient string) bool {
	return false
}
