package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogChannel writes notifications to the logger instead of an external service.
type LogChannel struct {
	logger zerolog.Logger
}

// NewLogChannel creates a new LogChannel.
func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger.With().Str("channel", "log").Logger()}
}

// Name returns the name of the channel.
func (l *LogChannel) Name() string {
	return "log"
}

// IsEnabled always returns true.
func (l *LogChannel) IsEnabled() bool {
	return true
}

// Deliver logs the rendered message.
func (l *LogChannel) Deliver(ctx context.Context, msg Message) error {
	l.logger.Info().
		Str("event", "notification").
		Str("symbol", msg.Symbol).
		Str("price", msg.Price).
		Str("recipient", msg.Recipient).
		Msg(msg.Body)
	return nil
}
