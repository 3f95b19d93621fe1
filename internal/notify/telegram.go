package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pricewatch/internal/config"
)

// TelegramChannel sends messages through a Telegram bot.
type TelegramChannel struct {
	token    string
	chatID   string
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramChannel creates a new TelegramChannel. The bot is created on first delivery.
func NewTelegramChannel(cfg config.TelegramConfig) *TelegramChannel {
	return &TelegramChannel{
		token:    cfg.BotToken,
		chatID:   cfg.ChatID,
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
}

// Name returns the name of the channel.
func (t *TelegramChannel) Name() string {
	return "telegram"
}

// IsEnabled reports whether a token and chat are configured.
func (t *TelegramChannel) IsEnabled() bool {
	return t.token != "" && t.chatID != ""
}

// Deliver posts the rendered message to the configured chat.
func (t *TelegramChannel) Deliver(ctx context.Context, msg Message) error {
	chatID, err := strconv.ParseInt(t.chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", t.chatID, err)
	}

	// tgbotapi has no context support, so the call races ctx.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("telegram panic: %v", r)
			}
		}()

		bot, err := t.botAPI()
		if err != nil {
			done <- err
			return
		}
		_, err = bot.Send(tgbotapi.NewMessage(chatID, msg.Body))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sending telegram message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sending telegram message: %w", ctx.Err())
	}
}

func (t *TelegramChannel) botAPI() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.endpoint, t.client)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}
