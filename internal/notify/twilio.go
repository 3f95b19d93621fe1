package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"pricewatch/internal/config"
)

// DefaultTwilioBaseURL is the Twilio REST API root.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioChannel sends WhatsApp messages through the Twilio REST API.
type TwilioChannel struct {
	accountSID string
	authToken  string
	from       string
	contentSID string
	baseURL    string
	client     *http.Client
}

// NewTwilioChannel creates a new TwilioChannel.
func NewTwilioChannel(cfg config.TwilioConfig) *TwilioChannel {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	return &TwilioChannel{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		contentSID: cfg.ContentSID,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
	}
}

// Name returns the name of the channel.
func (t *TwilioChannel) Name() string {
	return "twilio"
}

// IsEnabled reports whether credentials and a sender are configured.
func (t *TwilioChannel) IsEnabled() bool {
	return t.accountSID != "" && t.authToken != "" && t.from != ""
}

// Deliver sends the message to msg.Recipient over WhatsApp.
func (t *TwilioChannel) Deliver(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return fmt.Errorf("no recipient")
	}

	form := url.Values{}
	form.Set("From", whatsappAddress(t.from))
	form.Set("To", whatsappAddress(msg.Recipient))

	if t.contentSID != "" {
		vars, err := json.Marshal(map[string]string{"1": msg.Symbol, "2": msg.Price})
		if err != nil {
			return fmt.Errorf("marshaling content variables: %w", err)
		}
		form.Set("ContentSid", t.contentSID)
		form.Set("ContentVariables", string(vars))
	} else {
		form.Set("Body", msg.Body)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating twilio request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending twilio message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if m := gjson.GetBytes(body, "message"); m.Exists() {
			return fmt.Errorf("twilio returned status %d: %s", resp.StatusCode, m.String())
		}
		return fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}

	return nil
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
