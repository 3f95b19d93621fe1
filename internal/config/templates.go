package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# pricewatch configuration

[monitor]
# Seconds between alert checks. Edits are picked up while the monitor runs
# and apply from the next scheduled check.
check_interval = 300
# Seconds a fetched price stays usable
cache_ttl = 60
# Seconds stop waits for an in-flight check before returning
stop_timeout = 2

[store]
# Alert store backend: "json" or "sqlite"
backend = "json"
# Store file; defaults to alerts.json / alerts.db in this directory
path = ""

[oracle]
# Price source: "yahoo", "http" or "static"
provider = "yahoo"
# Seconds allowed per price lookup
timeout = 10

[oracle.http]
# URL template, {symbol} is replaced with the symbol
url = ""
# gjson path of the price inside the JSON response
price_path = "price"

[oracle.static.prices]
# SYMBOL = price, used by the "static" provider. Keys are matched
# case-insensitively. Avoid dots in keys, they nest the entry.
# "BTC-USD" = 65000.0

[notifications]
# Default recipient, e.g. a WhatsApp number "+15551234567"
recipient = ""
# Seconds allowed per notification across all channels
timeout = 10

[notifications.twilio]
# WhatsApp via Twilio. Credentials live in credentials.toml or the environment.
enabled = false
from = ""
# Content template SID; leave empty to send the plain message
content_sid = ""

[notifications.telegram]
enabled = false
chat_id = ""

[notifications.webhook]
enabled = false
url = ""

[notifications.log]
# Write notifications to the log (useful for dry runs)
enabled = false

[server]
addr = "127.0.0.1:8080"

[logging]
level = "info"
console = true
file = true
file_path = ""
max_size = 100
max_backups = 7
max_age = 30
`

const credentialsTemplate = `# pricewatch credentials
# Keep this file private (chmod 600)

[twilio]
account_sid = ""
auth_token = ""

[telegram]
bot_token = ""
`

func createTemplateConfig(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}

	return path, nil
}

func createTemplateCredentials(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return "", fmt.Errorf("writing credentials template: %w", err)
	}

	return path, nil
}
