// Package cli provides the command-line interface for the price alert monitor.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pricewatch/internal/app"
	"pricewatch/internal/config"
	"pricewatch/internal/logging"
)

// Version information
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// App holds the command dependencies. Components are built on first use so
// commands like "version" and "config path" work without a store.
type App struct {
	Loader *config.Loader
	Config *config.Config
	Logger zerolog.Logger

	configErr error
	core      *app.App
}

// Core returns the wired application, building it on first call.
func (a *App) Core() (*app.App, error) {
	if a.core != nil {
		return a.core, nil
	}
	if a.configErr != nil {
		return nil, a.configErr
	}
	core, err := app.New(a.Config, a.Logger)
	if err != nil {
		return nil, err
	}
	a.core = core
	return core, nil
}

// Close releases the application if it was built.
func (a *App) Close() error {
	if a.core == nil {
		return nil
	}
	err := a.core.Close()
	a.core = nil
	return err
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	a := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "pricewatch",
		Short: "Price alert monitor",
		Long: `pricewatch watches market prices and notifies you when a symbol crosses
a threshold you set.

Alerts are stored locally. The monitor checks every active alert on a fixed
interval, moves triggered alerts to history and sends one notification per
trigger over WhatsApp (Twilio), Telegram, a webhook or the log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			a.Loader = config.NewLoader(dir)

			cfg, err := a.Loader.Load()
			if err != nil {
				a.configErr = err
			} else {
				a.Config = cfg
				a.Logger = newLogger(cfg, cmd)
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				a.Logger = a.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/pricewatch)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newAlertCmd(a))
	rootCmd.AddCommand(newPriceCmd(a))
	rootCmd.AddCommand(newMonitorCmd(a))
	rootCmd.AddCommand(newServeCmd(a))

	return rootCmd
}

func newLogger(cfg *config.Config, cmd *cobra.Command) zerolog.Logger {
	return logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Out:        cmd.ErrOrStderr(),
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("pricewatch v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if a.configErr != nil {
				return a.configErr
			}
			if output.IsJSON() {
				return output.JSON(redacted(a.Config))
			}
			showConfig(output, a.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := filepath.Join(a.Loader.Dir(), "config.toml")
			if output.IsJSON() {
				output.JSON(map[string]string{"dir": a.Loader.Dir(), "path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if a.configErr != nil {
				output.Error("Configuration validation failed: %v", a.configErr)
				return a.configErr
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

// redacted returns a copy of cfg with secrets masked.
func redacted(cfg *config.Config) *config.Config {
	c := *cfg
	c.Notifications.Twilio.AuthToken = mask(c.Notifications.Twilio.AuthToken)
	c.Notifications.Telegram.BotToken = mask(c.Notifications.Telegram.BotToken)
	return &c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Monitor")
	output.Printf("  Check interval:  %s\n", FormatDuration(cfg.Monitor.CheckIntervalDuration()))
	output.Printf("  Cache TTL:       %s\n", FormatDuration(cfg.Monitor.CacheTTLDuration()))
	output.Printf("  Stop timeout:    %s\n", FormatDuration(cfg.Monitor.StopTimeoutDuration()))
	output.Println()

	output.Bold("Store")
	output.Printf("  Backend:         %s\n", cfg.Store.Backend)
	output.Printf("  Path:            %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Price Source")
	output.Printf("  Provider:        %s\n", cfg.Oracle.Provider)
	output.Printf("  Timeout:         %s\n", FormatDuration(cfg.Oracle.TimeoutDuration()))
	if cfg.Oracle.Provider == "http" {
		output.Printf("  URL:             %s\n", cfg.Oracle.HTTP.URL)
		output.Printf("  Price path:      %s\n", cfg.Oracle.HTTP.PricePath)
	}
	output.Println()

	n := cfg.Notifications
	output.Bold("Notifications")
	output.Printf("  Recipient:       %s\n", valueOr(n.Recipient, "(none)"))
	output.Printf("  Twilio:          %v\n", n.Twilio.Enabled)
	output.Printf("  Telegram:        %v\n", n.Telegram.Enabled)
	output.Printf("  Webhook:         %v\n", n.Webhook.Enabled)
	output.Printf("  Log:             %v\n", n.Log.Enabled)
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// requireCore is a small helper for commands that need the full app.
func requireCore(a *App, output *Output) (*app.App, error) {
	core, err := a.Core()
	if err != nil {
		output.Error("Failed to initialize: %v", err)
		return nil, fmt.Errorf("initializing: %w", err)
	}
	return core, nil
}
