package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pricewatch/internal/app"
	"pricewatch/internal/config"
	"pricewatch/internal/monitor"
)

func newMonitorCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run or trigger the alert monitor",
	}

	cmd.AddCommand(newMonitorRunCmd(a))
	cmd.AddCommand(newMonitorCheckCmd(a))

	return cmd
}

func newMonitorRunCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitor until interrupted",
		Long: `Run the alert monitor in the foreground. The first check runs immediately,
then every check interval. Changes to monitor.check_interval in config.toml
are applied from the next scheduled check. Stop with Ctrl+C.`,
		Example: `  pricewatch monitor run
  pricewatch monitor run --interval 60`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			core, err := requireCore(a, output)
			if err != nil {
				return err
			}
			if err := applyIntervalFlag(cmd, core); err != nil {
				output.Error("%v", err)
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			watchConfig(a, core)
			core.Monitor.Start()

			output.Info("Monitoring alerts every %s. Press Ctrl+C to stop.", FormatDuration(core.Monitor.Interval()))
			<-ctx.Done()

			core.Monitor.Stop()
			output.Info("Monitor stopped")
			return nil
		},
	}

	cmd.Flags().Int64("interval", 0, "check interval in seconds (overrides config)")
	return cmd
}

func newMonitorCheckCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single check of all active alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			core, err := requireCore(a, output)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			report := core.Monitor.CheckNow(ctx)
			if output.IsJSON() {
				return output.JSON(report)
			}
			printReport(output, report)
			return nil
		},
	}
}

func printReport(output *Output, report monitor.TickReport) {
	output.Printf("Checked %d alert(s) across %d symbol(s)\n", report.Alerts, report.Symbols)
	for _, symbol := range report.FailedSymbols {
		output.Warning("  ! %s: price unavailable, skipped", symbol)
	}
	if report.StoreErrors > 0 {
		output.Error("  %d store error(s), affected alerts will be retried", report.StoreErrors)
	}
	if len(report.Triggered) == 0 {
		output.Dim("No alerts triggered")
		return
	}
	for _, t := range report.Triggered {
		status := output.Green("notified")
		if !t.Notified {
			status = output.Red("notification failed")
		}
		output.Success("  ✓ %s %s %s at %s (%s)",
			t.Alert.Symbol,
			t.Alert.Direction,
			FormatCurrency(t.Alert.Threshold),
			FormatOptionalPrice(t.Alert.TriggeredPrice),
			status,
		)
	}
}

func applyIntervalFlag(cmd *cobra.Command, core *app.App) error {
	if !cmd.Flags().Changed("interval") {
		return nil
	}
	seconds, _ := cmd.Flags().GetInt64("interval")
	interval, err := monitor.IntervalFromSeconds(seconds)
	if err != nil {
		return err
	}
	return core.Monitor.SetInterval(interval)
}

// watchConfig applies config file edits to the running app.
func watchConfig(a *App, core *app.App) {
	a.Loader.Watch(a.Logger, func(cfg *config.Config) {
		core.Reload(cfg)
	})
}
