package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pricewatch/internal/api"
)

func newServeCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor with the HTTP API",
		Long: `Start the alert monitor and an HTTP API for managing alerts and
controlling the monitor. Runs until interrupted.`,
		Example: `  pricewatch serve
  pricewatch serve --addr :9090 --interval 60`,
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

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = core.Config.Server.Addr
			}
			noMonitor, _ := cmd.Flags().GetBool("no-monitor")

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			watchConfig(a, core)
			if !noMonitor {
				core.Monitor.Start()
			}

			output.Info("Serving on http://%s", addr)
			server := api.NewServer(core, a.Logger)
			err = server.Run(ctx, addr)

			if core.Monitor.Running() {
				core.Monitor.Stop()
			}
			if err != nil {
				output.Error("Server failed: %v", err)
			}
			return err
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from config)")
	cmd.Flags().Int64("interval", 0, "check interval in seconds (overrides config)")
	cmd.Flags().Bool("no-monitor", false, "start with the monitor stopped")
	return cmd
}
