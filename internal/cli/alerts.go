package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pricewatch/internal/models"
)

func newAlertCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alert",
		Aliases: []string{"alerts"},
		Short:   "Manage price alerts",
	}

	cmd.AddCommand(newAlertAddCmd(a))
	cmd.AddCommand(newAlertListCmd(a))
	cmd.AddCommand(newAlertHistoryCmd(a))
	cmd.AddCommand(newAlertDeleteCmd(a))

	return cmd
}

func newAlertAddCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <symbol> <threshold>",
		Short: "Create a price alert",
		Example: `  pricewatch alert add BTC-USD 70000
  pricewatch alert add AAPL 150 --direction below`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			threshold, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				output.Error("Invalid threshold %q", args[1])
				return fmt.Errorf("invalid threshold %q: %w", args[1], err)
			}

			dirFlag, _ := cmd.Flags().GetString("direction")
			direction, err := models.ParseDirection(dirFlag)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			core, err := requireCore(a, output)
			if err != nil {
				return err
			}

			alert, err := core.Store.Create(context.Background(), args[0], threshold, direction)
			if err != nil {
				output.Error("Failed to create alert: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(alert)
			}
			output.Success("✓ Alert created for %s %s %s", alert.Symbol, alert.Direction, FormatCurrency(alert.Threshold))
			output.Dim("ID: %s", alert.ID)
			return nil
		},
	}

	cmd.Flags().StringP("direction", "d", "above", "trigger direction: above or below")
	return cmd
}

func newAlertListCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			core, err := requireCore(a, output)
			if err != nil {
				return err
			}

			alerts, err := core.Store.ListActive(context.Background())
			if err != nil {
				output.Error("Failed to list alerts: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(alerts)
			}
			if len(alerts) == 0 {
				output.Info("No active alerts")
				return nil
			}

			table := NewTable(output, "ID", "SYMBOL", "DIRECTION", "THRESHOLD", "STATUS", "CREATED")
			for _, alert := range alerts {
				table.AddRow(
					output.DimText(alert.ID),
					alert.Symbol,
					output.DirectionLabel(string(alert.Direction)),
					FormatCurrency(alert.Threshold),
					output.StatusLabel(string(alert.Status)),
					FormatDateTime(alert.CreatedAt),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newAlertHistoryCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List triggered alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			core, err := requireCore(a, output)
			if err != nil {
				return err
			}

			alerts, err := core.Store.ListHistory(context.Background())
			if err != nil {
				output.Error("Failed to list history: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(alerts)
			}
			if len(alerts) == 0 {
				output.Info("No triggered alerts")
				return nil
			}

			table := NewTable(output, "ID", "SYMBOL", "DIRECTION", "THRESHOLD", "STATUS", "TRIGGERED AT", "PRICE")
			for _, alert := range alerts {
				table.AddRow(
					output.DimText(alert.ID),
					alert.Symbol,
					output.DirectionLabel(string(alert.Direction)),
					FormatCurrency(alert.Threshold),
					output.StatusLabel(string(alert.Status)),
					FormatOptionalTime(alert.TriggeredAt),
					FormatOptionalPrice(alert.TriggeredPrice),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newAlertDeleteCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an alert from either list",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			core, err := requireCore(a, output)
			if err != nil {
				return err
			}

			removed, err := core.Store.Delete(context.Background(), args[0])
			if err != nil {
				output.Error("Failed to delete alert: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"id": args[0], "deleted": removed})
			}
			if !removed {
				output.Warning("Alert %s not found", args[0])
				return nil
			}
			output.Success("✓ Alert %s deleted", args[0])
			return nil
		},
	}
}
