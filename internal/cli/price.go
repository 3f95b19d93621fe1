package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newPriceCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "price <symbol>",
		Short:   "Show the current price of a symbol",
		Example: "  pricewatch price BTC-USD",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			core, err := requireCore(a, output)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			q, err := core.Prices.Quote(ctx, args[0])
			if err != nil {
				output.Error("Failed to fetch price: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(q)
			}
			output.Printf("%s  %s\n", output.BoldText(q.Symbol), FormatCurrency(q.Price))
			output.Dim("as of %s", FormatDateTime(q.FetchedAt))
			return nil
		},
	}
}
