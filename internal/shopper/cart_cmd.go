package shopper

import (
	"fmt"
	"io"

	"storefront/internal/cart"
	"storefront/internal/pricing"

	"github.com/spf13/cobra"
)

func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the local cart",
	}
	cmd.AddCommand(newCartAddCommand(rootOpts))
	cmd.AddCommand(newCartRemoveCommand(rootOpts))
	cmd.AddCommand(newCartShowCommand(rootOpts))
	cmd.AddCommand(newCartClearCommand(rootOpts))
	return cmd
}

func newCartAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "add <product-id>...",
		Short:        "Add one unit of each product at its current price",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			records, err := e.api.Snapshot(ctx, args)
			if err != nil {
				return err
			}
			byID := make(map[string]pricing.Record, len(records))
			for _, rec := range records {
				byID[rec.ProductID] = rec
			}
			for _, id := range args {
				if _, ok := byID[id]; !ok {
					return fmt.Errorf("product %q was not found", id)
				}
			}
			// une unité par argument : "add a a" ajoute deux unités
			for _, id := range args {
				if err := e.ledger.Add(ctx, byID[id]); err != nil {
					return err
				}
			}
			printCart(cmd.OutOrStdout(), e.ledger.CalculatedPrice())
			return nil
		},
	}
}

func newCartRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "remove <product-id>",
		Short:        "Remove one unit of a product",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.ledger.Remove(ctx, args[0]); err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), e.ledger.CalculatedPrice())
			return nil
		},
	}
}

func newCartShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "show",
		Short:        "Show the cart and its estimated total",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			printCart(cmd.OutOrStdout(), e.ledger.CalculatedPrice())
			return nil
		},
	}
}

func newCartClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "clear",
		Short:        "Empty the cart",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.ledger.Clear(ctx); err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), e.ledger.CalculatedPrice())
			return nil
		},
	}
}

func printCart(w io.Writer, s cart.Summary) {
	if len(s.Products) == 0 {
		fmt.Fprintln(w, "Your cart is empty")
		return
	}
	for _, line := range s.Products {
		fmt.Fprintf(w, "%-24s %3d x %8s = %8s\n", line.Name, line.Quantity, line.UnitPrice.StringFixed(2), line.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(w, "%d item(s), estimated total %s\n", s.Count, s.TotalPrice.StringFixed(2))
}
