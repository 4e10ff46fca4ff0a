package shopper

import (
	"context"
	"fmt"
	"io"

	"storefront/internal/notifier"

	"github.com/spf13/cobra"
)

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "watch",
		Short:        "Listen for checkout confirmations until interrupted",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			_, err = e.watch(ctx, cmd.OutOrStdout(), "")
			return err
		},
	}
}

// watch écoute le canal checkout jusqu'à l'annulation de ctx, ou jusqu'à la
// confirmation de orderID s'il est fourni. Le panier est vidé par le client
// du canal avant l'affichage de la destination.
func (e *env) watch(ctx context.Context, out io.Writer, orderID string) (bool, error) {
	me, err := e.api.Me(ctx)
	if err != nil {
		return false, err
	}
	if me == nil || me.Token == "" {
		return false, notifier.ErrAnonymous
	}
	target, err := e.api.WebSocketURL()
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := false
	client := &notifier.Client{
		URL:   target,
		Token: me.Token,
		Cart:  e.ledger,
		Navigate: func(url string) {
			fmt.Fprintf(out, "Checkout complete, cart cleared: %s\n", url)
			if orderID != "" && url != "" {
				done = true
				cancel()
			}
		},
		OnStatus: func(connected bool) {
			if connected {
				fmt.Fprintln(out, "Listening for checkout confirmations")
			}
		},
	}
	if err := client.Run(ctx); err != nil {
		return false, err
	}
	return done, nil
}
