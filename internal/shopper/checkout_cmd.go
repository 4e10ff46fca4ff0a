package shopper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"storefront/internal/identity"
	"storefront/internal/order"

	"github.com/spf13/cobra"
)

const defaultCheckoutWait = 30 * time.Second

// ErrRejected signale une soumission refusée ; le détail est déjà affiché.
var ErrRejected = errors.New("checkout rejected")

type CheckoutOptions struct {
	*RootOptions
	Email string
	Wait  time.Duration
}

func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the local cart",
		Long: `Place an order for the local cart.

Without a session, --email is required and a guest account is created for it.
The cart is emptied only when the checkout confirmation arrives on the
notification channel; --wait bounds how long to listen for it (0 skips).`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckout(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "purchaser email when not logged in")
	cmd.Flags().DurationVar(&opts.Wait, "wait", defaultCheckoutWait, "how long to wait for the checkout confirmation")

	return cmd
}

func runCheckout(ctx context.Context, opts *CheckoutOptions, out io.Writer) error {
	e, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	sub, err := e.submission(ctx, opts.Email)
	if err != nil {
		return err
	}
	res, err := e.api.Checkout(ctx, sub)
	if err != nil {
		return err
	}
	if res.Rejected != nil {
		printRejected(out, res.Rejected)
		return ErrRejected
	}
	if res.SessionChanged {
		if err := e.saveSession(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Order %s placed\n", res.OrderID)

	if opts.Wait <= 0 {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, opts.Wait)
	defer cancel()
	done, err := e.watch(waitCtx, out, res.OrderID)
	if err != nil {
		return err
	}
	if !done {
		fmt.Fprintln(out, "No confirmation yet; the cart is kept until it arrives (shopper watch)")
	}
	return nil
}

// submission construit la commande depuis le panier local : seuls les ids
// et les quantités sont envoyés.
func (e *env) submission(ctx context.Context, email string) (order.Submission, error) {
	sub := order.Submission{Status: string(identity.LoggedOut), Email: email}
	if e.api.Cookie != "" {
		me, err := e.api.Me(ctx)
		if err != nil {
			return sub, err
		}
		if me != nil {
			sub.Status = string(identity.LoggedIn)
			sub.Email = ""
		}
	}
	for _, line := range e.ledger.Lines() {
		qty := line.Quantity
		sub.Products = append(sub.Products, order.ProductLine{DocumentID: line.ProductID, Quantity: &qty})
	}
	return sub, nil
}

func printRejected(w io.Writer, reply *order.Reply) {
	fields := make([]string, 0, len(reply.Error))
	for field := range reply.Error {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, msg := range reply.Error[field] {
			fmt.Fprintf(w, "%s: %s\n", field, msg)
		}
	}
}
