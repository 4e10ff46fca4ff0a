// Package shopper est le client en ligne de commande de la boutique : un
// panier local (SQLite), la soumission de commande et l'écoute du canal
// checkout.
package shopper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"storefront/internal/cart"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ledgerKey : le client local n'a qu'un panier.
const ledgerKey = "local"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	DB      string
	Verbose bool
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "shopper.db"
	}
	return filepath.Join(dir, "storefront", "shopper.db")
}

// NewRootCommand creates the root command for the shopper CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shopper",
		Short: "Storefront shopping client",
		Long:  "Keep a local cart, place orders and follow checkout completion from the terminal.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Server == "" {
				return fmt.Errorf("--server is required")
			}
			level := zerolog.WarnLevel
			if opts.Verbose {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}

	server := os.Getenv("STOREFRONT_URL")
	if server == "" {
		server = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVar(&opts.Server, "server", server, "storefront base URL")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", defaultDBPath(), "local state database")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// env regroupe l'état ouvert par une commande.
type env struct {
	store  *Store
	api    *API
	ledger *cart.Ledger
}

func (o *RootOptions) open(ctx context.Context) (*env, error) {
	store, err := Open(ctx, o.DB)
	if err != nil {
		return nil, err
	}
	cookie, err := store.SessionCookie(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	ledger, err := cart.Open(ctx, store.Carts(), ledgerKey)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &env{store: store, api: NewAPI(o.Server, cookie), ledger: ledger}, nil
}

// saveSession enregistre le cookie courant de l'API.
func (e *env) saveSession(ctx context.Context) error {
	return e.store.SetSessionCookie(ctx, e.api.Cookie)
}

func (e *env) Close() error { return e.store.Close() }
