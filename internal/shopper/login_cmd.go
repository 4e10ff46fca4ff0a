package shopper

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:          "login",
		Short:        "Sign in and keep the session locally",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.Password == "" {
				opts.Password = os.Getenv("SHOPPER_PASSWORD")
			}
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			e.api.Cookie = ""
			reply, err := e.api.Signin(ctx, opts.Email, opts.Password)
			if err != nil {
				return err
			}
			if reply != nil {
				printRejected(cmd.OutOrStdout(), reply)
				return ErrRejected
			}
			if err := e.saveSession(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", opts.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password (or SHOPPER_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "logout",
		Short:        "Close the local session",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if e.api.Cookie != "" {
				if err := e.api.Logout(ctx); err != nil {
					return err
				}
			}
			if err := e.store.SetSessionCookie(ctx, ""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
