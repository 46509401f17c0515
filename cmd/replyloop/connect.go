package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/replyloop/replyloop/credentials"
	"github.com/replyloop/replyloop/db"
	"github.com/replyloop/replyloop/internal/clifmt"
)

func newConnectCmd() *cobra.Command {
	var (
		userID      string
		workspaceID string
		shopDomain  string
		token       string
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Store an encrypted platform connection for a merchant",
		RunE: func(cmd *cobra.Command, args []string) error {
			setDefaults()

			gdb, err := db.Open(cmd.Context(), dbConfigFromViper())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}

			secret := strings.TrimSpace(viper.GetString("credentials.secret"))
			if secret == "" {
				return fmt.Errorf("credentials.secret is not set (env REPLYLOOP_CREDENTIALS_SECRET)")
			}

			if strings.TrimSpace(token) == "" {
				// Read the token off the terminal without echo so it does
				// not land in shell history or process listings.
				fmt.Fprint(os.Stderr, "Access token: ")
				b, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return fmt.Errorf("read access token: %w", err)
				}
				token = string(b)
			}

			resolver := credentials.NewResolver(gdb, secret)
			if err := resolver.Store(cmd.Context(), userID, workspaceID, shopDomain, token); err != nil {
				return err
			}

			fmt.Println(clifmt.Success("connected") + " " + shopDomain)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "merchant user id (required)")
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id")
	cmd.Flags().StringVar(&shopDomain, "shop", "", "shop domain, e.g. acme.myshopify.com (required)")
	cmd.Flags().StringVar(&token, "token", "", "admin API access token (prompted when omitted)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("shop")
	return cmd
}
