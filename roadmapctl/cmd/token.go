package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"roadmap-planner/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		secret, sub, email string
		ttl                time.Duration
	)
	c := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 token for LOCAL_AUTH_MODE=hs256",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("LOCAL_AUTH_SHARED_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or LOCAL_AUTH_SHARED_SECRET is required")
			}
			token, err := auth.MintLocalToken([]byte(secret), sub, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	c.Flags().StringVar(&secret, "secret", "", "shared secret (defaults to LOCAL_AUTH_SHARED_SECRET)")
	c.Flags().StringVar(&sub, "sub", "", "user id placed in the sub claim")
	c.Flags().StringVar(&email, "email", "", "email claim")
	c.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = c.MarkFlagRequired("sub")
	return c
}
