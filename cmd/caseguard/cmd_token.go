package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/focusforward/caseguard/pkg/access"
	"github.com/focusforward/caseguard/pkg/auth"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Mint an API bearer token for email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			ks, err := a.keySet()
			if err != nil {
				return err
			}
			tok, err := auth.IssueToken(cmd.Context(), ks, access.NormalizeEmail(args[0]), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
