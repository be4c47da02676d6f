package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/focusforward/caseguard/pkg/config"
	"github.com/focusforward/caseguard/pkg/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or roll back the Postgres schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(store.Up), string(store.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			st, err := store.Migrate(cfg.DatabaseURL, store.Direction(args[0]))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", st.Version, st.Dirty)
			return err
		},
	}
}
