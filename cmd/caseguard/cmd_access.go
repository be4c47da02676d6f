package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/focusforward/caseguard/pkg/access"
)

func newAccessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Query and maintain the access registry",
	}

	check := &cobra.Command{
		Use:   "check <email>",
		Short: "Report whether email holds an active grant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			checker, err := a.accessChecker(cmd.Context())
			if err != nil {
				return err
			}
			if !checker.HasActiveAccess(cmd.Context(), args[0]) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "inactive")
				return &exitError{code: 3}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "active")
			return err
		},
	}

	imp := &cobra.Command{
		Use:   "import <uri>",
		Short: "Load an email,expiry CSV into the access_grants table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			ctx := cmd.Context()

			data, err := a.sources.Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			grants, err := access.ParseCSV(data)
			if err != nil {
				return err
			}
			db, d, err := a.database(ctx)
			if err != nil {
				return err
			}
			if err := access.NewSQLRegistry(db, d, a.logger).Import(ctx, grants); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d grants\n", len(grants))
			return err
		},
	}

	cmd.AddCommand(check, imp)
	return cmd
}
