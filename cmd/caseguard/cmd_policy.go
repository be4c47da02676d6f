package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/focusforward/caseguard/pkg/advisory"
	"github.com/focusforward/caseguard/pkg/narrative"
	"github.com/focusforward/caseguard/pkg/rules"
	"github.com/focusforward/caseguard/pkg/source"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect rule, advisory and prompt policies",
	}

	lint := &cobra.Command{
		Use:   "lint [uri]",
		Short: "Compile an advisory pack and check it for non-deterministic expressions",
		Long:  "Lints the pack at uri (file, http(s), s3, azblob or gs), or the embedded default pack.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pack := advisory.Default()
			if len(args) == 1 {
				router := source.NewDefaultRouter(source.Options{})
				p, err := advisory.Load(cmd.Context(), router, args[0])
				if err != nil {
					return err
				}
				pack = p
			}
			issues, err := advisory.Lint(pack)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, i := range issues {
				_, _ = fmt.Fprintln(out, i.String())
			}
			if len(issues) > 0 {
				return &exitError{code: 1, msg: fmt.Sprintf("%d issue(s) in pack %s", len(issues), pack.Name)}
			}
			// Type errors and table incompatibility only show up on compile.
			if _, err := advisory.NewEvaluator(pack, rules.Canonical()); err != nil {
				return &exitError{code: 1, msg: err.Error()}
			}
			_, err = fmt.Fprintf(out, "pack %s %s: %d rules ok\n", pack.Name, pack.Version, len(pack.Rules))
			return err
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the active rule table and prompt policy revisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fp, err := narrative.CanonicalPolicy().Fingerprint()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			t := rules.Canonical()
			_, _ = fmt.Fprintf(out, "rule table %s\n", t.Version())
			for _, r := range t.Rules() {
				_, _ = fmt.Fprintf(out, "  %-36s %-10s %s\n", r.ID, r.Tier, r.Summary)
			}
			_, err = fmt.Fprintf(out, "prompt policy %s %s\n", narrative.PolicyVersion, fp)
			return err
		},
	}

	cmd.AddCommand(lint, show)
	return cmd
}
