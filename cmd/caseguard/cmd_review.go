package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/focusforward/caseguard/pkg/review"
	"github.com/focusforward/caseguard/pkg/tally"
)

// readNote takes the note from args, a file, or stdin when neither is given
// or the file is "-".
func readNote(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case file == "" || file == "-":
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reviewExit maps review failures onto exit codes: 2 for bad input, 3 for
// denied access, 4 for generation failures.
func reviewExit(err error) error {
	var verr *review.ValidationError
	var uerr *review.UpstreamError
	switch {
	case errors.As(err, &verr):
		return &exitError{code: 2, msg: verr.Message()}
	case errors.Is(err, review.ErrAccessDenied):
		return &exitError{code: 3, msg: "No active subscription"}
	case errors.As(err, &uerr):
		return &exitError{code: 4, msg: "Generation error, please try again"}
	default:
		return err
	}
}

func newReviewCmd() *cobra.Command {
	var (
		file    string
		email   string
		session string
		hints   []string
	)
	cmd := &cobra.Command{
		Use:   "review [note...]",
		Short: "Review a case note and print the defensible rewrite",
		RunE: func(cmd *cobra.Command, args []string) error {
			note, err := readNote(cmd, args, file)
			if err != nil {
				return err
			}
			if !tally.ValidSession(session) {
				return &exitError{code: 2, msg: "invalid --session"}
			}
			a, err := loadApp(cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.Close(context.Background())

			svc, err := a.service(ctx, true)
			if err != nil {
				return err
			}
			result, err := svc.Review(ctx, review.Request{Note: note, Hints: hints, Email: email})
			if err != nil {
				return reviewExit(err)
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}

			tallies, err := a.tallies(ctx)
			if err != nil {
				return err
			}
			if err := tallies.Record(ctx, session, tally.EntryFrom(result)); err != nil {
				a.logger.WarnContext(ctx, "tally record failed", "error", err)
				return nil
			}
			t, err := tallies.Get(ctx, session)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Summary())
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the note from a file (- for stdin)")
	cmd.Flags().StringVar(&email, "email", "", "subscriber email checked against the access registry")
	cmd.Flags().StringVar(&session, "session", "cli", "session the review is tallied under")
	cmd.Flags().StringArrayVar(&hints, "hint", nil, "context hint for the rewrite (repeatable)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "classify [note...]",
		Short: "Run the rule layer only and print features, verdict and advisories",
		RunE: func(cmd *cobra.Command, args []string) error {
			note, err := readNote(cmd, args, file)
			if err != nil {
				return err
			}
			a, err := loadApp(cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			c, err := svc.Classify(cmd.Context(), note)
			if err != nil {
				return reviewExit(err)
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the note from a file (- for stdin)")
	return cmd
}
