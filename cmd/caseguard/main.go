// Command caseguard reviews emergency-department case notes for medico-legal
// documentation risk, as a server or from the terminal.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if len(args) > 1 {
		root.SetArgs(args[1:])
	} else {
		root.SetArgs([]string{})
	}

	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			_, _ = fmt.Fprintln(stderr, ee.msg)
		}
		return ee.code
	}
	_, _ = fmt.Fprintln(stderr, "Error:", err)
	return 1
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "caseguard",
		Short: "Medico-legal documentation review for emergency case notes",
		Long: "caseguard classifies a case note as SAFE, BORDERLINE or DANGEROUS from a\n" +
			"medico-legal standpoint, lists the missing documentation anchors and\n" +
			"proposes a defensible rewrite.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newServeCmd(),
		newReviewCmd(),
		newClassifyCmd(),
		newPolicyCmd(),
		newAccessCmd(),
		newMigrateCmd(),
		newTokenCmd(),
	)
	return root
}
