package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/membrane/internal/policy"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                     `json:"valid"`
	Entries int                      `json:"entries"`
	Order   []string                 `json:"order,omitempty"`
	Errors  []policy.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <policy-file>",
		Short: "Check a whitelist policy without applying it",
		Long: `Parse a whitelist policy (.cue, .yaml or .yml) and check every entry:
paths, shapes, grants, super constructors and hooks. All problems are
reported, not just the first.

Examples:
  membrane validate ./policy/whitelist.cue
  membrane validate ./policy/whitelist.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(path); err != nil {
		return formatter.reportError(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("policy file not found: %s", path), nil)
	}

	t, err := policy.LoadFile(path)
	if err != nil {
		var cErr *policy.CompileError
		if errors.As(err, &cErr) {
			return formatter.reportError(ExitFailure, ErrCodeParse, "policy does not compile", cErr)
		}
		return formatter.reportError(ExitFailure, ErrCodeParse, "failed to parse policy", err)
	}
	formatter.VerboseLog("Loaded %d entries from %s", len(t.Entries), path)

	result := ValidationResult{Entries: len(t.Entries), Errors: policy.Validate(t)}
	if len(result.Errors) == 0 {
		order, err := policy.ApplyOrder(t)
		if err != nil {
			return formatter.reportError(ExitFailure, ErrCodeInvalidPolicy, "policy has no apply order", err)
		}
		for _, e := range order {
			result.Order = append(result.Order, e.Path)
		}
		result.Valid = true
	}

	if formatter.JSON() {
		if !result.Valid {
			if err := formatter.Fail(result, ErrCodeInvalidPolicy, fmt.Sprintf("%d validation error(s)", len(result.Errors))); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "policy is invalid")
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if !result.Valid {
		for _, e := range result.Errors {
			fmt.Fprintf(w, "✗ %s\n", e.Error())
		}
		fmt.Fprintf(w, "\n%d validation error(s) in %s\n", len(result.Errors), path)
		return NewExitError(ExitFailure, "policy is invalid")
	}
	for i, p := range result.Order {
		formatter.VerboseLog("  %d. %s", i+1, p)
	}
	fmt.Fprintf(w, "✓ %s: %d entries valid\n", path, result.Entries)
	return nil
}
