package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/membrane/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Session  string               `json:"session"`
	Pass     bool                 `json:"pass"`
	Trace    []harness.TraceEvent `json:"trace"`
	Errors   []string             `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file>",
		Short: "Run one scenario against the membrane",
		Long: `Build the scenario's world, apply its policy, and drive each step
through the membrane. Prints the step trace; denied accesses and module
outcomes go to the audit log.

Without --db the audit log lives in memory and is discarded.

Examples:
  membrane run ./scenarios/frozen.yaml
  membrane run ./scenarios/frozen.yaml --db ./audit.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite audit database (default: in-memory)")
	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(path); err != nil {
		return formatter.reportError(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenario file not found: %s", path), nil)
	}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.reportError(ExitFailure, ErrCodeParse, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr()))}
	if opts.Database != "" {
		runOpts = append(runOpts, harness.WithDB(opts.Database))
	}
	formatter.VerboseLog("Running %s (%d steps)", scenario.Name, len(scenario.Steps))

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return formatter.reportError(ExitCommandError, ErrCodeGeneric, "failed to run scenario", err)
	}

	out := RunResult{
		Scenario: scenario.Name,
		Session:  result.Session,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Errors:   result.Errors,
	}
	if formatter.JSON() {
		if !out.Pass {
			if err := formatter.Fail(out, ErrCodeScenarioFail, fmt.Sprintf("scenario %s failed", scenario.Name)); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
		}
		return formatter.Success(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scenario: %s (session %s)\n", scenario.Name, result.Session)
	for _, e := range result.Trace {
		writeTraceEvent(w, e)
	}
	if !out.Pass {
		fmt.Fprintln(w)
		for _, msg := range out.Errors {
			fmt.Fprintf(w, "✗ %s\n", msg)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	fmt.Fprintln(w, "\n✓ Scenario passed")
	return nil
}

// writeTraceEvent prints one step as "[seq] op target.name -> result".
func writeTraceEvent(w io.Writer, e harness.TraceEvent) {
	subject := e.Target
	if e.Name != "" {
		subject = strings.TrimPrefix(subject+"."+e.Name, ".")
	}
	outcome := fmt.Sprintf("%v", e.Result)
	if e.Error != "" {
		outcome = "error " + e.Error
	}
	fmt.Fprintf(w, "  [%d] %s %s -> %s\n", e.Seq, e.Op, subject, outcome)
	for _, f := range e.Faults {
		fmt.Fprintf(w, "      denied %s %q (%s)\n", f.Op, f.Name, f.Code)
	}
}
