package cli

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/queryir"
	"github.com/roach88/membrane/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Op       string // fault filters
	Code     string
	Module   string // outcome filters
	Failed   bool
	Since    int64
}

// faultFilter reports whether any fault-only filter is set.
func (o *TraceOptions) faultFilter() bool { return o.Op != "" || o.Code != "" }

// outcomeFilter reports whether any outcome-only filter is set.
func (o *TraceOptions) outcomeFilter() bool { return o.Module != "" || o.Failed }

// TimelineEntry is one audit row, either a module outcome or a denial.
type TimelineEntry struct {
	Seq     int64                `json:"seq"`
	Kind    string               `json:"kind"` // "outcome" or "fault"
	Session string               `json:"session"`
	Outcome *store.OutcomeRecord `json:"outcome,omitempty"`
	Fault   *store.FaultRecord   `json:"fault,omitempty"`
}

// TraceStats summarizes a timeline.
type TraceStats struct {
	Outcomes int `json:"outcomes"`
	Failures int `json:"failures"`
	Faults   int `json:"faults"`
}

// TraceResult is the JSON payload of the trace command.
type TraceResult struct {
	Sessions []string        `json:"sessions"`
	Timeline []TimelineEntry `json:"timeline"`
	Stats    TraceStats      `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the audit log of module outcomes and denials",
		Long: `Read an audit database written by "membrane run --db" and print
module outcomes and access denials as one timeline ordered by seq.

--op and --code select denials only; --module and --failed select
outcomes only. --since keeps rows recorded after the given seq.

Examples:
  membrane trace --db ./audit.db
  membrane trace --db ./audit.db --session golden
  membrane trace --db ./audit.db --code NOT_SETTABLE
  membrane trace --db ./audit.db --failed --since 120
  membrane trace --db ./audit.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite audit database (required)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "only show this session")
	cmd.Flags().StringVar(&opts.Op, "op", "", "only show denials of this operation (read|call|set|delete)")
	cmd.Flags().StringVar(&opts.Code, "code", "", "only show denials with this error code")
	cmd.Flags().StringVar(&opts.Module, "module", "", "only show outcomes of this module")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only show failed outcomes")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only show rows after this seq")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// store.Open would create a missing database.
	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.reportError(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
	}
	st, err := store.Open(opts.Database, store.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))
	if err != nil {
		return formatter.reportError(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	result, err := readTrace(cmd.Context(), st, opts)
	if err != nil {
		return formatter.reportError(ExitCommandError, ErrCodeDatabase, "failed to read audit log", err)
	}
	formatter.VerboseLog("Read %d rows from %s", len(result.Timeline), opts.Database)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	writeTraceText(cmd.OutOrStdout(), result)
	return nil
}

func readTrace(ctx context.Context, st *store.Store, opts *TraceOptions) (*TraceResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var since queryir.Predicate
	if opts.Since > 0 {
		since = queryir.After{Seq: opts.Since}
	}

	outcomes := []store.OutcomeRecord{}
	if !opts.faultFilter() || opts.outcomeFilter() {
		var failed queryir.Predicate
		if opts.Failed {
			failed = queryir.Equals{Field: "success", Value: ir.Bool(false)}
		}
		var err error
		outcomes, err = st.QueryOutcomes(ctx, queryir.Select{
			From:   queryir.TableOutcomes,
			Filter: queryir.All(queryir.Eq("session", opts.Session), queryir.Eq("module_id", opts.Module), failed, since),
		})
		if err != nil {
			return nil, err
		}
	}

	faults := []store.FaultRecord{}
	if !opts.outcomeFilter() || opts.faultFilter() {
		var err error
		faults, err = st.QueryFaults(ctx, queryir.Select{
			From:   queryir.TableFaults,
			Filter: queryir.All(queryir.Eq("session", opts.Session), queryir.Eq("op", opts.Op), queryir.Eq("code", opts.Code), since),
		})
		if err != nil {
			return nil, err
		}
	}

	sessions, err := st.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Session != "" {
		sessions = slices.DeleteFunc(sessions, func(s string) bool { return s != opts.Session })
	}

	result := &TraceResult{
		Sessions: sessions,
		Timeline: make([]TimelineEntry, 0, len(outcomes)+len(faults)),
	}
	for i := range outcomes {
		o := &outcomes[i]
		result.Timeline = append(result.Timeline, TimelineEntry{Seq: o.Seq, Kind: "outcome", Session: o.Session, Outcome: o})
		result.Stats.Outcomes++
		if !o.Success {
			result.Stats.Failures++
		}
	}
	for i := range faults {
		f := &faults[i]
		result.Timeline = append(result.Timeline, TimelineEntry{Seq: f.Seq, Kind: "fault", Session: f.Session, Fault: f})
		result.Stats.Faults++
	}
	slices.SortFunc(result.Timeline, func(a, b TimelineEntry) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return result, nil
}

func writeTraceText(w io.Writer, result *TraceResult) {
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No audit records found.")
		return
	}

	current := ""
	for _, e := range result.Timeline {
		if e.Session != current {
			current = e.Session
			fmt.Fprintf(w, "Session %s\n", current)
		}
		switch e.Kind {
		case "outcome":
			o := e.Outcome
			if o.Success {
				fmt.Fprintf(w, "  [%d] module %s -> %s\n", o.Seq, o.ModuleID, o.Describe)
			} else {
				fmt.Fprintf(w, "  [%d] module %s failed: %s\n", o.Seq, o.ModuleID, o.Error)
			}
		case "fault":
			f := e.Fault
			fmt.Fprintf(w, "  [%d] denied %s %s.%s (%s)\n", f.Seq, f.Op, f.Object, f.Name, f.Code)
		}
	}
	fmt.Fprintf(w, "\n%d outcomes (%d failed), %d faults\n", result.Stats.Outcomes, result.Stats.Failures, result.Stats.Faults)
}
