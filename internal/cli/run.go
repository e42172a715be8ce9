package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Ameobea/noise-asmjs/internal/engine"
	"github.com/Ameobea/noise-asmjs/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Save     string
	Metrics  bool
}

// RunResult is the outcome of one edit script.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Trace    []harness.TraceEvent `json:"trace"`
	Final    string               `json:"final"`
	Errors   []string             `json:"errors,omitempty"`
	LastSeq  int64                `json:"last_seq,omitempty"`
	Saved    string               `json:"saved,omitempty"`
	Metrics  map[string]float64   `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run an edit script and print the backend calls",
		Long: `Run an edit script against the engine and the reference backend,
printing the backend calls each step caused and the final tree.

With --db every commit is appended to the journal, continuing its
sequence numbers, and --save stores the resulting composition in the
library. --metrics prints the engine's commit and op counters after
the run.

Examples:
  noisecomp run ./scenarios/weights.yaml
  noisecomp run --metrics ./scenarios/weights.yaml
  noisecomp run --db ./noise.db --save weights ./scenarios/weights.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for the commit journal")
	cmd.Flags().StringVar(&opts.Save, "save", "", "save the final composition under this name (needs --db)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report engine metrics after the run")

	return cmd
}

func runScript(opts *RunOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Save != "" && opts.Database == "" {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "--save needs --db", nil)
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLoad, "failed to load scenario", err)
	}

	runOpts := []harness.RunOption{harness.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr()))}
	var metrics *prometheus.Registry
	if opts.Metrics {
		metrics = prometheus.NewRegistry()
		runOpts = append(runOpts, harness.WithMetrics(engine.NewMetrics(metrics)))
	}
	if opts.Database != "" {
		st, err := openStore(formatter, opts.Database)
		if err != nil {
			return err
		}
		defer st.Close()

		last, err := st.LastSeq(ctx)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to read journal", err)
		}
		formatter.VerboseLog("Continuing journal after seq %d", last)
		runOpts = append(runOpts, harness.WithJournal(st), harness.WithClock(engine.NewClockAt(last)))

		return runAndReport(ctx, formatter, scenario, runOpts, metrics, func(res *harness.Result, out *RunResult) error {
			if opts.Save == "" {
				return nil
			}
			if _, err := st.SaveComposition(ctx, opts.Save, res.Composition, res.LastSeq); err != nil {
				return formatter.fail(ExitCommandError, ErrCodeStore, "failed to save composition", err)
			}
			out.Saved = opts.Save
			return nil
		})
	}
	return runAndReport(ctx, formatter, scenario, runOpts, metrics, nil)
}

func runAndReport(
	ctx context.Context,
	formatter *OutputFormatter,
	scenario *harness.Scenario,
	runOpts []harness.RunOption,
	metrics *prometheus.Registry,
	after func(*harness.Result, *RunResult) error,
) error {
	res, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeScenarioRun, "failed to start scenario", err)
	}

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     res.Pass,
		Trace:    res.Trace,
		Final:    res.Final,
		Errors:   res.Errors,
		LastSeq:  res.LastSeq,
	}
	if after != nil {
		if err := after(res, &out); err != nil {
			return err
		}
	}
	if metrics != nil {
		out.Metrics, err = gatherMetrics(metrics)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to gather metrics", err)
		}
	}

	if formatter.JSON() {
		if !out.Pass {
			_ = formatter.Failure(ErrCodeScenarioRun, fmt.Sprintf("scenario %s failed", scenario.Name), out)
			return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
		}
		return formatter.Success(out)
	}

	w := formatter.Writer
	for _, ev := range out.Trace {
		fmt.Fprintf(w, "%d. %s\n", ev.Step, ev.Action)
		for _, op := range ev.Ops {
			fmt.Fprintf(w, "     %s\n", op)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, out.Final)
	if out.Saved != "" {
		fmt.Fprintf(w, "saved as %s\n", out.Saved)
	}
	writeMetrics(w, out.Metrics)
	if !out.Pass {
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		fmt.Fprintf(w, "✗ %s\n", scenario.Name)
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	fmt.Fprintf(w, "✓ %s\n", scenario.Name)
	return nil
}
