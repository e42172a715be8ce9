package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ameobea/noise-asmjs/internal/backend"
	"github.com/Ameobea/noise-asmjs/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	From     int64
}

// ReplayOutput is the replay result with the rebuilt tree.
type ReplayOutput struct {
	store.ReplayResult
	Tree string `json:"tree"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the commit journal into a fresh backend",
		Long: `Re-issue every journaled backend call, in order, against an empty
reference backend and check that each call gets the status it got when it
was first made. Prints the rebuilt tree.

Exit codes:
  0 - Every call reproduced its status
  1 - One or more calls answered differently
  2 - Command error (database not found, etc.)

Examples:
  noisecomp replay --db ./noise.db
  noisecomp replay --db ./noise.db --from 12 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.From, "from", 1, "first commit seq to replay")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	tree := backend.NewTree(backend.WithTreeLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))
	res, err := st.Replay(ctx, tree, opts.From)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "replay failed", err)
	}
	out := ReplayOutput{ReplayResult: res, Tree: tree.Describe()}

	if formatter.JSON() {
		if !res.OK() {
			msg := fmt.Sprintf("%d op(s) did not reproduce", len(res.Mismatches))
			_ = formatter.Failure(ErrCodeReplay, msg, out)
			return NewExitError(ExitFailure, msg)
		}
		return formatter.Success(out)
	}

	w := cmd.OutOrStdout()
	if res.Commits == 0 {
		fmt.Fprintln(w, "No commits found in database.")
		return nil
	}
	fmt.Fprintf(w, "Replay Summary: %d commit(s), %d op(s), last seq %d\n", res.Commits, res.Ops, res.LastSeq)
	if opts.Verbose {
		fmt.Fprintf(w, "Fingerprint: %s\n", res.Fingerprint)
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, out.Tree)
	fmt.Fprintln(w)

	if res.OK() {
		fmt.Fprintln(w, "✓ All ops reproduced")
		return nil
	}
	for _, m := range res.Mismatches {
		fmt.Fprintf(w, "  seq %d op %d (%s): status %d, journaled %d\n", m.Seq, m.Position, m.Kind, m.Got, m.Want)
	}
	fmt.Fprintln(w, "✗ Replay diverged from the journal")
	return NewExitError(ExitFailure, fmt.Sprintf("%d op(s) did not reproduce", len(res.Mismatches)))
}
