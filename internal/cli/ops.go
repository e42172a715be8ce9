package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/queryir"
	"github.com/Ameobea/noise-asmjs/internal/store"
)

// OpsOptions holds flags for the ops command.
type OpsOptions struct {
	*RootOptions
	Database string
	Kind     string
	Node     string
	Failed   bool
	From     int64
	Limit    int
}

// OpsResult holds the matching journal ops.
type OpsResult struct {
	Ops []store.OpRecord `json:"ops"`
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OpsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Search the journaled backend calls",
		Long: `List journaled backend calls in dispatch order, filtered by kind,
node or status. Filters combine.

Examples:
  noisecomp ops --db ./noise.db --failed
  noisecomp ops --db ./noise.db --kind add_node --from 3 --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only calls of this op kind")
	cmd.Flags().StringVar(&opts.Node, "node", "", "only calls built for this node id")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only calls the backend rejected")
	cmd.Flags().Int64Var(&opts.From, "from", 1, "first commit seq to search")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of calls (0 for all)")

	return cmd
}

func (o *OpsOptions) query() (queryir.Query, error) {
	var kind, node, failed queryir.Predicate
	if o.Kind != "" {
		k := ir.OpKind(o.Kind)
		if !k.Known() {
			return queryir.Query{}, fmt.Errorf("unknown op kind %q", o.Kind)
		}
		kind = queryir.OfKind(k)
	}
	if o.Node != "" {
		node = queryir.ForNode(ir.NodeID(o.Node))
	}
	if o.Failed {
		failed = queryir.Failed()
	}
	q := queryir.Query{
		Filter: queryir.AllOf(queryir.FromSeq(o.From), kind, node, failed),
		Limit:  o.Limit,
	}
	return q, queryir.Validate(q)
}

func runOps(opts *OpsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	q, err := opts.query()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeInvalid, err.Error(), nil)
	}
	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.QueryOps(ctx, q)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to query journal", err)
	}

	if formatter.JSON() {
		return formatter.Success(OpsResult{Ops: records})
	}
	w := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(w, "No matching ops.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(w, "%4d.%-3d %s\n", r.Seq, r.Position, r.Op)
	}
	return nil
}
