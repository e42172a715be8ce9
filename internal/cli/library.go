package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ameobea/noise-asmjs/internal/store"
)

// LibraryOptions holds flags shared by the library commands.
type LibraryOptions struct {
	*RootOptions
	Database string
}

// SaveResult reports a saved composition.
type SaveResult struct {
	Name  string `json:"name"`
	Hash  string `json:"hash"`
	Nodes int    `json:"nodes"`
}

// ListResult holds the saved compositions.
type ListResult struct {
	Compositions []store.CompositionInfo `json:"compositions"`
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LibraryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <name> <composition>",
		Short: "Save a composition to the library",
		Long: `Store a composition file in the database under a name, replacing any
composition saved with that name. Saved compositions can be shown by name
and used as the starting tree of edit scripts.

Example:
  noisecomp save --db ./noise.db terrain ./terrain.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSave(opts *LibraryOptions, name, path string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	def, err := loadComposition(formatter, path)
	if err != nil {
		return err
	}
	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	seq, err := st.LastSeq(ctx)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to read journal", err)
	}
	hash, err := st.SaveComposition(ctx, name, def, seq)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to save composition", err)
	}

	result := SaveResult{Name: name, Hash: hash, Nodes: def.Count()}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ saved %s (%d nodes, %s)\n", name, result.Nodes, hash)
	return nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LibraryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List saved compositions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runList(opts *LibraryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListCompositions(context.Background())
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to list compositions", err)
	}

	if formatter.JSON() {
		return formatter.Success(ListResult{Compositions: infos})
	}
	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No saved compositions.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%-20s %4d nodes  seq %-4d %s\n", info.Name, info.Nodes, info.SavedSeq, info.Hash)
	}
	return nil
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LibraryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "remove <name>",
		Short:         "Remove a saved composition",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd)
			st, err := openStore(formatter, opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			err = st.DeleteComposition(context.Background(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no saved composition %q", args[0]), nil)
			}
			if err != nil {
				return formatter.fail(ExitCommandError, ErrCodeStore, "failed to remove composition", err)
			}
			if formatter.JSON() {
				return formatter.Success(map[string]string{"removed": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ removed %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}
