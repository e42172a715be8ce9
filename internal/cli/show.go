package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Name     string
}

// ShowResult describes a composition.
type ShowResult struct {
	Source  string `json:"source"`
	Hash    string `json:"hash"`
	Nodes   int    `json:"nodes"`
	Outline string `json:"outline"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [composition]",
		Short: "Print a composition's module tree",
		Long: `Print the module tree of a composition file, a saved composition
(--db with --name), or the default composition when neither is given.

Examples:
  noisecomp show ./terrain.yaml
  noisecomp show --db ./noise.db --name terrain
  noisecomp show --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runShow(opts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Name, "name", "", "saved composition to show")

	return cmd
}

func runShow(opts *ShowOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var def ir.NodeDef
	var source string
	switch {
	case path != "" && opts.Name != "":
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "give a file or --name, not both", nil)
	case opts.Name != "":
		st, err := openStore(formatter, opts.Database)
		if err != nil {
			return err
		}
		defer st.Close()
		def, _, err = loadSaved(context.Background(), formatter, st, opts.Name)
		if err != nil {
			return err
		}
		source = "library:" + opts.Name
	case path != "":
		var err error
		def, err = loadComposition(formatter, path)
		if err != nil {
			return err
		}
		source = path
	default:
		def, source = schema.DefaultTree(), "default"
	}

	hash, err := ir.DefinitionHash(def)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeInvalid, "unable to hash composition", err)
	}
	result := ShowResult{Source: source, Hash: hash, Nodes: def.Count(), Outline: outline(def)}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s (%d nodes, %s)\n", result.Source, result.Nodes, result.Hash)
	fmt.Fprint(w, result.Outline)
	return nil
}
