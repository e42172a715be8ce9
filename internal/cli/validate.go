package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ameobea/noise-asmjs/internal/compiler"
	"github.com/Ameobea/noise-asmjs/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Nodes    int                        `json:"nodes"`
	Findings []compiler.ValidationError `json:"findings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <composition>",
		Short: "Check a composition file against the node schema",
		Long: `Parse a JSON, YAML or CUE composition and check it against the node
schema: node placement, setting keys and values, composition schemes and
weights.

Warnings are reported but do not fail validation.

Exit codes:
  0 - Composition is valid
  1 - Composition does not parse or has errors
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	def, err := loadComposition(formatter, path)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Loaded %d node(s) from %s", def.Count(), path)

	reg := schema.NewRegistry(schema.WithLogger(newLogger(opts, cmd.ErrOrStderr())))
	findings := compiler.Validate(def, reg)
	result := ValidationResult{
		Valid:    !compiler.HasErrors(findings),
		Nodes:    def.Count(),
		Findings: findings,
	}

	if formatter.JSON() {
		if !result.Valid {
			_ = formatter.Failure(ErrCodeInvalid, fmt.Sprintf("%s is invalid", path), result)
			return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", len(findings)))
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, f := range findings {
		fmt.Fprintf(w, "%s %s %s: %s\n", f.Severity, f.Code, f.Path, f.Message)
	}
	if !result.Valid {
		fmt.Fprintf(w, "✗ %s is invalid\n", path)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", len(findings)))
	}
	fmt.Fprintf(w, "✓ %s is valid (%d nodes)\n", path, result.Nodes)
	return nil
}
