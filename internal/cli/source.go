package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/Ameobea/noise-asmjs/internal/compiler"
	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/schema"
	"github.com/Ameobea/noise-asmjs/internal/store"
)

// loadComposition reads a composition file. A missing file is a command
// error; a file that does not parse is a check failure.
func loadComposition(f *OutputFormatter, path string) (ir.NodeDef, error) {
	def, err := compiler.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ir.NodeDef{}, f.fail(ExitCommandError, ErrCodeLoad, fmt.Sprintf("composition not found: %s", path), nil)
	}
	if err != nil {
		return ir.NodeDef{}, f.fail(ExitFailure, ErrCodeInvalid, fmt.Sprintf("invalid composition %s", path), err)
	}
	return def, nil
}

// openStore opens the database at path. An empty path is a command error.
func openStore(f *OutputFormatter, path string) (*store.Store, error) {
	if path == "" {
		return nil, f.fail(ExitCommandError, ErrCodeStore, "--db is required", nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, f.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}

// loadSaved reads a composition from the library.
func loadSaved(ctx context.Context, f *OutputFormatter, st *store.Store, name string) (ir.NodeDef, store.CompositionInfo, error) {
	def, info, err := st.LoadComposition(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return ir.NodeDef{}, info, f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no saved composition %q", name), nil)
	}
	if err != nil {
		return ir.NodeDef{}, info, f.fail(ExitCommandError, ErrCodeStore, "failed to load composition", err)
	}
	return def, info, nil
}

// outline renders the module tree of def with module titles, one module
// per line.
func outline(def ir.NodeDef) string {
	var b strings.Builder
	var walk func(n ir.NodeDef, depth int)
	walk = func(n ir.NodeDef, depth int) {
		moduleType := settingString(n, schema.KeyModuleType)
		title := moduleType
		if mt, ok := schema.LookupModuleType(moduleType); ok {
			title = mt.Name
		}
		fmt.Fprintf(&b, "%s%s", strings.Repeat("  ", depth), title)
		if n.ID != "" && n.ID != ir.RootID {
			fmt.Fprintf(&b, " [%s]", n.ID)
		}
		for _, c := range n.Children {
			if c.Type == ir.TypeCompositionScheme {
				fmt.Fprintf(&b, " (%s)", settingString(c, schema.KeyCompositionScheme))
			}
		}
		for _, c := range n.Children {
			if c.Type != ir.TypeInputTransformations {
				continue
			}
			for _, tr := range c.Children {
				fmt.Fprintf(&b, " +%s", settingString(tr, schema.KeyInputTransformationType))
			}
		}
		b.WriteString("\n")
		for _, c := range n.Children {
			if c.Type == ir.TypeNoiseModule {
				walk(c, depth+1)
			}
		}
	}
	walk(def, 0)
	return b.String()
}

func settingString(n ir.NodeDef, key string) string {
	for _, s := range n.Settings {
		if s.Key == key {
			return ir.FormatValue(s.Value)
		}
	}
	return "?"
}
