package schema

import (
	"fmt"

	"github.com/Ameobea/noise-asmjs/internal/entities"
	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Context is the evaluation context handed to descriptor fields: the node,
// its resolved settings and children, its parent, and the whole snapshot.
type Context struct {
	Node     ir.Node
	Settings []ir.Setting
	Children []ir.Node
	Parent   *ir.Node
	Snapshot *entities.Snapshot
	IDs      ir.IDGenerator

	report func(ir.Diagnostic)
}

// Setting returns the first setting with key. A second setting with the same
// key is reported as a diagnostic; the first still wins.
func (c Context) Setting(key string) (ir.Setting, bool) {
	var found ir.Setting
	ok := false
	for _, st := range c.Settings {
		if st.Key != key {
			continue
		}
		if ok {
			if c.report != nil {
				c.report(ir.Diagnostic{
					Code:    ir.DiagDuplicateSetting,
					NodeID:  c.Node.ID,
					Message: fmt.Sprintf("multiple settings with key %q; using %s", key, found.ID),
				})
			}
			break
		}
		found, ok = st, true
	}
	return found, ok
}

// Value returns the value of the first setting with key.
func (c Context) Value(key string) (ir.Value, bool) {
	st, ok := c.Setting(key)
	if !ok {
		return nil, false
	}
	return st.Value, true
}

// StringValue returns the string setting key, or fallback when it is absent
// or not a string.
func (c Context) StringValue(key, fallback string) string {
	v, ok := c.Value(key)
	if !ok {
		return fallback
	}
	s, ok := v.(ir.String)
	if !ok {
		return fallback
	}
	return string(s)
}

// HasChild reports whether the node has a child of type t.
func (c Context) HasChild(t ir.NodeType) bool {
	for _, child := range c.Children {
		if child.Type == t {
			return true
		}
	}
	return false
}

// Siblings returns the ids of the parent's children of type t, in order.
// The node itself is included when it matches.
func (c Context) Siblings(t ir.NodeType) []ir.NodeID {
	if c.Parent == nil {
		return nil
	}
	var out []ir.NodeID
	for _, id := range c.Parent.Children {
		n, ok := c.Snapshot.Node(id)
		if ok && n.Type == t {
			out = append(out, id)
		}
	}
	return out
}

// Field is a descriptor field that is either a constant or a function of the
// evaluation context.
type Field[T any] interface {
	Resolve(ctx Context) T
}

// Const is a Field with a fixed value.
type Const[T any] struct {
	V T
}

// Resolve returns the constant.
func (c Const[T]) Resolve(Context) T { return c.V }

// Func is a Field computed from the context.
type Func[T any] func(ctx Context) T

// Resolve calls the function.
func (f Func[T]) Resolve(ctx Context) T { return f(ctx) }

// Resolve evaluates field against ctx. A nil field yields T's zero value.
func Resolve[T any](field Field[T], ctx Context) T {
	if field == nil {
		var zero T
		return zero
	}
	return field.Resolve(ctx)
}
