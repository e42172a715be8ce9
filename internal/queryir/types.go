package queryir

import "github.com/Ameobea/noise-asmjs/internal/ir"

// Field names a journaled op attribute.
type Field string

const (
	FieldSeq    Field = "seq"
	FieldKind   Field = "kind"
	FieldNode   Field = "node_id"
	FieldStatus Field = "status"
)

// fieldKinds maps each field to the value kind it compares against.
var fieldKinds = map[Field]ir.ValueKind{
	FieldSeq:    ir.KindNumber,
	FieldKind:   ir.KindString,
	FieldNode:   ir.KindString,
	FieldStatus: ir.KindNumber,
}

// Known reports whether f is a filterable field.
func (f Field) Known() bool {
	_, ok := fieldKinds[f]
	return ok
}

// Predicate is a filter condition. Only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Equals matches ops whose Field equals Value.
type Equals struct {
	Field Field
	Value ir.Value
}

// NotEquals matches ops whose Field differs from Value.
type NotEquals struct {
	Field Field
	Value ir.Value
}

// AtLeast matches ops whose numeric Field is >= Value.
type AtLeast struct {
	Field Field
	Value int64
}

// And matches ops satisfying every predicate. An empty And matches all ops.
type And struct {
	Predicates []Predicate
}

func (Equals) predicateNode()    {}
func (NotEquals) predicateNode() {}
func (AtLeast) predicateNode()   {}
func (And) predicateNode()       {}

// Query selects journaled ops. A nil Filter matches every op; a zero Limit
// means no limit.
type Query struct {
	Filter Predicate
	Limit  int
}

// OfKind matches ops of kind k.
func OfKind(k ir.OpKind) Predicate {
	return Equals{Field: FieldKind, Value: ir.String(k)}
}

// ForNode matches ops built for node id.
func ForNode(id ir.NodeID) Predicate {
	return Equals{Field: FieldNode, Value: ir.String(id)}
}

// Failed matches ops the backend rejected.
func Failed() Predicate {
	return NotEquals{Field: FieldStatus, Value: ir.Number(ir.StatusOK)}
}

// FromSeq matches ops of commits with seq >= seq.
func FromSeq(seq int64) Predicate {
	return AtLeast{Field: FieldSeq, Value: seq}
}

// AllOf conjoins the non-nil predicates. It returns nil when none remain and
// the single predicate when only one does.
func AllOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
