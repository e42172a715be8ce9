package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

func TestValidate_Accepts(t *testing.T) {
	tests := []struct {
		name string
		q    Query
	}{
		{"empty", Query{}},
		{"kind", Query{Filter: OfKind(ir.OpAddNode)}},
		{"node", Query{Filter: ForNode("n-0001"), Limit: 5}},
		{"combined", Query{Filter: And{Predicates: []Predicate{FromSeq(2), Failed()}}}},
		{"empty and", Query{Filter: And{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.q))
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"unknown field", Query{Filter: Equals{Field: "definition", Value: ir.String("x")}}, `unknown field "definition"`},
		{"wrong kind", Query{Filter: Equals{Field: FieldSeq, Value: ir.String("3")}}, "seq compares against a number, got string"},
		{"fraction", Query{Filter: NotEquals{Field: FieldStatus, Value: ir.Number(0.5)}}, "status needs an integer, got 0.5"},
		{"missing value", Query{Filter: Equals{Field: FieldKind}}, "kind needs a value"},
		{"string bound", Query{Filter: AtLeast{Field: FieldNode, Value: 1}}, "node_id is not numeric"},
		{"nil in and", Query{Filter: And{Predicates: []Predicate{OfKind(ir.OpAddNode), nil}}}, "filter[1]: nil predicate"},
		{"negative limit", Query{Limit: -1}, "limit -1 is negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.q)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	err := Validate(Query{
		Limit: -2,
		Filter: And{Predicates: []Predicate{
			Equals{Field: "bogus", Value: ir.String("x")},
			Equals{Field: FieldKind, Value: ir.Bool(true)},
		}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit -2")
	assert.Contains(t, err.Error(), `filter[0]: unknown field "bogus"`)
	assert.Contains(t, err.Error(), "filter[1]: kind compares against a string, got bool")
}

func TestAllOf(t *testing.T) {
	assert.Nil(t, AllOf(nil, nil))
	assert.Equal(t, Failed(), AllOf(nil, Failed()))
	assert.Equal(t, And{Predicates: []Predicate{FromSeq(1), Failed()}}, AllOf(FromSeq(1), nil, Failed()))
}
