// Package querysql compiles journal queries to parameterized SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/queryir"
)

// Columns lists the selected commit_ops columns in result order.
var Columns = []string{
	"seq", "position", "kind", "node_id", "coords",
	"idx", "transformation_index", "definition", "status",
}

// Compile renders q as a SELECT over commit_ops. Values are always bound as
// parameters, never interpolated. Rows are ordered by seq, then position.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(Columns, ", "))
	b.WriteString(" FROM commit_ops")

	var params []any
	if q.Filter != nil {
		where, ps, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = ps
	}

	b.WriteString(" ORDER BY seq ASC, position ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch p := p.(type) {
	case queryir.Equals:
		return comparison(p.Field, "=", p.Value)
	case queryir.NotEquals:
		return comparison(p.Field, "<>", p.Value)
	case queryir.AtLeast:
		return fmt.Sprintf("%s >= ?", p.Field), []any{p.Value}, nil
	case queryir.And:
		if len(p.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(p.Predicates))
		var params []any
		for _, c := range p.Predicates {
			sql, ps, err := compilePredicate(c)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, ps...)
		}
		if len(parts) == 1 {
			return parts[0], params, nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func comparison(f queryir.Field, op string, v ir.Value) (string, []any, error) {
	param, err := toParam(v)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", f, err)
	}
	return fmt.Sprintf("%s %s ?", f, op), []any{param}, nil
}

// toParam converts a value to its SQL parameter. Numbers are bound as
// integers, since every numeric journal column is one.
func toParam(v ir.Value) (any, error) {
	switch v := v.(type) {
	case ir.String:
		return string(v), nil
	case ir.Number:
		return int64(v), nil
	default:
		return nil, fmt.Errorf("%s values cannot be bound", v.Kind())
	}
}
