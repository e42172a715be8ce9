package queryir

import (
	"errors"
	"fmt"
	"math"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Validate reports every problem in q, joined into one error, or nil.
func Validate(q Query) error {
	v := &validator{}
	if q.Limit < 0 {
		v.add("limit %d is negative", q.Limit)
	}
	if q.Filter != nil {
		v.predicate(q.Filter, "filter")
	}
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) add(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) predicate(p Predicate, path string) {
	switch p := p.(type) {
	case Equals:
		v.comparison(p.Field, p.Value, path)
	case NotEquals:
		v.comparison(p.Field, p.Value, path)
	case AtLeast:
		if !v.field(p.Field, path) {
			return
		}
		if fieldKinds[p.Field] != ir.KindNumber {
			v.add("%s: %s is not numeric", path, p.Field)
		}
	case And:
		for i, c := range p.Predicates {
			if c == nil {
				v.add("%s[%d]: nil predicate", path, i)
				continue
			}
			v.predicate(c, fmt.Sprintf("%s[%d]", path, i))
		}
	default:
		v.add("%s: unsupported predicate %T", path, p)
	}
}

func (v *validator) field(f Field, path string) bool {
	if !f.Known() {
		v.add("%s: unknown field %q", path, f)
		return false
	}
	return true
}

func (v *validator) comparison(f Field, val ir.Value, path string) {
	if !v.field(f, path) {
		return
	}
	if val == nil {
		v.add("%s: %s needs a value", path, f)
		return
	}
	want := fieldKinds[f]
	if val.Kind() != want {
		v.add("%s: %s compares against a %s, got %s", path, f, want, val.Kind())
		return
	}
	if n, ok := val.(ir.Number); ok && n != ir.Number(math.Trunc(float64(n))) {
		v.add("%s: %s needs an integer, got %s", path, f, ir.FormatValue(n))
	}
}
