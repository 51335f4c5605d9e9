package table

import (
	"math"

	"github.com/rotisserie/eris"
)

// Op is a binary arithmetic operator for derived columns.
type Op string

const (
	OpDiv Op = "/"
	OpMul Op = "*"
	OpAdd Op = "+"
	OpSub Op = "-"
)

// Formula computes Result = Left <Op> Right over two numeric columns.
type Formula struct {
	Result string
	Left   string
	Right  string
	Op     Op
}

// Derive appends the formula's result column to a copy of the table.
// A row's result is undefined, never zero and never an error, when
// either input is undefined or the arithmetic is non-finite
// (division by zero, 0/0, overflow).
func Derive(t *Table, f Formula) (*Table, error) {
	lIdx, ok := t.Schema.Index(f.Left)
	if !ok {
		return nil, &SchemaError{Table: t.Name, Column: f.Left}
	}
	rIdx, ok := t.Schema.Index(f.Right)
	if !ok {
		return nil, &SchemaError{Table: t.Name, Column: f.Right}
	}
	if t.Schema.Has(f.Result) {
		return nil, eris.Errorf("table %q: derived column %q already exists", t.Name, f.Result)
	}

	out := t.clone(t.Name)
	out.Schema = append(out.Schema, Column{Name: f.Result, Type: TypeNumber})
	for i, row := range out.Rows {
		out.Rows[i] = append(row, applyFormula(row[lIdx], row[rIdx], f.Op))
	}
	return out, nil
}

func applyFormula(left, right Value, op Op) Value {
	l, lok := left.Float()
	r, rok := right.Float()
	if !lok || !rok {
		return Undefined()
	}

	var v float64
	switch op {
	case OpDiv:
		if r == 0 {
			return Undefined()
		}
		v = l / r
	case OpMul:
		v = l * r
	case OpAdd:
		v = l + r
	case OpSub:
		v = l - r
	default:
		return Undefined()
	}

	if math.IsInf(v, 0) || math.IsNaN(v) {
		return Undefined()
	}
	return Num(v)
}
