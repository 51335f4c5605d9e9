// Package table implements typed in-memory record sets: explicit schemas,
// left outer joins by key, derived numeric columns, and definedness filtering.
package table

import (
	"math"

	"github.com/rotisserie/eris"
)

// ValueKind discriminates the states a cell can be in.
type ValueKind int

const (
	// KindUndefined marks an absent or uncomputable cell. It is a normal
	// data state, not an error: unmatched join columns and non-finite
	// derivations both produce it.
	KindUndefined ValueKind = iota
	KindNumber
	KindString
)

// Value is a tagged scalar cell. The zero value is undefined.
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

// Num returns a numeric Value. Non-finite inputs collapse to undefined so
// that Inf/NaN never leak into a record set.
func Num(f float64) Value {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Str returns a string Value.
func Str(s string) Value {
	return Value{kind: KindString, str: s}
}

// Undefined returns the explicit undefined Value.
func Undefined() Value {
	return Value{}
}

// Kind returns the value's kind.
func (v Value) Kind() ValueKind { return v.kind }

// Defined reports whether the value holds data.
func (v Value) Defined() bool { return v.kind != KindUndefined }

// Float returns the numeric content. ok is false for undefined or string cells.
func (v Value) Float() (f float64, ok bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Text returns the string content. ok is false for undefined or numeric cells.
func (v Value) Text() (s string, ok bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Row is one record; cells are positional against the table's schema.
type Row []Value

// Table is a named record set with an explicit schema.
// Tables are built once and treated as immutable afterwards: every
// transformation returns a new Table and leaves its input untouched.
type Table struct {
	Name   string
	Schema Schema
	Rows   []Row
}

// New creates an empty table with the given schema.
func New(name string, schema Schema) *Table {
	return &Table{Name: name, Schema: schema}
}

// Append adds a row. The row must match the schema width.
func (t *Table) Append(row Row) error {
	if len(row) != len(t.Schema) {
		return eris.Errorf("table %q: row width %d does not match schema width %d",
			t.Name, len(row), len(t.Schema))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the row count.
func (t *Table) Len() int { return len(t.Rows) }

// Value returns the cell at row i, column name. A missing column is a
// *SchemaError; an out-of-range row index is a plain error.
func (t *Table) Value(i int, column string) (Value, error) {
	idx, ok := t.Schema.Index(column)
	if !ok {
		return Value{}, &SchemaError{Table: t.Name, Column: column}
	}
	if i < 0 || i >= len(t.Rows) {
		return Value{}, eris.Errorf("table %q: row index %d out of range [0,%d)", t.Name, i, len(t.Rows))
	}
	return t.Rows[i][idx], nil
}

// Column returns every cell of one column in row order.
func (t *Table) Column(column string) ([]Value, error) {
	idx, ok := t.Schema.Index(column)
	if !ok {
		return nil, &SchemaError{Table: t.Name, Column: column}
	}
	out := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// clone copies the table's schema and rows so transformations never alias
// their input's backing arrays.
func (t *Table) clone(name string) *Table {
	out := &Table{Name: name, Schema: append(Schema(nil), t.Schema...)}
	out.Rows = make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append(Row(nil), row...)
	}
	return out
}
