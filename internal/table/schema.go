package table

import "fmt"

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeNumber ColumnType = "number"
)

// Column is one named, typed field of a schema.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is an ordered list of columns. Column names are unique.
type Schema []Column

// Index returns the position of a column by name.
func (s Schema) Index(name string) (int, bool) {
	for i, c := range s {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Has reports whether the schema contains a column.
func (s Schema) Has(name string) bool {
	_, ok := s.Index(name)
	return ok
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// SchemaError reports a required key or column missing from a record set.
// It aborts the pipeline; there is no local recovery.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %q: missing required column %q", e.Table, e.Column)
}
