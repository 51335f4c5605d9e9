package table

// FilterDefined returns the rows where the given column is defined.
// Used ahead of classification and of any output that needs a numeric value.
func FilterDefined(t *Table, column string) (*Table, error) {
	idx, ok := t.Schema.Index(column)
	if !ok {
		return nil, &SchemaError{Table: t.Name, Column: column}
	}
	out := &Table{Name: t.Name, Schema: append(Schema(nil), t.Schema...)}
	for _, row := range t.Rows {
		if row[idx].Defined() {
			out.Rows = append(out.Rows, append(Row(nil), row...))
		}
	}
	return out, nil
}

// Filter returns the rows satisfying the predicate. The predicate receives
// the table and the row index so it can look cells up by column name.
func Filter(t *Table, pred func(t *Table, i int) bool) *Table {
	out := &Table{Name: t.Name, Schema: append(Schema(nil), t.Schema...)}
	for i, row := range t.Rows {
		if pred(t, i) {
			out.Rows = append(out.Rows, append(Row(nil), row...))
		}
	}
	return out
}
