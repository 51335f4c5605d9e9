package table

import (
	"strconv"

	"go.uber.org/zap"
)

// LeftJoin merges a secondary table onto the primary by the shared key
// column. Every primary row is retained; where no secondary row matches,
// the secondary's non-key columns are undefined. The result's row count
// equals the primary's and its schema is the primary's columns followed
// by the secondary's non-key columns.
//
// A missing key column on either side is a *SchemaError. Non-matching
// keys are expected data, not failures. If the secondary holds duplicate
// keys the first occurrence wins.
func LeftJoin(primary, secondary *Table, key string) (*Table, error) {
	pIdx, ok := primary.Schema.Index(key)
	if !ok {
		return nil, &SchemaError{Table: primary.Name, Column: key}
	}
	sIdx, ok := secondary.Schema.Index(key)
	if !ok {
		return nil, &SchemaError{Table: secondary.Name, Column: key}
	}

	// Secondary columns carried into the result, key excluded.
	var carried []int
	for i := range secondary.Schema {
		if i == sIdx {
			continue
		}
		carried = append(carried, i)
	}

	out := &Table{
		Name:   primary.Name,
		Schema: append(Schema(nil), primary.Schema...),
	}
	for _, i := range carried {
		out.Schema = append(out.Schema, secondary.Schema[i])
	}

	// Index secondary rows by key. First occurrence wins on duplicates.
	byKey := make(map[string]Row, len(secondary.Rows))
	dupes := 0
	for _, row := range secondary.Rows {
		k := keyString(row[sIdx])
		if k == "" {
			continue
		}
		if _, seen := byKey[k]; seen {
			dupes++
			continue
		}
		byKey[k] = row
	}
	if dupes > 0 {
		zap.L().Warn("join: duplicate keys in secondary table, keeping first occurrence",
			zap.String("table", secondary.Name),
			zap.String("key", key),
			zap.Int("duplicates", dupes),
		)
	}

	out.Rows = make([]Row, len(primary.Rows))
	for i, pRow := range primary.Rows {
		row := append(Row(nil), pRow...)
		match, found := byKey[keyString(pRow[pIdx])]
		for _, ci := range carried {
			if found {
				row = append(row, match[ci])
			} else {
				row = append(row, Undefined())
			}
		}
		out.Rows[i] = row
	}

	return out, nil
}

// JoinAll folds LeftJoin over several secondary tables in order.
func JoinAll(primary *Table, secondaries []*Table, key string) (*Table, error) {
	merged := primary
	for _, s := range secondaries {
		next, err := LeftJoin(merged, s, key)
		if err != nil {
			return nil, err
		}
		merged = next
	}
	return merged, nil
}

// keyString renders a key cell for map lookup. Undefined keys never match.
func keyString(v Value) string {
	switch v.Kind() {
	case KindString:
		s, _ := v.Text()
		return s
	case KindNumber:
		f, _ := v.Float()
		return formatNum(f)
	default:
		return ""
	}
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
