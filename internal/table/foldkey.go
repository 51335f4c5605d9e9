package table

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// foldTransformer decomposes to NFD, drops combining marks, and recomposes,
// so "Côte d'Ivoire" and "Cote d'Ivoire" fold to the same key.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldKey standardizes an entity name for key matching:
//  1. trim and lowercase
//  2. strip diacritics
//  3. drop punctuation
//  4. collapse runs of whitespace
//
// External attribute tables frequently spell the same entity differently
// ("Côte d'Ivoire" vs "Cote dIvoire"); folding both sides of a join makes
// those rows match instead of silently landing in the unmatched set.
func FoldKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(foldTransformer, name); err == nil {
		name = folded
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"’", "",
		"\"", "",
		"-", " ",
	).Replace(name)

	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(name, " "))
}

// FoldKeys rewrites a string key column in place with FoldKey applied to
// every defined cell. Call it on both sides of a join when key spellings
// come from different sources.
func FoldKeys(t *Table, column string) error {
	idx, ok := t.Schema.Index(column)
	if !ok {
		return &SchemaError{Table: t.Name, Column: column}
	}
	for _, row := range t.Rows {
		if s, isStr := row[idx].Text(); isStr {
			row[idx] = Str(FoldKey(s))
		}
	}
	return nil
}
