package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "Germany", expected: "germany"},
		{name: "diacritics", input: "Côte d'Ivoire", expected: "cote divoire"},
		{name: "curly apostrophe", input: "Côte d’Ivoire", expected: "cote divoire"},
		{name: "hyphen to space", input: "Guinea-Bissau", expected: "guinea bissau"},
		{name: "whitespace collapse", input: "  São   Tomé  ", expected: "sao tome"},
		{name: "punctuation stripped", input: "Korea, Rep.", expected: "korea rep"},
		{name: "empty", input: "", expected: ""},
		{name: "only spaces", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FoldKey(tt.input))
		})
	}
}

func TestFoldKeysJoinsAcrossSpellings(t *testing.T) {
	primary := New("countries", Schema{
		{Name: "name", Type: TypeString},
		{Name: "area", Type: TypeNumber},
	})
	require.NoError(t, primary.Append(Row{Str("Côte d'Ivoire"), Num(322463)}))

	secondary := New("pop", Schema{
		{Name: "name", Type: TypeString},
		{Name: "pop", Type: TypeNumber},
	})
	require.NoError(t, secondary.Append(Row{Str("Cote d'Ivoire"), Num(26000000)}))

	require.NoError(t, FoldKeys(primary, "name"))
	require.NoError(t, FoldKeys(secondary, "name"))

	merged, err := LeftJoin(primary, secondary, "name")
	require.NoError(t, err)

	v, err := merged.Value(0, "pop")
	require.NoError(t, err)
	assert.True(t, v.Defined())
}
