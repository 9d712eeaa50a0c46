package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "1-2m in jvc", NormalizeText("  1–2M   in\tJVC "))
	assert.Equal(t, "a-b", NormalizeText("A—B"))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "who is the ceo of marrfa", CleanText("Who is the CEO of Marrfa?"))
	assert.Equal(t, "t c", CleanText("T&C"))
}

func TestContainsPhrase(t *testing.T) {
	tests := []struct {
		text, phrase string
		want         bool
	}{
		{"apartments in dubai marina", "dubai marina", true},
		{"apartments in dubai marina", "marina", true},
		{"seaside home", "sea", false},
		{"rental listings", "rent", false},
		{"rent a flat", "rent", true},
		{"off-plan villas", "off-plan", true},
		{"", "x", false},
		{"x", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.phrase, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsPhrase(tt.text, tt.phrase))
		})
	}
}

func TestIndexPhrase_SkipsPartialMatches(t *testing.T) {
	assert.Equal(t, 10, IndexPhrase("abudhabi, dhabi", "dhabi"))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Al Barsha South", TitleCase("al barsha  south"))
	assert.Equal(t, "", TitleCase(""))
}
