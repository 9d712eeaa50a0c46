package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonWordChars  = regexp.MustCompile(`[^a-z0-9\s]`)
	dashReplacer  = strings.NewReplacer("–", "-", "—", "-", "‐", "-", "‑", "-", "−", "-")
)

// NormalizeText lower-cases, unifies dash variants and collapses whitespace
func NormalizeText(s string) string {
	s = strings.ToLower(s)
	s = dashReplacer.Replace(s)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// CleanText is NormalizeText with every character other than a-z, 0-9 and
// whitespace replaced by a space
func CleanText(s string) string {
	s = NormalizeText(s)
	s = nonWordChars.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// ContainsPhrase reports whether phrase occurs in text on word boundaries.
// Both arguments are expected to be normalized already.
func ContainsPhrase(text, phrase string) bool {
	return IndexPhrase(text, phrase) >= 0
}

// IndexPhrase returns the byte offset of the first whole-word occurrence of
// phrase in text, or -1.
func IndexPhrase(text, phrase string) int {
	if phrase == "" {
		return -1
	}
	offset := 0
	for {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(phrase)
		if isBoundary(text, start-1) && isBoundary(text, end) {
			return start
		}
		offset = start + 1
	}
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := rune(text[i])
	return !(unicode.IsLetter(c) || unicode.IsDigit(c))
}

// TitleCase upper-cases the first letter of every space-separated word
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
