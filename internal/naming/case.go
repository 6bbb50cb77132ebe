package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholder is returned whenever a name transform strips every rune.
const Placeholder = "_"

// CamelCase converts s to lower-camel-case, dropping every rune that is not a
// letter, digit or '$'. It never returns an empty string.
func CamelCase(s string) string {
	return joinWords(splitWords(s), false)
}

// PascalCase converts s to upper-camel-case with the same stripping rules as CamelCase.
func PascalCase(s string) string {
	return joinWords(splitWords(s), true)
}

func joinWords(words []string, upperFirst bool) string {
	if len(words) == 0 {
		return Placeholder
	}

	// Casers carry state and must not be shared between goroutines.
	titleCaser := cases.Title(language.Und)
	lowerCaser := cases.Lower(language.Und)

	var b strings.Builder
	for i, w := range words {
		if i == 0 && !upperFirst {
			b.WriteString(lowerCaser.String(w))
			continue
		}
		b.WriteString(titleCaser.String(w))
	}

	out := b.String()
	if out == "" {
		return Placeholder
	}
	if unicode.IsDigit(rune(out[0])) {
		return "_" + out
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '$'
}

// splitWords breaks s on separators and on case boundaries:
// "getPetByID" -> [get Pet By ID], "URLValue" -> [URL Value].
func splitWords(s string) []string {
	var words []string
	for _, chunk := range strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) }) {
		runes := []rune(chunk)
		start := 0
		for i := 1; i < len(runes); i++ {
			prev, cur := runes[i-1], runes[i]
			boundary := unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev))
			if !boundary && unicode.IsUpper(prev) && unicode.IsUpper(cur) &&
				i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				boundary = true
			}
			if boundary {
				words = append(words, string(runes[start:i]))
				start = i
			}
		}
		words = append(words, string(runes[start:]))
	}
	return words
}
