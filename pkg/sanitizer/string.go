package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims s and collapses every run of whitespace into a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		result.WriteRune(r)
		lastWasSpace = false
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeProvince title-cases a province or municipality as published in
// upper case by the registry ("VALLADOLID" -> "Valladolid").
func NormalizeProvince(s string) string {
	s = TrimAndNormalize(s)
	if s == "" {
		return ""
	}

	words := strings.Split(strings.ToLower(s), " ")
	for i, w := range words {
		if w == "" || isSpanishParticle(w) && i > 0 {
			continue
		}
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func isSpanishParticle(w string) bool {
	switch w {
	case "de", "del", "la", "las", "los", "el", "y":
		return true
	}
	return false
}

// NormalizePostalCode keeps digits only and left-pads to five digits.
func NormalizePostalCode(code string) string {
	var digits strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	if s == "" || len(s) > 5 {
		return s
	}
	return strings.Repeat("0", 5-len(s)) + s
}
