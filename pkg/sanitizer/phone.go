package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion applies to numbers written without a country prefix.
const DefaultRegion = "ES"

// NormalizePhone returns the E.164 form of phone, or "" when it cannot be
// parsed into a valid number.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(phone, DefaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return ""
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}

// NormalizePhoneList handles registry fields holding several numbers
// ("983 123 456 / 600 123 456") and keeps the first valid one.
func NormalizePhoneList(phones string) string {
	for _, candidate := range strings.FieldsFunc(phones, func(r rune) bool {
		return r == '/' || r == ',' || r == ';' || r == '|'
	}) {
		if normalized := NormalizePhone(candidate); normalized != "" {
			return normalized
		}
	}
	return ""
}

func IsValidPhone(phone string) bool {
	parsed, err := phonenumbers.Parse(phone, DefaultRegion)
	return err == nil && phonenumbers.IsValidNumber(parsed)
}
