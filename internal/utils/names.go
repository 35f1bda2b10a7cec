package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var nameCaser = cases.Title(language.English, cases.NoLower)

// NormalizeGuestName cleans up a scraped guest name: collapses whitespace
// and title-cases all-lower or all-upper names. Names with mixed casing
// (e.g. "McGregor") are left as scraped.
func NormalizeGuestName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}

	if name == strings.ToLower(name) || name == strings.ToUpper(name) {
		return nameCaser.String(strings.ToLower(name))
	}
	return name
}

// FirstName returns the first word of a guest name, for greeting lines
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
