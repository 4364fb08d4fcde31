package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// HumanizeSlug turns a slug into a display title (27-ordu -> 27 Ordu)
func HumanizeSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_'
	})
	return cases.Title(language.Und).String(strings.Join(words, " "))
}
