package scrape

import (
	"sort"
	"strings"
)

// specialChars escapes the characters with special meaning in HTML and XML markup.
// Apostrophes are kept as is.
var specialChars = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Escape returns s with markup special characters replaced by entities
func Escape(s string) string {
	return specialChars.Replace(s)
}

// Render substitutes every %name% placeholder in tmpl with its binding.
// Values must be escaped by the caller. Placeholders without a binding are left untouched
// and substituted values are never scanned for placeholders again.
func Render(tmpl string, bindings map[string]string) string {
	if tmpl == "" || len(bindings) == 0 {
		return tmpl
	}
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names)*2)
	for _, name := range names {
		pairs = append(pairs, "%"+name+"%", bindings[name])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
