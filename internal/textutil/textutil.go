// Package textutil holds small text normalization helpers shared by the
// harvester and the pipeline.
package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titler = cases.Title(language.English)

// NormalizeTitle collapses runs of whitespace and tames shouting titles.
// A title with no lowercase letters gets folded to English title case.
func NormalizeTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return title
	}
	if strings.ToUpper(title) == title && strings.ToLower(title) != title {
		return titler.String(strings.ToLower(title))
	}
	return title
}

// fileNameReplacer maps filesystem-unsafe characters to safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a name destined
// for artifact files. Separators become dashes; the rest are removed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}
