// Package languages holds the fixed table of target languages offered to users.
//
// Prompts sent to the vision model carry the display name; the asynchronous
// translation API receives the code.
package languages

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is one selectable entry.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var supported = []Language{
	{Code: "en", Name: "English"},
	{Code: "vi", Name: "Vietnamese"},
	{Code: "zh", Name: "Simplified Chinese"},
	{Code: "th", Name: "Thai"},
	{Code: "ko", Name: "Korean"},
	{Code: "ja", Name: "Japanese"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "ar", Name: "Arabic"},
	{Code: "ru", Name: "Russian"},
}

var (
	byCode  = map[string]Language{}
	byName  = map[string]Language{}
	matcher language.Matcher
)

func init() {
	tags := make([]language.Tag, 0, len(supported))
	for _, lang := range supported {
		byCode[lang.Code] = lang
		byName[strings.ToLower(lang.Name)] = lang
		tags = append(tags, language.Make(lang.Code))
	}
	matcher = language.NewMatcher(tags)
}

// All returns a copy of the table in display order.
func All() []Language {
	return append([]Language{}, supported...)
}

// Resolve accepts a display name ("French"), a code ("fr") or a regional
// BCP 47 tag ("fr-CA", "zh_CN") and returns the matching table entry.
func Resolve(value string) (Language, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Language{}, false
	}
	if lang, ok := byName[strings.ToLower(trimmed)]; ok {
		return lang, true
	}
	if lang, ok := byCode[strings.ToLower(trimmed)]; ok {
		return lang, true
	}

	tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return Language{}, false
	}
	_, index, confidence := matcher.Match(tag)
	if confidence < language.High {
		return Language{}, false
	}
	return supported[index], true
}
