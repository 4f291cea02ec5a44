package model

import (
	"strings"
	"unicode"
)

// labelAcronyms are rendered upper-case wherever they appear as a word.
var labelAcronyms = map[string]string{
	"dot":  "DOT",
	"ein":  "EIN",
	"fein": "FEIN",
	"id":   "ID",
	"llc":  "LLC",
	"mc":   "MC",
	"tnc":  "TNC",
	"url":  "URL",
	"usd":  "USD",
	"vin":  "VIN",
}

// DefaultLabeler turns a field key, dotted path or group item path into a
// sentence-case label: "contact.firstName" and "vehicles.2.vin" label their
// last named segment ("First name", "VIN"). Words split on underscores,
// dashes, spaces, camelCase and letter/digit boundaries.
func DefaultLabeler(key string) string {
	words := labelWords(labelSegment(key))
	for i, word := range words {
		lower := strings.ToLower(word)
		switch acronym, ok := labelAcronyms[lower]; {
		case ok:
			words[i] = acronym
		case i == 0:
			runes := []rune(lower)
			runes[0] = unicode.ToUpper(runes[0])
			words[i] = string(runes)
		default:
			words[i] = lower
		}
	}
	return strings.Join(words, " ")
}

// labelSegment returns the last segment of a dotted path that is not an item
// index.
func labelSegment(key string) string {
	segments := strings.Split(strings.TrimSpace(key), ".")
	for i := len(segments) - 1; i >= 0; i-- {
		if s := segments[i]; s != "" && strings.TrimLeftFunc(s, unicode.IsDigit) != "" {
			return s
		}
	}
	return ""
}

func labelWords(s string) []string {
	var (
		words   []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			flush()
			continue
		}
		if i > 0 && len(current) > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r),
				unicode.IsLetter(prev) && unicode.IsDigit(r),
				unicode.IsDigit(prev) && unicode.IsLetter(r):
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	return words
}
