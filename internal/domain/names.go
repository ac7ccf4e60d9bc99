package domain

import "strings"

// ConvertIDToName turns a snake_case game identifier into a display name.
// Words equal to removePrefix are dropped, the rest are capitalized:
// ConvertIDToName("gov_military_dictatorship", "gov") == "Military Dictatorship".
// Pass "" to keep every word.
func ConvertIDToName(objectID string, removePrefix string) string {
	parts := strings.Split(objectID, "_")
	words := make([]string, 0, len(parts))
	for _, word := range parts {
		if word == "" || word == removePrefix {
			continue
		}
		words = append(words, capitalize(word))
	}
	return strings.Join(words, " ")
}

// capitalize uppercases the first rune and lowercases the rest.
func capitalize(word string) string {
	runes := []rune(word)
	out := strings.ToUpper(string(runes[0]))
	if len(runes) > 1 {
		out += strings.ToLower(string(runes[1:]))
	}
	return out
}
