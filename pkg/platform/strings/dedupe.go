// Package strings provides slice helpers for list-valued settings.
package strings

import (
	"strings"
)

// Dedupe trims each value, applies fold when non-nil, drops blanks and keeps
// the first occurrence of each result. Order is preserved.
func Dedupe(values []string, fold func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold != nil {
			v = fold(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DedupeFold is Dedupe with case folding, used for domain suffixes.
//
//	DedupeFold([]string{" .ANT", ".ant", ".Autonomi"}) // [".ant" ".autonomi"]
func DedupeFold(values []string) []string {
	return Dedupe(values, strings.ToLower)
}
