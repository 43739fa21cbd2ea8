// Package strings provides list normalisation helpers for env values and
// request payloads.
package strings

import (
	"strings"
)

// SplitList splits a comma-separated value, trims every element and drops
// empties and repeats. Order of first appearance is preserved.
//
//	SplitList(" 5, 3,,5 ,1")
//	// Returns: []string{"5", "3", "1"}
func SplitList(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return dedupe(strings.Split(csv, ","), strings.TrimSpace)
}

// DedupeAndTrimLower trims and lowercases each element, dropping empties and
// repeats. Used for email lists, which compare case-insensitively.
//
//	DedupeAndTrimLower([]string{"  A@x.io ", "a@x.io", ""})
//	// Returns: []string{"a@x.io"}
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}
	return dedupe(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
