// Package tags normalizes free-form label lists that end up inside hashed
// metadata.
package tags

import (
	"slices"
	"strings"
)

// Normalize trims, lowercases, drops empties and duplicates, and sorts. Two
// lists naming the same labels in any order or case normalize identically, so
// they hash identically once sealed. A nil input stays nil.
func Normalize(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
