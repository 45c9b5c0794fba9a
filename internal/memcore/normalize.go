package memcore

import "strings"

// NormalizeCategoryName applies the case-insensitive, whitespace-trimmed
// normalization used for category-name uniqueness within a scope.
func NormalizeCategoryName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
