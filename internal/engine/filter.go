package engine

import "regexp"

// FilterEntities keeps the names matching pattern, preserving order. A nil
// pattern keeps every name.
func FilterEntities(names []string, pattern *regexp.Regexp) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if pattern != nil && !pattern.MatchString(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}
