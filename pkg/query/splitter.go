package query

import "strings"

// SplitStatements splits sql on ';', trims each fragment and drops empty ones.
// Terminators inside string literals are not recognised; parameter grammars
// keep ';' out of substituted values.
func SplitStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
