package template

import (
	"fmt"
	"regexp"
	"sort"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render substitutes every {NAME} placeholder in text with the matching value
// from safe. Placeholders without a value render as the empty string. Values
// must already have passed params.ValidateAll.
func Render(text string, safe map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := safe[name]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

// Placeholders returns the distinct placeholder names in text, sorted.
func Placeholders(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing returns the placeholders in text that have no value in safe.
func Missing(text string, safe map[string]any) []string {
	var missing []string
	for _, name := range Placeholders(text) {
		if _, ok := safe[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
