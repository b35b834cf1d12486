package llm

import (
	"strings"
	"unicode/utf8"
)

const localSummaryWidth = 600

// LocalSummary is the deterministic reply used when no provider answers. It
// repeats facts verbatim, shortened, and never adds numbers of its own.
func LocalSummary(facts string) string {
	facts = strings.TrimSpace(facts)
	if facts == "" {
		return "LLM unavailable. A deterministic summary cannot be generated; " +
			"the numerical results and the executed SQL are shown for provenance."
	}
	if utf8.RuneCountInString(facts) > localSummaryWidth {
		facts = string([]rune(facts)[:localSummaryWidth]) + " ..."
	}
	return "LLM unavailable. Short factual summary:\n" + facts
}
