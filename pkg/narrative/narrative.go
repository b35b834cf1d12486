// Package narrative turns executed results into the facts-only prompt for
// the answer text, and derives citations from the relations a query read.
package narrative

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nnnkkk7/agriqa/pkg/config"
	"github.com/nnnkkk7/agriqa/pkg/query"
)

// MaxFactRows caps the rows per unit that are sent as facts.
const MaxFactRows = 50

// UnknownFile is cited for relations with no known dataset file.
const UnknownFile = "(view or table)"

// System is the system message for answer composition.
const System = "You compose short factual summaries for an agriculture and climate Q&A service. " +
	"Do NOT invent numbers. Use ONLY the facts provided."

// Citation ties a relation read by the query to the dataset file behind it.
type Citation struct {
	Source string `json:"source"`
	File   string `json:"file"`
}

// Citations returns one citation per source, in the given order.
func Citations(sources []string) []Citation {
	files := config.DatasetFiles()
	out := make([]Citation, 0, len(sources))
	for _, s := range sources {
		file, ok := files[strings.ToLower(s)]
		if !ok {
			file = UnknownFile
		}
		out = append(out, Citation{Source: s, File: file})
	}
	return out
}

type unitFacts struct {
	Label string           `json:"label"`
	Rows  []map[string]any `json:"rows,omitempty"`
	Error string           `json:"error,omitempty"`
}

// Facts renders the unit results as JSON records, at most MaxFactRows per
// unit. A failed unit contributes its error message instead of rows.
func Facts(results []query.StatementResult) string {
	facts := make([]unitFacts, 0, len(results))
	for _, r := range results {
		f := unitFacts{Label: r.Label}
		if !r.OK() {
			f.Error = "no rows: " + r.Err.Error()
			facts = append(facts, f)
			continue
		}
		for i, row := range r.Table.Rows {
			if i == MaxFactRows {
				break
			}
			rec := make(map[string]any, len(row))
			for j, v := range row {
				rec[r.Table.Columns[j]] = v
			}
			f.Rows = append(f.Rows, rec)
		}
		facts = append(facts, f)
	}

	b, err := json.Marshal(facts)
	if err != nil {
		return fmt.Sprintf("%v", facts)
	}
	return string(b)
}

// Prompt builds the user prompt asking for a 3-6 sentence answer that cites
// a source after every numeric claim.
func Prompt(question, sql, facts string, sources []string) string {
	list := strings.Join(sources, ", ")
	if list == "" {
		list = "(none detected)"
	}
	return fmt.Sprintf(`facts = %s
sql = %s
question = %s
sources = %s

Write a short answer (3-6 sentences). After each numeric claim, include a parenthetical citation like (source: <view-name>). Only use these sources: %s.
Return only text.`, facts, sql, question, list, list)
}
