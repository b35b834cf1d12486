package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/nnnkkk7/agriqa/pkg/query"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// resolveFormat picks the output format. An empty format means table on a
// terminal and JSON otherwise.
func resolveFormat(format string, w io.Writer) (string, error) {
	switch format {
	case formatTable, formatJSON:
		return format, nil
	case "":
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return formatTable, nil
		}
		return formatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q: use 'table' or 'json'", format)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes rows under upper-cased headers, columns separated by two
// spaces. Nothing is written without columns.
func printTable(w io.Writer, columns []string, rows [][]string) {
	if len(columns) == 0 {
		return
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	writeLine := func(cells []string, upper bool) {
		var b strings.Builder
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if upper {
				cell = strings.ToUpper(cell)
			}
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(widths)-1 {
				b.WriteString(cell)
			} else {
				fmt.Fprintf(&b, "%-*s", widths[i], cell)
			}
		}
		fmt.Fprintln(w, b.String())
	}

	writeLine(columns, true)
	for _, row := range rows {
		writeLine(row, false)
	}
}

// unitOutput is the JSON form of one executed unit.
type unitOutput struct {
	Label    string     `json:"label"`
	SQL      string     `json:"sql"`
	Combined bool       `json:"combined"`
	Columns  []string   `json:"columns,omitempty"`
	Rows     [][]string `json:"rows,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func toUnitOutputs(results []query.StatementResult) []unitOutput {
	out := make([]unitOutput, 0, len(results))
	for _, r := range results {
		u := unitOutput{Label: r.Label, SQL: r.SQL, Combined: r.Combined}
		if r.OK() {
			if r.Table != nil {
				u.Columns = r.Table.Columns
				u.Rows = r.Table.StringRows()
			}
		} else {
			u.Error = r.Err.Error()
		}
		out = append(out, u)
	}
	return out
}

// printResults writes one titled table per unit; failed units print their
// error instead.
func printResults(w io.Writer, results []query.StatementResult) {
	for _, r := range results {
		fmt.Fprintf(w, "\n== %s ==\n", r.Label)
		if !r.OK() {
			fmt.Fprintf(w, "error: %v\n", r.Err)
			continue
		}
		if r.Table == nil {
			fmt.Fprintln(w, "(no result set)")
			continue
		}
		printTable(w, r.Table.Columns, r.Table.StringRows())
		fmt.Fprintf(w, "(%d rows)\n", r.Table.RowCount())
	}
}
