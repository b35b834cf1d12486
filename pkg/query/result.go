package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nnnkkk7/agriqa/server/types"
)

// Result is the row table produced by one statement.
type Result struct {
	Columns     []string               `json:"columns"`
	ColumnTypes []types.ColumnMetadata `json:"columnTypes"`
	Rows        [][]interface{}        `json:"rows"`
}

// RowCount returns the number of rows in r; a nil Result has none.
func (r *Result) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// StatementResult is the outcome of one Unit: a table or an error, never both.
type StatementResult struct {
	Label    string        `json:"label"`
	SQL      string        `json:"sql"`
	Combined bool          `json:"combined"`
	Type     StatementType `json:"-"`
	Table    *Result       `json:"table,omitempty"`
	Err      error         `json:"-"`
}

// OK reports whether the unit executed successfully.
func (r StatementResult) OK() bool {
	return r.Err == nil
}

// StringRows renders every cell as display text. NULL cells render as "NULL"
// and floats without exponents.
func (r *Result) StringRows() [][]string {
	if r == nil {
		return nil
	}
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		strRow := make([]string, len(row))
		for j, val := range row {
			strRow[j] = FormatCell(val)
		}
		out[i] = strRow
	}
	return out
}

// FormatCell renders one result value as display text.
func FormatCell(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(time.DateOnly)
		}
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
