// Package query guards, splits, binds and executes rendered SQL against DuckDB.
package query

// StatementType represents the category of a SQL statement.
type StatementType int

// Statement types.
const (
	StatementTypeQuery StatementType = iota // SELECT, WITH, SHOW, DESCRIBE, ...
	StatementTypeDML                        // INSERT, UPDATE, DELETE, COPY, MERGE
	StatementTypeDDL                        // CREATE, DROP, ALTER
	StatementTypeOther                      // SET, PRAGMA, unknown
)

// String returns a lower-case name for the statement type.
func (t StatementType) String() string {
	switch t {
	case StatementTypeQuery:
		return "query"
	case StatementTypeDML:
		return "dml"
	case StatementTypeDDL:
		return "ddl"
	default:
		return "other"
	}
}

var queryKeywords = map[string]bool{
	"SELECT":    true,
	"WITH":      true,
	"FROM":      true,
	"VALUES":    true,
	"TABLE":     true,
	"SHOW":      true,
	"DESCRIBE":  true,
	"DESC":      true,
	"EXPLAIN":   true,
	"SUMMARIZE": true,
	"PIVOT":     true,
	"UNPIVOT":   true,
}

var dmlKeywords = map[string]bool{
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"COPY":   true,
	"MERGE":  true,
}

var ddlKeywords = map[string]bool{
	"CREATE": true,
	"DROP":   true,
	"ALTER":  true,
}

// Classifier provides SQL statement classification functionality.
type Classifier struct{}

// NewClassifier creates a new SQL classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns the type of a single statement from its leading keyword.
// Leading comments and opening parentheses are skipped.
func (c *Classifier) Classify(sql string) StatementType {
	for _, t := range lex(sql) {
		if t.isPunct("(") {
			continue
		}
		kw := t.upper()
		switch {
		case queryKeywords[kw]:
			return StatementTypeQuery
		case dmlKeywords[kw]:
			return StatementTypeDML
		case ddlKeywords[kw]:
			return StatementTypeDDL
		default:
			return StatementTypeOther
		}
	}
	return StatementTypeOther
}
