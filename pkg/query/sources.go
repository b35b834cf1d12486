package query

import (
	"sort"
	"strings"

	"github.com/blastrain/vitess-sqlparser/sqlparser"
)

// ExtractSources returns the relations read by sql, sorted and deduplicated,
// excluding names defined by WITH clauses. Each statement is parsed with the
// vitess parser; statements it cannot parse (WITH clauses, window functions,
// DuckDB syntax) fall back to the FROM/JOIN token scan. Best effort.
func ExtractSources(sql string) []string {
	seen := make(map[string]struct{})
	cteNames := make(map[string]struct{})

	for _, stmt := range SplitStatements(sql) {
		if _, _, names, ok := parseWith(stmt); ok {
			for _, n := range names {
				cteNames[strings.ToLower(n)] = struct{}{}
			}
		}

		refs, ok := parsedSources(stmt)
		if !ok {
			refs = relationRefs(lex(stmt))
		}
		for _, ref := range refs {
			seen[ref] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for ref := range seen {
		if _, isCTE := cteNames[strings.ToLower(ref)]; isCTE {
			continue
		}
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

// parsedSources walks the vitess AST of stmt for table references.
func parsedSources(stmt string) ([]string, bool) {
	tree, err := sqlparser.Parse(stmt)
	if err != nil {
		return nil, false
	}

	var refs []string
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		aliased, ok := node.(*sqlparser.AliasedTableExpr)
		if !ok {
			return true, nil
		}
		name, ok := aliased.Expr.(sqlparser.TableName)
		// The parser reports a FROM-less SELECT as reading "dual".
		if !ok || name.Name.IsEmpty() || strings.EqualFold(name.Name.String(), "dual") {
			return true, nil
		}
		ref := name.Name.String()
		if !name.Qualifier.IsEmpty() {
			ref = name.Qualifier.String() + "." + ref
		}
		refs = append(refs, ref)
		return true, nil
	}, tree)

	return refs, true
}
