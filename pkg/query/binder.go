package query

import (
	"fmt"
	"strings"

	"github.com/nnnkkk7/agriqa/pkg/config"
)

// Unit is one executable statement: a split statement on its own, or a
// statement prefixed with the shared WITH block it depends on.
type Unit struct {
	Label    string `json:"label"`
	SQL      string `json:"sql"`
	Combined bool   `json:"combined"`
}

// Binder turns split statements into executable units.
type Binder interface {
	Bind(statements []string) []Unit
}

// NewBinder returns the binder for mode. Alias mode uses alias, or
// config.DefaultCTEAlias when alias is empty.
func NewBinder(mode config.CTEBinderMode, alias string) Binder {
	if mode == config.CTEBinderAlias {
		if alias == "" {
			alias = config.DefaultCTEAlias
		}
		return AliasBinder{Alias: alias}
	}
	return TokenBinder{}
}

// TokenBinder attaches the WITH block to every statement whose FROM or JOIN
// clauses name one of the relations the block defines.
type TokenBinder struct{}

// Bind implements Binder.
func (TokenBinder) Bind(statements []string) []Unit {
	return bind(statements, func(stmt string, defined []string) bool {
		for _, ref := range relationRefs(lex(stmt)) {
			for _, name := range defined {
				if strings.EqualFold(ref, name) {
					return true
				}
			}
		}
		return false
	})
}

// AliasBinder attaches the WITH block to every statement containing Alias as
// a whole word: preceded by a space and followed by a space, '.' or ','.
// A reference inside a comment counts; a reference under another name does not.
type AliasBinder struct {
	Alias string
}

// Bind implements Binder.
func (b AliasBinder) Bind(statements []string) []Unit {
	alias := strings.ToLower(b.Alias)
	return bind(statements, func(stmt string, _ []string) bool {
		lower := strings.ToLower(stmt)
		for _, suffix := range []string{" ", ".", ","} {
			if strings.Contains(lower, " "+alias+suffix) {
				return true
			}
		}
		return false
	})
}

func bind(statements []string, dependsOn func(stmt string, defined []string) bool) []Unit {
	units := make([]Unit, 0, len(statements))
	if len(statements) == 0 {
		return units
	}

	block, body, defined, ok := parseWith(statements[0])
	if !ok {
		for i, stmt := range statements {
			units = append(units, Unit{Label: stmtLabel(i + 1), SQL: stmt})
		}
		return units
	}

	// A preamble that carries its own query runs as the first unit; a bare
	// WITH block only ever runs as a prefix.
	if body != "" {
		units = append(units, Unit{Label: combinedLabel(1), SQL: statements[0], Combined: true})
	}

	for i, stmt := range statements[1:] {
		n := i + 2
		if dependsOn(stmt, defined) {
			units = append(units, Unit{Label: combinedLabel(n), SQL: block + "\n" + stmt, Combined: true})
			continue
		}
		units = append(units, Unit{Label: stmtLabel(n), SQL: stmt})
	}
	return units
}

func stmtLabel(n int) string {
	return fmt.Sprintf("stmt_%d", n)
}

func combinedLabel(n int) string {
	return fmt.Sprintf("combined_stmt_%d", n)
}

// parseWith splits a statement that starts with a WITH clause into the clause
// itself, the query that follows it, and the relation names it defines.
// ok is false when the statement does not start with a well-formed WITH clause.
func parseWith(stmt string) (block, body string, names []string, ok bool) {
	tokens := lex(stmt)
	if len(tokens) == 0 || tokens[0].upper() != "WITH" {
		return "", "", nil, false
	}

	i := 1
	if i < len(tokens) && tokens[i].upper() == "RECURSIVE" {
		i++
	}

	end := -1
	for {
		if i >= len(tokens) || !tokens[i].isName() {
			return "", "", nil, false
		}
		name := tokens[i].text
		i++

		if i < len(tokens) && tokens[i].isPunct("(") {
			closing := matchParen(tokens, i)
			if closing < 0 {
				return "", "", nil, false
			}
			i = closing + 1
		}

		if i >= len(tokens) || tokens[i].upper() != "AS" {
			return "", "", nil, false
		}
		i++
		if i < len(tokens) && tokens[i].upper() == "NOT" {
			i++
		}
		if i < len(tokens) && tokens[i].upper() == "MATERIALIZED" {
			i++
		}

		if i >= len(tokens) || !tokens[i].isPunct("(") {
			return "", "", nil, false
		}
		closing := matchParen(tokens, i)
		if closing < 0 {
			return "", "", nil, false
		}
		names = append(names, name)
		end = tokens[closing].end
		i = closing + 1

		if i < len(tokens) && tokens[i].isPunct(",") {
			i++
			continue
		}
		break
	}

	return strings.TrimSpace(stmt[:end]), strings.TrimSpace(stmt[end:]), names, true
}

// clauseEnd holds keywords that close a FROM list.
var clauseEnd = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true,
	"OFFSET": true, "UNION": true, "EXCEPT": true, "INTERSECT": true, "QUALIFY": true,
	"WINDOW": true, "ON": true, "USING": true, "JOIN": true, "LEFT": true,
	"RIGHT": true, "INNER": true, "FULL": true, "CROSS": true, "NATURAL": true,
	"POSITIONAL": true, "ASOF": true, "ANTI": true, "SEMI": true, "SELECT": true,
}

// relationRefs returns the relations named after FROM and JOIN, including every
// entry of a comma-separated FROM list, in order of appearance. Subqueries are
// not names themselves; their own FROM clauses are found by the same scan.
// A table function contributes its first string argument, usually a file path.
func relationRefs(tokens []token) []string {
	var refs []string
	for i := range tokens {
		kw := tokens[i].upper()
		if kw != "FROM" && kw != "JOIN" {
			continue
		}

		j := i + 1
		for {
			name, next := relationAt(tokens, j)
			if name != "" {
				refs = append(refs, name)
			}
			if kw != "FROM" {
				break
			}
			sep := nextListItem(tokens, next)
			if sep < 0 {
				break
			}
			j = sep + 1
		}
	}
	return refs
}

// relationAt reads the relation reference starting at tokens[j] and returns
// its name and the index of the first token after it.
func relationAt(tokens []token, j int) (string, int) {
	if j < len(tokens) && tokens[j].upper() == "LATERAL" {
		j++
	}
	if j >= len(tokens) {
		return "", j
	}

	switch t := tokens[j]; {
	case t.kind == tokString:
		return t.text, j + 1
	case !t.isName() || clauseEnd[t.upper()]:
		return "", j
	}

	name := tokens[j].text
	k := j + 1
	for k+1 < len(tokens) && tokens[k].isPunct(".") && tokens[k+1].isName() {
		name += "." + tokens[k+1].text
		k += 2
	}

	if k < len(tokens) && tokens[k].isPunct("(") {
		closing := matchParen(tokens, k)
		if k+1 < len(tokens) && tokens[k+1].kind == tokString {
			name = tokens[k+1].text
		} else {
			name = ""
		}
		if closing < 0 {
			return name, len(tokens)
		}
		return name, closing + 1
	}
	return name, k
}

// nextListItem returns the index of the comma that continues a FROM list at or
// after tokens[k], or -1 when the list ends first.
func nextListItem(tokens []token, k int) int {
	for k < len(tokens) {
		t := tokens[k]
		switch {
		case t.isPunct("("):
			closing := matchParen(tokens, k)
			if closing < 0 {
				return -1
			}
			k = closing + 1
			continue
		case t.isPunct(","):
			return k
		case t.isPunct(")"), t.isPunct(";"), clauseEnd[t.upper()]:
			return -1
		}
		k++
	}
	return -1
}
