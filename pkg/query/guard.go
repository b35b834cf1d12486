package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nnnkkk7/agriqa/pkg/apperrors"
)

// mutatingKeywords are matched with a trailing space so that identifiers which
// merely start with a keyword do not trigger. Any identifier or literal that
// contains a keyword followed by whitespace still does.
var mutatingKeywords = []string{
	"insert ",
	"update ",
	"delete ",
	"drop ",
	"create ",
	"alter ",
	"replace ",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// UnsafeQueryError reports the mutating keyword found in rendered SQL.
type UnsafeQueryError struct {
	Keyword string
}

// Error implements the error interface.
func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("%v: contains %q", apperrors.ErrUnsafeQuery, e.Keyword)
}

// Unwrap returns ErrUnsafeQuery.
func (e *UnsafeQueryError) Unwrap() error {
	return apperrors.ErrUnsafeQuery
}

// CheckReadOnly rejects SQL containing a mutating keyword anywhere in its text,
// quoted literals and comments included. Whitespace runs are collapsed to a
// single space before scanning.
//
// This is a best-effort filter, not a security boundary.
func CheckReadOnly(sql string) error {
	normalized := strings.ToLower(whitespaceRun.ReplaceAllString(sql, " "))
	for _, kw := range mutatingKeywords {
		if strings.Contains(normalized, kw) {
			return &UnsafeQueryError{Keyword: strings.TrimSpace(kw)}
		}
	}
	return nil
}
