// Package apperrors defines the sentinel errors shared across the query path.
package apperrors

import "errors"

var (
	ErrInvalidParameter         = errors.New("invalid parameter")
	ErrUnsupportedParameterType = errors.New("unsupported parameter type")
	ErrUnsafeQuery              = errors.New("unsafe query")
	ErrTemplateNotFound         = errors.New("template not found")
	ErrStatementExecution       = errors.New("statement execution failed")
	ErrNoStatements             = errors.New("no SQL statements found after substitution")
)
