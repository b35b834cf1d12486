package params

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/nnnkkk7/agriqa/pkg/apperrors"
)

// ParameterError describes a parameter that was rejected.
type ParameterError struct {
	Name   string
	Class  Class
	Reason string
	err    error
}

// Error implements the error interface.
func (e *ParameterError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %s", e.err, e.Name)
	}
	return fmt.Sprintf("%v: %s (%s)", e.err, e.Name, e.Reason)
}

// Unwrap returns ErrInvalidParameter or ErrUnsupportedParameterType.
func (e *ParameterError) Unwrap() error {
	return e.err
}

func invalid(name string, class Class, reason string) error {
	return &ParameterError{Name: name, Class: class, Reason: reason, err: apperrors.ErrInvalidParameter}
}

func unsupported(name string, raw any) error {
	return &ParameterError{
		Name:   name,
		Class:  -1,
		Reason: fmt.Sprintf("%T", raw),
		err:    apperrors.ErrUnsupportedParameterType,
	}
}

// Validate checks raw against the class inferred from name and returns the
// value that is safe to substitute: an int64 or an escaped string.
func Validate(name string, raw any) (any, error) {
	return validate(name, raw, nil)
}

// ValidateAs is Validate with an explicitly declared class for string values.
func ValidateAs(class Class, name string, raw any) (any, error) {
	return validate(name, raw, &class)
}

func validate(name string, raw any, declared *Class) (any, error) {
	if n, ok := integral(raw); ok {
		return n, nil
	}

	s, ok := raw.(string)
	if !ok {
		return nil, unsupported(name, raw)
	}

	class := ClassifyName(name)
	if declared != nil {
		class = *declared
	}

	switch class {
	case ClassStateName, ClassCropName:
		if !namePattern.MatchString(s) {
			return nil, invalid(name, class, "expected 2-40 letters, spaces, . ' or -")
		}
		if strings.Contains(s, "--") {
			return nil, invalid(name, class, "comment marker")
		}
		return strings.ReplaceAll(s, "'", "''"), nil

	case ClassFilterExpression:
		if !filterPattern.MatchString(s) {
			return nil, invalid(name, class, "filter expression outside permitted grammar")
		}
		if strings.Count(s, "'")%2 != 0 {
			return nil, invalid(name, class, "unbalanced string literal")
		}
		return s, nil

	case ClassIntegerCount:
		if !countPattern.MatchString(s) {
			return nil, invalid(name, class, "expected a 1-3 digit integer")
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, invalid(name, class, err.Error())
		}
		return n, nil

	case ClassRawInteger:
		return nil, invalid(name, class, "expected an integer value")

	default:
		if !identifierPattern.MatchString(s) {
			return nil, invalid(name, class, "expected 1-64 identifier characters")
		}
		return s, nil
	}
}

// integral reports whether raw is an integer-typed value, returning it as int64.
// Integral floats are accepted because JSON decodes every number as float64.
func integral(raw any) (int64, bool) {
	switch v := raw.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return integral(f)
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < math.MaxInt64 {
			return int64(v), true
		}
		return 0, false
	case float32:
		return integral(float64(v))
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}

// ValidateAll validates every parameter in name order and stops at the first
// failure. declared may be nil; a declared class overrides name inference.
func ValidateAll(params map[string]any, declared map[string]Class) (map[string]any, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	safe := make(map[string]any, len(params))
	for _, name := range names {
		var (
			v   any
			err error
		)
		if class, ok := declared[name]; ok {
			v, err = ValidateAs(class, name, params[name])
		} else {
			v, err = Validate(name, params[name])
		}
		if err != nil {
			return nil, err
		}
		safe[name] = v
	}
	return safe, nil
}
