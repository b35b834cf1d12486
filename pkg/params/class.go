// Package params validates and escapes template parameter values before they
// are interpolated into SQL text.
package params

import (
	"fmt"
	"regexp"
	"strings"
)

// Class is the validation rule-set assigned to a parameter.
type Class int

// Parameter classes.
const (
	ClassIdentifier       Class = iota // generic identifier-safe string
	ClassStateName                     // STATE*, quoted slot, quotes doubled
	ClassCropName                      // CROP / CROP_NAME, quoted slot, quotes doubled
	ClassIntegerCount                  // *YEARS, TOP_*, 1-3 digits
	ClassFilterExpression              // CEREAL_WHERE, closed grammar, verbatim
	ClassRawInteger                    // value already integral
)

var classNames = map[Class]string{
	ClassIdentifier:       "identifier",
	ClassStateName:        "state_name",
	ClassCropName:         "crop_name",
	ClassIntegerCount:     "integer_count",
	ClassFilterExpression: "filter_expression",
	ClassRawInteger:       "raw_integer",
}

// String returns the manifest name of the class.
func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// ParseClass resolves a manifest class name such as "state_name".
func ParseClass(s string) (Class, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for c, name := range classNames {
		if name == want {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter class %q", s)
}

// UnmarshalText lets classes be declared in YAML manifests.
func (c *Class) UnmarshalText(text []byte) error {
	parsed, err := ParseClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

var (
	namePattern       = regexp.MustCompile(`^[A-Za-z .'-]{2,40}$`)
	filterPattern     = regexp.MustCompile(`^[A-Za-z0-9_(),' =]+$`)
	countPattern      = regexp.MustCompile(`^\d{1,3}$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_./]{1,64}$`)
)

// ClassifyName infers the class of a string-valued parameter from its name.
func ClassifyName(name string) Class {
	upper := strings.ToUpper(name)
	switch {
	case strings.HasPrefix(upper, "STATE"):
		return ClassStateName
	case upper == "CROP" || upper == "CROP_NAME":
		return ClassCropName
	case upper == "CEREAL_WHERE":
		return ClassFilterExpression
	case strings.HasSuffix(upper, "YEARS") || strings.HasPrefix(upper, "TOP_") || upper == "N_YEARS" || upper == "TOP_M":
		return ClassIntegerCount
	default:
		return ClassIdentifier
	}
}
