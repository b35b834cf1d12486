package params

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nnnkkk7/agriqa/pkg/apperrors"
)

func TestClassifyName(t *testing.T) {
	tests := []struct {
		name string
		want Class
	}{
		{"STATE_A", ClassStateName},
		{"state", ClassStateName},
		{"StateB", ClassStateName},
		{"CROP", ClassCropName},
		{"crop_name", ClassCropName},
		{"CROP_TYPE", ClassIdentifier},
		{"CEREAL_WHERE", ClassFilterExpression},
		{"N_YEARS", ClassIntegerCount},
		{"LAST_YEARS", ClassIntegerCount},
		{"TOP_M", ClassIntegerCount},
		{"top_k", ClassIntegerCount},
		{"TABLE", ClassIdentifier},
		{"YEAR", ClassIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyName(tt.name); got != tt.want {
				t.Errorf("ClassifyName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	tests := []struct {
		name  string
		param string
		raw   any
		want  any
	}{
		{"state", "STATE_A", "Punjab", "Punjab"},
		{"state with quote is escaped", "STATE_B", "Jammu and Kashmir's", "Jammu and Kashmir''s"},
		{"state with dot and dash", "STATE", "Dadra-Nagar Haveli.", "Dadra-Nagar Haveli."},
		{"crop", "CROP_NAME", "Rice", "Rice"},
		{"crop short name", "CROP", "Ragi", "Ragi"},
		{"filter expression", "CEREAL_WHERE", "AND Crop IN ('Wheat','Rice','Maize')", "AND Crop IN ('Wheat','Rice','Maize')"},
		{"integer count from string", "TOP_M", "3", int64(3)},
		{"years count", "N_YEARS", "010", int64(10)},
		{"identifier", "VIEW", "crop_state_year", "crop_state_year"},
		{"identifier path", "SOURCE", "data/rain.parquet", "data/rain.parquet"},
		{"raw int", "TOP_M", 5, int64(5)},
		{"raw int for string class", "STATE_A", 7, int64(7)},
		{"integral float from JSON", "N_YEARS", float64(10), int64(10)},
		{"json number", "TOP_M", json.Number("4"), int64(4)},
		{"integral json number with fraction", "N_YEARS", json.Number("3.0"), int64(3)},
		{"json number in exponent form", "TOP_M", json.Number("2e1"), int64(20)},
		{"uint", "TOP_M", uint8(2), int64(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.param, tt.raw)
			if err != nil {
				t.Fatalf("Validate(%q, %v) error = %v", tt.param, tt.raw, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Validate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		raw     any
		wantErr error
	}{
		{"injection in state", "STATE_A", "Punjab'; DROP TABLE crop_state_year; --", apperrors.ErrInvalidParameter},
		{"single letter state", "STATE_A", "P", apperrors.ErrInvalidParameter},
		{"digits in state", "STATE_A", "Punjab1", apperrors.ErrInvalidParameter},
		{"too long state", "STATE_A", strings.Repeat("a", 41), apperrors.ErrInvalidParameter},
		{"crop with semicolon", "CROP_NAME", "Rice;", apperrors.ErrInvalidParameter},
		{"filter with terminator", "CEREAL_WHERE", "AND 1=1; DELETE FROM x", apperrors.ErrInvalidParameter},
		{"filter with comment", "CEREAL_WHERE", "AND Crop = 'x' --", apperrors.ErrInvalidParameter},
		{"filter with unbalanced quote", "CEREAL_WHERE", "AND Crop = 'x", apperrors.ErrInvalidParameter},
		{"empty filter", "CEREAL_WHERE", "", apperrors.ErrInvalidParameter},
		{"four digit count", "TOP_M", "1000", apperrors.ErrInvalidParameter},
		{"negative count", "N_YEARS", "-1", apperrors.ErrInvalidParameter},
		{"count with sql", "TOP_M", "3 UNION SELECT 1", apperrors.ErrInvalidParameter},
		{"identifier with space", "VIEW", "crop state", apperrors.ErrInvalidParameter},
		{"identifier with quote", "VIEW", "x'", apperrors.ErrInvalidParameter},
		{"empty identifier", "VIEW", "", apperrors.ErrInvalidParameter},
		{"bool", "TOP_M", true, apperrors.ErrUnsupportedParameterType},
		{"nil", "STATE_A", nil, apperrors.ErrUnsupportedParameterType},
		{"fractional float", "N_YEARS", 2.5, apperrors.ErrUnsupportedParameterType},
		{"fractional json number", "N_YEARS", json.Number("2.5"), apperrors.ErrUnsupportedParameterType},
		{"slice", "STATE_A", []string{"Punjab"}, apperrors.ErrUnsupportedParameterType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.param, tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate(%q, %v) error = %v, want %v", tt.param, tt.raw, err, tt.wantErr)
			}
			var perr *ParameterError
			if !errors.As(err, &perr) {
				t.Fatalf("error %T is not a *ParameterError", err)
			}
			if perr.Name != tt.param {
				t.Errorf("ParameterError.Name = %q, want %q", perr.Name, tt.param)
			}
		})
	}
}

// Hostile strings must fail for every string class.
func TestValidate_HostileValuesFailEveryClass(t *testing.T) {
	hostile := []string{
		"x; SELECT 1",
		"Punjab -- comment",
		"a/* c */b",
		"1; DROP TABLE t",
		"Rice\";",
	}
	classes := []Class{ClassStateName, ClassCropName, ClassIntegerCount, ClassFilterExpression, ClassIdentifier}

	for _, value := range hostile {
		for _, class := range classes {
			if _, err := ValidateAs(class, "P", value); !errors.Is(err, apperrors.ErrInvalidParameter) {
				t.Errorf("ValidateAs(%v, %q) error = %v, want ErrInvalidParameter", class, value, err)
			}
		}
	}
}

// Accepted string values never carry a terminator, and quoted-slot classes
// never carry an unescaped quote.
func TestValidate_AcceptedValuesAreSlotSafe(t *testing.T) {
	inputs := []struct {
		param string
		value string
	}{
		{"STATE_A", "O'Neil's Land"},
		{"CROP", "'Rice'"},
		{"STATE", "Tamil Nadu"},
		{"CEREAL_WHERE", "AND Crop IN ('Wheat')"},
		{"VIEW", "a.b/c_d"},
	}

	for _, in := range inputs {
		got, err := Validate(in.param, in.value)
		if err != nil {
			t.Fatalf("Validate(%q, %q) error = %v", in.param, in.value, err)
		}
		s, ok := got.(string)
		if !ok {
			t.Fatalf("Validate(%q) returned %T, want string", in.param, got)
		}
		if strings.Contains(s, ";") {
			t.Errorf("Validate(%q) = %q contains a terminator", in.param, s)
		}
		switch ClassifyName(in.param) {
		case ClassStateName, ClassCropName:
			if strings.Count(strings.ReplaceAll(s, "''", ""), "'") != 0 {
				t.Errorf("Validate(%q) = %q has an unescaped quote", in.param, s)
			}
		case ClassFilterExpression:
			if strings.Count(s, "'")%2 != 0 {
				t.Errorf("Validate(%q) = %q has an unbalanced quote", in.param, s)
			}
		}
	}
}

func TestValidateAll(t *testing.T) {
	t.Run("declared class overrides inference", func(t *testing.T) {
		got, err := ValidateAll(
			map[string]any{"REGION": "Uttar Pradesh", "TOP_M": "3"},
			map[string]Class{"REGION": ClassStateName},
		)
		if err != nil {
			t.Fatalf("ValidateAll() error = %v", err)
		}
		want := map[string]any{"REGION": "Uttar Pradesh", "TOP_M": int64(3)}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ValidateAll() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("fails fast on first invalid name in order", func(t *testing.T) {
		_, err := ValidateAll(map[string]any{
			"TOP_M":   "x",
			"STATE_A": "Punjab'; DROP TABLE crop_state_year; --",
		}, nil)
		var perr *ParameterError
		if !errors.As(err, &perr) {
			t.Fatalf("ValidateAll() error = %v, want *ParameterError", err)
		}
		if perr.Name != "STATE_A" {
			t.Errorf("first failing parameter = %q, want STATE_A", perr.Name)
		}
	})

	t.Run("empty map", func(t *testing.T) {
		got, err := ValidateAll(nil, nil)
		if err != nil {
			t.Fatalf("ValidateAll(nil) error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ValidateAll(nil) = %v, want empty", got)
		}
	})
}

func TestParseClass(t *testing.T) {
	for class, name := range classNames {
		got, err := ParseClass(strings.ToUpper(name))
		if err != nil {
			t.Fatalf("ParseClass(%q) error = %v", name, err)
		}
		if got != class {
			t.Errorf("ParseClass(%q) = %v, want %v", name, got, class)
		}
	}
	if _, err := ParseClass("money"); err == nil {
		t.Error("ParseClass(money) expected error")
	}
}
