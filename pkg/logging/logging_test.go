package logging

import (
	"errors"
	"strings"
	"testing"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		width int
		want  string
	}{
		{
			name:  "collapses whitespace",
			sql:   "SELECT *\n  FROM\tcrop_state_year ",
			width: 100,
			want:  "SELECT * FROM crop_state_year",
		},
		{
			name:  "no width keeps everything",
			sql:   "SELECT 1",
			width: 0,
			want:  "SELECT 1",
		},
		{
			name:  "truncates on word boundary",
			sql:   "SELECT State, Year, annual_rainfall_mm FROM state_year_rain WHERE State = 'Punjab'",
			width: 40,
			want:  "SELECT State, Year, ... [truncated]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Preview(tt.sql, tt.width)
			if got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
			if tt.width > 0 && len(got) > tt.width {
				t.Errorf("Preview() length %d exceeds width %d", len(got), tt.width)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, err := New("debug", "json"); err != nil {
		t.Fatalf("New(debug, json) error = %v", err)
	}
	if _, err := New("info", "console"); err != nil {
		t.Fatalf("New(info, console) error = %v", err)
	}
	if _, err := New("loud", "console"); err == nil {
		t.Error("New() expected error for invalid level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Error("New() expected error for invalid format")
	}
}

func TestSanitizeError(t *testing.T) {
	err := errors.New("request failed: api_key=sk-abcdefghijklmnopqrstuvwxyz Bearer abc.def.ghi")
	got := SanitizeError(err)
	if strings.Contains(got, "sk-abcdefghijklmnopqrstuvwxyz") || strings.Contains(got, "abc.def.ghi") {
		t.Errorf("SanitizeError() leaked secret: %q", got)
	}
	if SanitizeError(nil) != "" {
		t.Error("SanitizeError(nil) should be empty")
	}
}
