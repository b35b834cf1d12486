// Package logging builds the zap loggers used across agriqa and sanitizes
// values before they are logged.
package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// PreviewWidth is the default maximum width of a logged SQL preview.
	PreviewWidth = 1000
	// RedactedText replaces sensitive values.
	RedactedText = "[REDACTED]"

	truncatedMarker = " ... [truncated]"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	apiKeyPattern     = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)
	bearerPattern     = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_.]+`)
)

// New builds a logger. format is "console" (development encoder) or "json".
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// OrNop returns logger, or a no-op logger when logger is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Preview collapses whitespace in sql and shortens it to at most width
// characters, marking the cut.
func Preview(sql string, width int) string {
	collapsed := strings.TrimSpace(whitespacePattern.ReplaceAllString(sql, " "))
	if width <= 0 || len(collapsed) <= width {
		return collapsed
	}
	cut := width - len(truncatedMarker)
	if cut < 0 {
		cut = 0
	}
	// prefer a word boundary
	if i := strings.LastIndexByte(collapsed[:cut], ' '); i > 0 {
		cut = i
	}
	return collapsed[:cut] + truncatedMarker
}

// SanitizeError removes credentials from error text before logging.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	s := apiKeyPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	return bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
}
