// Package audit appends one CSV record per answered question and reports
// parameter values that libinjection flagged as security events.
package audit

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/logging"
	"github.com/nnnkkk7/agriqa/pkg/params"
)

// Header is the column row written at the top of a new audit file.
var Header = []string{"timestamp", "question", "template", "params", "sql_hash", "sources", "offline"}

// Record is one audited invocation.
type Record struct {
	Timestamp time.Time
	Question  string
	Template  string
	Params    map[string]any
	SQL       string
	Sources   []string
	Offline   bool

	// Flags are written to the security log, not to the CSV file.
	Flags []params.Finding
}

// HashSQL returns the hex SHA-256 of sql.
func HashSQL(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

// row renders r in Header order.
func (r Record) row() ([]string, error) {
	p, err := json.Marshal(r.Params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	sources := r.Sources
	if sources == nil {
		sources = []string{}
	}
	s, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("encode sources: %w", err)
	}
	offline := "0"
	if r.Offline {
		offline = "1"
	}
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Question,
		r.Template,
		string(p),
		HashSQL(r.SQL),
		string(s),
		offline,
	}, nil
}

// Log appends records to a CSV file. It is safe for concurrent use.
type Log struct {
	path     string
	security *zap.Logger

	mu sync.Mutex
}

// NewLog creates a log writing to path. The file and its directory are
// created on the first write.
func NewLog(path string, logger *zap.Logger) *Log {
	return &Log{
		path:     path,
		security: logging.OrNop(logger).Named("security_audit"),
	}
}

// Path returns the audit file path.
func (l *Log) Path() string {
	return l.path
}

// Write appends rec, writing the header first if the file is new or empty.
// A zero Timestamp is set to the current time.
func (l *Log) Write(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	for _, f := range rec.Flags {
		l.security.Warn("sql_injection_attempt",
			zap.String("event_type", "sql_injection_attempt"),
			zap.String("template", rec.Template),
			zap.String("param_name", f.Name),
			zap.String("fingerprint", f.Fingerprint),
			zap.String("severity", "warning"))
	}

	row, err := rec.row()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write audit header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}
	return nil
}
