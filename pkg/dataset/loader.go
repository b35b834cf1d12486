// Package dataset builds the store views that templates query.
package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/config"
	"github.com/nnnkkk7/agriqa/pkg/connection"
	"github.com/nnnkkk7/agriqa/pkg/logging"
)

// Paths locates the prepared dataset files. Empty paths are skipped.
type Paths struct {
	Rain   string
	Crop   string
	Season string
}

// PathsFromConfig resolves dataset file names against the data directory.
func PathsFromConfig(d config.DataConfig) Paths {
	return Paths{
		Rain:   d.Path(d.RainFile),
		Crop:   d.Path(d.CropFile),
		Season: d.Path(d.SeasonFile),
	}
}

// Report lists the views created and the views skipped with the reason.
type Report struct {
	Created []string          `json:"created"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

// Loader creates the store views over dataset files.
type Loader struct {
	mgr    *connection.Manager
	logger *zap.Logger
}

// NewLoader creates a new view loader.
func NewLoader(mgr *connection.Manager, logger *zap.Logger) *Loader {
	return &Loader{
		mgr:    mgr,
		logger: logging.OrNop(logger).Named("dataset"),
	}
}

type viewSpec struct {
	view  string
	path  string
	build func(scan string) []string
}

// LoadViews creates or replaces every view whose source file exists, in one
// transaction. Missing files are reported, not treated as errors.
func (l *Loader) LoadViews(ctx context.Context, p Paths) (*Report, error) {
	specs := []viewSpec{
		{view: config.ViewStateYearRain, path: p.Rain, build: func(scan string) []string {
			return []string{fmt.Sprintf(
				"CREATE OR REPLACE VIEW %s AS SELECT State, Year::INTEGER AS Year, annual_rainfall_mm FROM %s",
				config.ViewStateYearRain, scan)}
		}},
		{view: config.ViewCropStateYear, path: p.Crop, build: func(scan string) []string {
			return []string{fmt.Sprintf(
				"CREATE OR REPLACE VIEW %s AS SELECT State, Year::INTEGER AS Year, Crop, Area_ha, Production_tonnes FROM %s",
				config.ViewCropStateYear, scan)}
		}},
		{view: config.ViewDistrictYearCrop, path: p.Season, build: func(scan string) []string {
			return []string{
				fmt.Sprintf("CREATE OR REPLACE TABLE season_crop_clean AS SELECT * FROM %s", scan),
				fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS
SELECT State, District, Year::INTEGER AS Year, Crop, SUM(Area)::DOUBLE AS Area_ha, SUM(Production)::DOUBLE AS Production_tonnes
FROM season_crop_clean
GROUP BY State, District, Year, Crop`, config.ViewDistrictYearCrop),
			}
		}},
	}

	report := &Report{Skipped: make(map[string]string)}
	var statements []string
	for _, s := range specs {
		reason, err := checkFile(s.path)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			report.Skipped[s.view] = reason
			l.logger.Warn("dataset file unavailable, view skipped",
				zap.String("view", s.view), zap.String("path", s.path), zap.String("reason", reason))
			continue
		}
		scan, err := scanExpr(s.path)
		if err != nil {
			return nil, err
		}
		statements = append(statements, s.build(scan)...)
		report.Created = append(report.Created, s.view)
	}

	if len(statements) == 0 {
		return report, nil
	}

	err := l.mgr.ExecTx(ctx, func(tx *sql.Tx) error {
		if err := dropExisting(ctx, tx, "TABLE", report.Created); err != nil {
			return err
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", logging.Preview(stmt, 120), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create views: %w", err)
	}

	l.logger.Info("dataset views created", zap.Strings("views", report.Created))
	return report, nil
}

// checkFile returns a skip reason for a missing or empty path.
func checkFile(path string) (string, error) {
	if path == "" {
		return "no path configured", nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "missing: " + path, nil
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "not a file: " + path, nil
	}
	return "", nil
}

// scanExpr returns the DuckDB table function reading path.
func scanExpr(path string) (string, error) {
	quoted := "'" + strings.ReplaceAll(filepath.ToSlash(path), "'", "''") + "'"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return "read_parquet(" + quoted + ")", nil
	case ".csv", ".tsv":
		return "read_csv_auto(" + quoted + ")", nil
	case ".json", ".ndjson":
		return "read_json_auto(" + quoted + ")", nil
	default:
		return "", fmt.Errorf("unsupported dataset file type: %s", path)
	}
}

// dropExisting drops the named objects of kind ("TABLE" or "VIEW") that exist.
// A view and a table cannot share a name, so switching between sample tables
// and file-backed views drops the other kind first.
func dropExisting(ctx context.Context, tx *sql.Tx, kind string, names []string) error {
	catalog := "duckdb_tables()"
	column := "table_name"
	if kind == "VIEW" {
		catalog = "duckdb_views()"
		column = "view_name"
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE NOT internal AND schema_name = 'main'", column, catalog))
	if err != nil {
		return fmt.Errorf("list %s objects: %w", strings.ToLower(kind), err)
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		existing[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, name := range names {
		if !existing[strings.ToLower(name)] {
			continue
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP %s %s", kind, name)); err != nil {
			return fmt.Errorf("drop %s %s: %w", strings.ToLower(kind), name, err)
		}
	}
	return nil
}
