package query

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/apperrors"
	"github.com/nnnkkk7/agriqa/pkg/connection"
	"github.com/nnnkkk7/agriqa/pkg/logging"
)

// StatementError is the failure of a single unit. It does not abort the
// units that follow it.
type StatementError struct {
	Label string
	Err   error
}

// Error implements the error interface.
func (e *StatementError) Error() string {
	return fmt.Sprintf("%s: %v", e.Label, e.Err)
}

// Unwrap exposes both ErrStatementExecution and the driver error.
func (e *StatementError) Unwrap() []error {
	return []error{apperrors.ErrStatementExecution, e.Err}
}

// Executor runs units sequentially on one connection per invocation.
type Executor struct {
	mgr        *connection.Manager
	classifier *Classifier
	mapper     *TypeMapper
	logger     *zap.Logger
}

// NewExecutor creates a new executor. A nil logger discards output.
func NewExecutor(mgr *connection.Manager, logger *zap.Logger) *Executor {
	return &Executor{
		mgr:        mgr,
		classifier: NewClassifier(),
		mapper:     NewTypeMapper(),
		logger:     logging.OrNop(logger).Named("executor"),
	}
}

// Run executes units in order and returns one StatementResult per unit.
// The returned error is non-nil only when no connection could be acquired.
func (e *Executor) Run(ctx context.Context, units []Unit) ([]StatementResult, error) {
	conn, err := e.mgr.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			e.logger.Warn("failed to release connection", zap.Error(err))
		}
	}()

	results := make([]StatementResult, 0, len(units))
	for _, u := range units {
		res := StatementResult{
			Label:    u.Label,
			SQL:      u.SQL,
			Combined: u.Combined,
			Type:     e.classifier.Classify(u.SQL),
		}

		start := time.Now()
		table, err := e.runUnit(ctx, conn, u.SQL, res.Type)
		if err != nil {
			res.Err = &StatementError{Label: u.Label, Err: err}
			e.logger.Info("statement failed",
				zap.String("label", u.Label),
				zap.String("sql", logging.Preview(u.SQL, logging.PreviewWidth)),
				zap.Error(err))
		} else {
			res.Table = table
			e.logger.Debug("statement executed",
				zap.String("label", u.Label),
				zap.Int("rows", table.RowCount()),
				zap.Duration("elapsed", time.Since(start)))
		}
		results = append(results, res)
	}

	return results, nil
}

func (e *Executor) runUnit(ctx context.Context, conn *sql.Conn, stmt string, typ StatementType) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if typ != StatementTypeQuery {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return nil, err
		}
		return &Result{Columns: []string{}, Rows: [][]interface{}{}}, nil
	}
	return e.query(ctx, conn, stmt)
}

// query executes a row-returning statement and materialises its rows.
func (e *Executor) query(ctx context.Context, conn *sql.Conn, stmt string) (*Result, error) {
	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	// Column types must be captured before iterating.
	columnTypes := e.mapper.InferRowType(columns, rows)

	resultRows := make([][]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make([]interface{}, len(columns))
		for i, val := range values {
			row[i] = convertValue(val)
		}
		resultRows = append(resultRows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &Result{
		Columns:     columns,
		ColumnTypes: columnTypes,
		Rows:        resultRows,
	}, nil
}

// convertValue converts driver values to JSON-friendly Go types.
func convertValue(val interface{}) interface{} {
	switch v := val.(type) {
	case nil:
		return nil
	case float64:
		return finite(v, v)
	case float32:
		return finite(float64(v), v)
	case []byte:
		return string(v)
	case *big.Int:
		// HUGEINT, e.g. SUM over BIGINT.
		if v.IsInt64() {
			return v.Int64()
		}
		return v.String()
	case interface{ Float64() float64 }:
		// DECIMAL
		f := v.Float64()
		return finite(f, f)
	default:
		return v
	}
}

// finite returns v, or nil when f is NaN or infinite. CORR and REGR_SLOPE
// over a constant series yield NaN, which JSON cannot carry.
func finite(f float64, v interface{}) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return v
}
