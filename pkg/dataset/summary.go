package dataset

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nnnkkk7/agriqa/pkg/config"
)

// Summary describes the year coverage of one view.
type Summary struct {
	View    string `json:"view"`
	MinYear int64  `json:"minYear,omitempty"`
	MaxYear int64  `json:"maxYear,omitempty"`
	Rows    int64  `json:"rows"`
	Err     string `json:"error,omitempty"`
}

// Views lists the dataset views in a fixed order.
func Views() []string {
	return []string{config.ViewStateYearRain, config.ViewCropStateYear, config.ViewDistrictYearCrop}
}

// Summaries queries year range and row count of every view concurrently.
// A view that cannot be queried is reported through Summary.Err.
func (l *Loader) Summaries(ctx context.Context) ([]Summary, error) {
	views := Views()
	out := make([]Summary, len(views))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(views))

	for i, view := range views {
		g.Go(func() error {
			out[i] = l.summarize(gctx, view)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}

func (l *Loader) summarize(ctx context.Context, view string) Summary {
	s := Summary{View: view}
	var minYear, maxYear sql.NullInt64
	row := l.mgr.QueryRow(ctx, fmt.Sprintf("SELECT MIN(Year), MAX(Year), COUNT(*) FROM %s", view))
	if err := row.Scan(&minYear, &maxYear, &s.Rows); err != nil {
		s.Err = err.Error()
		return s
	}
	s.MinYear = minYear.Int64
	s.MaxYear = maxYear.Int64
	return s
}
