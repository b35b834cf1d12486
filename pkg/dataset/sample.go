package dataset

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/config"
)

const sampleYears = "(SELECT range::INTEGER AS Year FROM range(2010, 2015)) y"

// sampleStatements build a small deterministic dataset under the view names,
// for demos and tests. Years 2010-2014; Punjab grows the most Wheat and
// Ludhiana is its largest district.
var sampleStatements = []string{
	fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT s.State, y.Year, ROUND(s.base_mm + ((y.Year * 37 + s.seed) %% 200) - 100, 1)::DOUBLE AS annual_rainfall_mm
FROM (VALUES ('Punjab', 620.0, 1), ('Haryana', 560.0, 2), ('Kerala', 2900.0, 3), ('Tamil Nadu', 940.0, 4)) s(State, base_mm, seed),
     %s`, config.ViewStateYearRain, sampleYears),
	fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT s.State, y.Year, c.Crop,
       ROUND(c.area * s.scale, 0)::DOUBLE AS Area_ha,
       ROUND(c.area * s.scale * c.yield * (1 + (y.Year - 2010) * 0.02), 0)::DOUBLE AS Production_tonnes
FROM (VALUES ('Punjab', 1.0), ('Haryana', 0.7), ('Kerala', 0.1), ('Tamil Nadu', 0.4)) s(State, scale),
     %s,
     (VALUES ('Wheat', 3500000.0, 4.5), ('Rice', 2800000.0, 4.0), ('Maize', 130000.0, 3.6),
             ('Bajra', 10000.0, 1.4), ('Sugarcane', 90000.0, 80.0)) c(Crop, area, yield)`,
		config.ViewCropStateYear, sampleYears),
	fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT d.State, d.District, y.Year, c.Crop,
       ROUND(c.area * d.share, 0)::DOUBLE AS Area_ha,
       ROUND(c.area * d.share * c.yield, 0)::DOUBLE AS Production_tonnes
FROM (VALUES ('Punjab', 'Ludhiana', 0.12), ('Punjab', 'Bathinda', 0.08), ('Punjab', 'Pathankot', 0.01),
             ('Kerala', 'Palakkad', 0.03), ('Kerala', 'Idukki', 0.002)) d(State, District, share),
     %s,
     (VALUES ('Wheat', 3500000.0, 4.5), ('Rice', 2800000.0, 4.0)) c(Crop, area, yield)`,
		config.ViewDistrictYearCrop, sampleYears),
}

// LoadSample replaces the dataset views with built-in sample tables.
func (l *Loader) LoadSample(ctx context.Context) error {
	err := l.mgr.ExecTx(ctx, func(tx *sql.Tx) error {
		if err := dropExisting(ctx, tx, "VIEW", Views()); err != nil {
			return err
		}
		for _, stmt := range sampleStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load sample dataset: %w", err)
	}
	l.logger.Info("sample dataset loaded", zap.Int("statements", len(sampleStatements)))
	return nil
}
