// Package config provides configuration for the agri-climate query engine.
package config

import "time"

// Default storage and runtime settings.
const (
	DefaultDBPath    = "data/agri_climate.duckdb"
	DefaultDataDir   = "data"
	DefaultAuditPath = "logs/audit.csv"
	DefaultPort      = "8080"
)

// Default limits for the presentation API.
const (
	DefaultAskRateLimit = 2.0
	DefaultAskBurst     = 5
)

// CTEBinderMode selects how statements are matched against a leading CTE.
type CTEBinderMode string

// CTE binder modes.
const (
	CTEBinderToken CTEBinderMode = "token"
	CTEBinderAlias CTEBinderMode = "alias"
)

// DefaultCTEAlias is the alias name used by the template catalogue for its shared CTE.
const DefaultCTEAlias = "yr"

// LLMProvider names a text-generation backend.
type LLMProvider string

// Supported LLM providers.
const (
	LLMProviderNone      LLMProvider = "none"
	LLMProviderOpenAI    LLMProvider = "openai"
	LLMProviderAnthropic LLMProvider = "anthropic"
)

// LLM call defaults.
const (
	DefaultLLMTimeout      = 30 * time.Second
	DefaultLLMMaxRetries   = 3
	DefaultLLMRetryBackoff = time.Second
)

// View names exposed by the analytical store.
const (
	ViewStateYearRain    = "state_year_rain"
	ViewCropStateYear    = "crop_state_year"
	ViewDistrictYearCrop = "district_year_crop"
)

// DatasetFiles maps store views to the files they are derived from, for citations.
func DatasetFiles() map[string]string {
	return map[string]string{
		ViewStateYearRain:    "data/rain_state_year.parquet",
		ViewCropStateYear:    "data/crop_state_year.parquet",
		ViewDistrictYearCrop: "data/season_crop_clean.csv",
	}
}
