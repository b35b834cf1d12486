package query

import (
	"database/sql"
	"strings"

	"github.com/nnnkkk7/agriqa/server/types"
)

// Logical column types reported to callers.
const (
	TypeInteger     = "INTEGER"
	TypeFloat       = "FLOAT"
	TypeDecimal     = "DECIMAL"
	TypeText        = "TEXT"
	TypeBoolean     = "BOOLEAN"
	TypeDate        = "DATE"
	TypeTime        = "TIME"
	TypeTimestamp   = "TIMESTAMP"
	TypeTimestampTZ = "TIMESTAMP_TZ"
	TypeBinary      = "BINARY"
	TypeList        = "LIST"
	TypeStruct      = "STRUCT"
	TypeJSON        = "JSON"
)

// TypeMapper maps DuckDB column types to logical column types.
type TypeMapper struct {
	typeMapping map[string]string
}

// NewTypeMapper creates a new type mapper with default mappings.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{
		typeMapping: map[string]string{
			"BIGINT":       TypeInteger,
			"INTEGER":      TypeInteger,
			"INT":          TypeInteger,
			"SMALLINT":     TypeInteger,
			"TINYINT":      TypeInteger,
			"HUGEINT":      TypeInteger,
			"UBIGINT":      TypeInteger,
			"UINTEGER":     TypeInteger,
			"USMALLINT":    TypeInteger,
			"UTINYINT":     TypeInteger,
			"UHUGEINT":     TypeInteger,
			"DOUBLE":       TypeFloat,
			"FLOAT":        TypeFloat,
			"REAL":         TypeFloat,
			"DECIMAL":      TypeDecimal,
			"NUMERIC":      TypeDecimal,
			"VARCHAR":      TypeText,
			"TEXT":         TypeText,
			"STRING":       TypeText,
			"UUID":         TypeText,
			"INTERVAL":     TypeText,
			"ENUM":         TypeText,
			"BOOLEAN":      TypeBoolean,
			"BOOL":         TypeBoolean,
			"DATE":         TypeDate,
			"TIME":         TypeTime,
			"TIMESTAMP":    TypeTimestamp,
			"TIMESTAMP_NS": TypeTimestamp,
			"TIMESTAMP_MS": TypeTimestamp,
			"TIMESTAMP_S":  TypeTimestamp,
			"TIMESTAMPTZ":  TypeTimestampTZ,
			"BLOB":         TypeBinary,
			"BYTEA":        TypeBinary,
			"LIST":         TypeList,
			"ARRAY":        TypeList,
			"STRUCT":       TypeStruct,
			"MAP":          TypeStruct,
			"JSON":         TypeJSON,
		},
	}
}

// MapDuckDBType converts a DuckDB type name to its logical type. Parameterised
// names such as DECIMAL(18,3) or INTEGER[] map by their base name.
func (m *TypeMapper) MapDuckDBType(duckType string) string {
	name := strings.ToUpper(strings.TrimSpace(duckType))
	if strings.HasSuffix(name, "[]") {
		return TypeList
	}
	if i := strings.IndexByte(name, '('); i > 0 {
		name = name[:i]
	}
	if t, ok := m.typeMapping[name]; ok {
		return t
	}
	return TypeText
}

// InferRowType generates column metadata from column names and optional sql.Rows.
func (m *TypeMapper) InferRowType(columns []string, rows *sql.Rows) []types.ColumnMetadata {
	rowType := make([]types.ColumnMetadata, len(columns))

	var columnTypes []*sql.ColumnType
	if rows != nil {
		if ct, err := rows.ColumnTypes(); err == nil {
			columnTypes = ct
		}
	}

	for i, col := range columns {
		meta := types.ColumnMetadata{
			Name:     col,
			Type:     TypeText,
			Nullable: true,
		}

		if i < len(columnTypes) {
			meta.Type = m.MapDuckDBType(columnTypes[i].DatabaseTypeName())
			if length, ok := columnTypes[i].Length(); ok {
				meta.Length = length
			}
			if precision, scale, ok := columnTypes[i].DecimalSize(); ok {
				meta.Precision = precision
				meta.Scale = scale
			}
			if nullable, ok := columnTypes[i].Nullable(); ok {
				meta.Nullable = nullable
			}
		}

		rowType[i] = meta
	}

	return rowType
}

var defaultTypeMapper = NewTypeMapper()

// InferColumnMetadata is a convenience function using the default mapper.
func InferColumnMetadata(columns []string, rows *sql.Rows) []types.ColumnMetadata {
	return defaultTypeMapper.InferRowType(columns, rows)
}
