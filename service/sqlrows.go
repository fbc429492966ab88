package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"google.golang.org/api/iterator"
)

// sqlWarehouse runs statements over a database/sql handle. It backs the
// Snowflake and StarRocks drivers.
type sqlWarehouse struct {
	db   *sql.DB
	name string
}

func (w *sqlWarehouse) Execute(ctx context.Context, sqlText string, stream bool) (RowSource, error) {
	rows, err := w.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, withKind(ErrExecution, err)
	}
	src, err := newSQLRowSource(rows)
	if err != nil {
		_ = rows.Close()
		return nil, withKind(ErrExecution, err)
	}
	if stream {
		slog.DebugContext(ctx, "Streaming rows from cursor", "driver", w.name)
		return src, nil
	}

	defer src.Close()
	all, err := Drain(src)
	if err != nil {
		return nil, withKind(ErrExecution, err)
	}
	return NewSliceSource(src.Columns(), all), nil
}

func (w *sqlWarehouse) Close() error {
	return w.db.Close()
}

func newSQLRowSource(rows *sql.Rows) (RowSource, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}
	dbTypes := make([]string, len(types))
	for i, t := range types {
		dbTypes[i] = strings.ToUpper(t.DatabaseTypeName())
	}

	next := func() (Row, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return Row{}, err
			}
			return Row{}, iterator.Done
		}
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Row{}, err
		}
		for i := range raw {
			raw[i] = convertSQLValue(dbTypes[i], raw[i])
		}
		return Row{Columns: cols, Values: raw}, nil
	}
	return NewCursorSource(cols, next, rows.Close), nil
}

// convertSQLValue turns driver values into JSON friendly scalars. Snowflake
// hands numbers over as text, so numeric column types are parsed back.
func convertSQLValue(dbType string, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch dbType {
	case "FIXED", "NUMBER", "DECIMAL", "NUMERIC", "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "LARGEINT":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "REAL", "FLOAT", "DOUBLE", "FLOAT4", "FLOAT8":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "BOOLEAN":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}
