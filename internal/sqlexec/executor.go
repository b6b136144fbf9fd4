// Package sqlexec runs SQL statements for the development backend over
// database/sql with the pgx driver, and normalizes results into JSON-safe
// rows and column metadata.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

// DriverName is the database/sql driver the executor opens.
const DriverName = "pgx"

// Column describes one result column.
type Column struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name,omitempty"`
}

// Result is the normalized outcome of one statement.
type Result struct {
	Columns      []Column `json:"columns"`
	Rows         [][]any  `json:"rows"`
	RowsAffected int64    `json:"rows_affected"`
}

// Executor runs statements on a database handle.
type Executor struct {
	DB *sql.DB
}

// New wraps an open handle.
func New(db *sql.DB) *Executor {
	return &Executor{DB: db}
}

// Open connects to dsn with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Executor, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db), nil
}

// Ping checks the database connection.
func (e *Executor) Ping(ctx context.Context) error {
	return e.DB.PingContext(ctx)
}

// Close releases the handle.
func (e *Executor) Close() error {
	return e.DB.Close()
}

// Run executes stmt. With explain set the statement is prefixed with EXPLAIN.
// Statements that return rows are queried; everything else reports rows affected.
func (e *Executor) Run(ctx context.Context, stmt string, explain bool) (Result, error) {
	stmt = strings.TrimSpace(stmt)
	if explain {
		stmt = "EXPLAIN " + stmt
	}
	if ReturnsRows(stmt) {
		return e.query(ctx, stmt)
	}

	res, err := e.DB.ExecContext(ctx, stmt)
	if err != nil {
		return Result{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = 0
	}
	return Result{Columns: []Column{}, Rows: [][]any{}, RowsAffected: n}, nil
}

func (e *Executor) query(ctx context.Context, stmt string) (Result, error) {
	rows, err := e.DB.QueryContext(ctx, stmt)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return Result{}, err
	}
	res := Result{Columns: make([]Column, len(types)), Rows: [][]any{}}
	for i, t := range types {
		res.Columns[i] = Column{Name: t.Name(), TypeName: strings.ToLower(t.DatabaseTypeName())}
	}

	for rows.Next() {
		vals := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, err
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	res.RowsAffected = int64(len(res.Rows))
	return res, nil
}

// normalize converts driver values into JSON-friendly ones.
func normalize(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	case []byte:
		if len(x) == 16 {
			if u, err := uuid.FromBytes(x); err == nil {
				return u.String()
			}
		}
		return fmt.Sprintf("\\x%x", x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}

var rowKeywords = []string{"SELECT", "WITH", "SHOW", "VALUES", "TABLE", "EXPLAIN", "FETCH"}

// ReturnsRows reports whether stmt produces a result set.
func ReturnsRows(stmt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	for _, kw := range rowKeywords {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return strings.Contains(upper, " RETURNING ")
}
