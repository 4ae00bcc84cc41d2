package chat

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/cfcgs/cfcgs-tracker-backend/pkg/database"
	"github.com/cfcgs/cfcgs-tracker-backend/pkg/logging"
)

const defaultQueryTimeout = 30 * time.Second

// Sentinel errors carrying sanitized user messages. Raw database errors are
// logged, never surfaced.
var (
	ErrInvalidQuery = errors.New(msgQueryFailed)
	ErrExecution    = errors.New(msgUnexpected)
)

// Executor runs generated SQL and maps failures to safe messages.
type Executor struct {
	db      database.PostgresConn
	timeout time.Duration
	logger  logging.Logger
}

func NewExecutor(db database.PostgresConn, queryTimeout time.Duration, logger logging.Logger) *Executor {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &Executor{db: db, timeout: queryTimeout, logger: logger}
}

// Run executes the query inside a read-only transaction and returns column
// names plus rows as column→value maps.
func (e *Executor) Run(ctx context.Context, query string) ([]string, []map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		e.logger.WithError(err).Error("Failed to open transaction")
		return nil, nil, ErrExecution
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			e.logger.WithError(err).WithField("code", string(pqErr.Code)).Warn("Generated query rejected by database")
			return nil, nil, ErrInvalidQuery
		}
		e.logger.WithError(err).Error("Query execution failed")
		return nil, nil, ErrExecution
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		e.logger.WithError(err).Error("Failed to read result columns")
		return nil, nil, ErrExecution
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			e.logger.WithError(err).Error("Failed to scan result row")
			return nil, nil, ErrExecution
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
			} else {
				row[column] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		e.logger.WithError(err).Error("Result iteration failed")
		return nil, nil, ErrExecution
	}
	if err := tx.Commit(); err != nil {
		e.logger.WithError(err).Error("Failed to commit read transaction")
		return nil, nil, ErrExecution
	}
	return columns, results, nil
}
