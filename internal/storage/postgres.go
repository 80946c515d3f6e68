// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lib/pq"

	"user-ingest/internal/apperrors"
	"user-ingest/internal/model"
)

// Schema is the DDL of the only table the service touches. Creating it is
// left to operators and tests.
const Schema = `
	CREATE TABLE IF NOT EXISTS users (
		id      UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		email   TEXT NOT NULL,
		name    TEXT NOT NULL
	)`

type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Storage wraps the process-wide connection pool. Every method checks out a
// connection for the duration of one statement and returns it afterwards.
type Storage struct {
	DB *sql.DB
}

// Open configures the pool without connecting. Connections are made lazily,
// so an unreachable server surfaces as an error on the first statement.
func Open(dsn string, opts Options) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	return &Storage{DB: db}, nil
}

// NewStorage opens the pool and verifies the server is reachable.
func NewStorage(ctx context.Context, dsn string, opts Options) (*Storage, error) {
	s, err := Open(dsn, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return s, nil
}

// New wraps an already opened pool.
func New(db *sql.DB) *Storage {
	return &Storage{DB: db}
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrConnection, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

// InsertRecord writes one row inside its own transaction.
func (s *Storage) InsertRecord(ctx context.Context, r *model.Record) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}

	defer func() {
		if err != nil {
			if rErr := tx.Rollback(); rErr != nil && !errors.Is(rErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w, failed to rollback transaction: %w", err, rErr)
			}
		}
	}()

	const query = `
		INSERT INTO users (id, user_id, email, name)
		VALUES ($1, $2, $3, $4)
	`
	if _, err = tx.ExecContext(ctx, query, r.ID, r.UserID, r.Email, r.Name); err != nil {
		return classify(fmt.Errorf("insert record: %w", err))
	}

	if err = tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// ListRecords returns every row of the users table ordered by id. The result
// is never nil.
func (s *Storage) ListRecords(ctx context.Context) ([]model.Record, error) {
	const query = `
		SELECT id, user_id, email, name
		FROM users
		ORDER BY id
	`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(fmt.Errorf("query failed: %w", err))
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	for rows.Next() {
		var r model.Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.Email, &r.Name); err != nil {
			return nil, fmt.Errorf("%w: scan failed: %w", apperrors.ErrPersistence, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate rows: %w", err))
	}

	return records, nil
}

// classify tags err as a connection problem when the pool could not reach
// the server, and as a persistence problem otherwise.
func classify(err error) error {
	if isConnectionError(err) {
		return fmt.Errorf("%w: %w", apperrors.ErrConnection, err)
	}
	return fmt.Errorf("%w: %w", apperrors.ErrPersistence, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08: connection exception
		return pqErr.Code.Class() == "08"
	}
	return false
}
