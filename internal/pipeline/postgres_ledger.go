package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
)

const (
	ledgerTableName          = "control_master"
	postgresOperationTimeout = 10 * time.Second
	defaultWarmupDelay       = 30 * time.Second
	uniqueViolationCode      = "23505"
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

type PostgresLedger struct {
	dsn         string
	tableName   string
	warmupDelay time.Duration
	openDB      sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresLedger(dsn string) (*PostgresLedger, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}
	return &PostgresLedger{
		dsn:         dsn,
		tableName:   ledgerTableName,
		warmupDelay: defaultWarmupDelay,
		openDB:      sql.Open,
	}, nil
}

// SetWarmupDelay overrides the back-off before the warm-up retry.
func (l *PostgresLedger) SetWarmupDelay(delay time.Duration) {
	if l == nil || delay <= 0 {
		return
	}
	l.warmupDelay = delay
}

func (l *PostgresLedger) NextControlNumber(ctx context.Context) (int64, error) {
	if err := l.ensureReady(); err != nil {
		return 0, err
	}
	opCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(control_no), %d) + 1 FROM %s",
		controlNumberFloor,
		quoteIdentifier(l.tableName),
	)
	var next int64
	if err := l.db.QueryRowContext(opCtx, query).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func (l *PostgresLedger) HasFile(ctx context.Context, clientID int64, fileName string) (bool, error) {
	if err := l.ensureReady(); err != nil {
		return false, err
	}
	opCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT 1 FROM %s WHERE file_name = $1 AND client_id = $2",
		quoteIdentifier(l.tableName),
	)
	var one int
	err := l.db.QueryRowContext(opCtx, query, fileName, clientID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *PostgresLedger) HasLoadRecord(ctx context.Context, fileName string) (bool, error) {
	if err := l.ensureReady(); err != nil {
		return false, err
	}
	opCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT 1 FROM %s WHERE file_name = $1 AND source_system = $2",
		quoteIdentifier(l.tableName),
	)
	var one int
	err := l.db.QueryRowContext(opCtx, query, fileName, SourceSystemLoad).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *PostgresLedger) RecordFile(ctx context.Context, file IngestedFile) error {
	if strings.TrimSpace(file.FileName) == "" {
		return ErrInvalidInput
	}
	if err := l.ensureReady(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (client_id, file_name, record_count, load_timestamp, source_system, file_hash, control_no)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, quoteIdentifier(l.tableName))
	_, err := l.db.ExecContext(opCtx, query,
		file.ClientID,
		file.FileName,
		file.RecordCount,
		file.LoadTimestamp.UTC(),
		file.SourceSystem,
		file.FileHash,
		file.ControlNumber,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: (%s, %d)", ErrConflict, file.FileName, file.ClientID)
	}
	return err
}

// IsWarm reports whether the warehouse answers a single ping.
func (l *PostgresLedger) IsWarm(ctx context.Context) bool {
	if err := l.ensureReady(); err != nil {
		return false
	}
	opCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	return l.db.PingContext(opCtx) == nil
}

// WarmUp pings the warehouse, retrying once after a fixed back-off.
// Serverless SQL tiers pause between batch runs and refuse the first
// connection while resuming.
func (l *PostgresLedger) WarmUp(ctx context.Context) error {
	if err := l.ensureReady(); err != nil {
		return err
	}
	return probeWithRetry(ctx, 2, l.warmupDelay, func(probeCtx context.Context) error {
		opCtx, cancel := context.WithTimeout(probeCtx, postgresOperationTimeout)
		defer cancel()
		return l.db.PingContext(opCtx)
	})
}

func (l *PostgresLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// DB exposes the underlying handle so the loader can share one
// connection pool between the ledger and the warehouse tables.
func (l *PostgresLedger) DB() (*sql.DB, error) {
	if err := l.ensureReady(); err != nil {
		return nil, err
	}
	return l.db, nil
}

func (l *PostgresLedger) ensureReady() error {
	if l == nil {
		return ErrInvalidInput
	}
	l.initOnce.Do(func() {
		db, err := l.openDB("postgres", l.dsn)
		if err != nil {
			l.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				control_no BIGINT NOT NULL,
				client_id BIGINT NOT NULL,
				file_name TEXT NOT NULL,
				record_count INTEGER NOT NULL,
				load_timestamp TIMESTAMPTZ NOT NULL,
				source_system TEXT NOT NULL,
				file_hash TEXT NOT NULL,
				UNIQUE (file_name, client_id)
			)`, quoteIdentifier(l.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			l.initErr = err
			return
		}
		l.db = db
	})
	return l.initErr
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}

func quoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
