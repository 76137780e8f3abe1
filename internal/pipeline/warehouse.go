package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// Warehouse performs the duplicate-safe batched insert for one file's
// rows: one transaction per file, all rows or none. A uniqueness
// violation on the carrier's (natural key, control number) constraint
// surfaces as ErrDuplicateLoad.
type Warehouse interface {
	InsertRows(ctx context.Context, carrier Carrier, rows [][]string) error
}

type PostgresWarehouse struct {
	db *sql.DB

	initOnce sync.Once
	initErr  error
}

func NewPostgresWarehouse(db *sql.DB) (*PostgresWarehouse, error) {
	if db == nil {
		return nil, ErrInvalidInput
	}
	return &PostgresWarehouse{db: db}, nil
}

func (w *PostgresWarehouse) InsertRows(ctx context.Context, carrier Carrier, rows [][]string) error {
	if w == nil || w.db == nil {
		return ErrInvalidInput
	}
	if err := w.ensureReady(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, carrierInsertQuery(carrier))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if len(row) != len(carrier.Columns) {
			return fmt.Errorf("%w: row has %d values, want %d", ErrInvalidInput, len(row), len(carrier.Columns))
		}
		args := make([]any, len(row))
		for i, value := range row {
			args[i] = value
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateLoad, carrier.Table)
			}
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateLoad, carrier.Table)
		}
		return err
	}
	committed = true
	return nil
}

func (w *PostgresWarehouse) ensureReady() error {
	w.initOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()
		for _, carrier := range RegisteredCarriers() {
			if _, err := w.db.ExecContext(ctx, carrierTableQuery(carrier)); err != nil {
				w.initErr = err
				return
			}
		}
	})
	return w.initErr
}

func carrierTableQuery(carrier Carrier) string {
	defs := make([]string, 0, len(carrier.Columns)+1)
	for _, column := range carrier.Columns {
		switch normalizeColumnName(column) {
		case controlNumberColumn, "childid":
			defs = append(defs, quoteIdentifier(column)+" BIGINT NOT NULL")
		default:
			defs = append(defs, quoteIdentifier(column)+" TEXT")
		}
	}
	defs = append(defs, fmt.Sprintf(
		"UNIQUE (%s, %s)",
		quoteIdentifier(carrier.NaturalKey),
		quoteIdentifier("ControlNo"),
	))
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdentifier(carrier.Table), strings.Join(defs, ", "))
}

func carrierInsertQuery(carrier Carrier) string {
	columns := make([]string, len(carrier.Columns))
	placeholders := make([]string, len(carrier.Columns))
	for i, column := range carrier.Columns {
		columns[i] = quoteIdentifier(column)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(carrier.Table),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
}

// MemoryWarehouse mirrors the duplicate semantics of the Postgres
// tables for tests: all-or-nothing per call, keyed on the carrier's
// (natural key, control number) pair.
type MemoryWarehouse struct {
	mu   sync.Mutex
	keys map[string]bool
	rows map[string][][]string
}

func NewMemoryWarehouse() *MemoryWarehouse {
	return &MemoryWarehouse{keys: map[string]bool{}, rows: map[string][][]string{}}
}

func (w *MemoryWarehouse) InsertRows(ctx context.Context, carrier Carrier, rows [][]string) error {
	if w == nil {
		return ErrInvalidInput
	}
	naturalIdx := -1
	controlIdx := -1
	for i, column := range carrier.Columns {
		switch {
		case column == carrier.NaturalKey:
			naturalIdx = i
		case normalizeColumnName(column) == controlNumberColumn:
			controlIdx = i
		}
	}
	if naturalIdx < 0 || controlIdx < 0 {
		return fmt.Errorf("%w: carrier %s lacks key columns", ErrInvalidInput, carrier.Name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	staged := make([]string, 0, len(rows))
	stagedSet := map[string]bool{}
	for _, row := range rows {
		if len(row) != len(carrier.Columns) {
			return fmt.Errorf("%w: row has %d values, want %d", ErrInvalidInput, len(row), len(carrier.Columns))
		}
		key := carrier.Table + "|" + row[naturalIdx] + "|" + row[controlIdx]
		if w.keys[key] || stagedSet[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateLoad, carrier.Table)
		}
		staged = append(staged, key)
		stagedSet[key] = true
	}
	for _, key := range staged {
		w.keys[key] = true
	}
	w.rows[carrier.Table] = append(w.rows[carrier.Table], rows...)
	return nil
}

// RowCount reports rows inserted into one carrier table, for tests.
func (w *MemoryWarehouse) RowCount(table string) int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows[table])
}
