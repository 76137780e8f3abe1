package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var postgresIntegrationCounter uint64

func TestPostgresIntegrationLedgerControlNumbersAndConflicts(t *testing.T) {
	dsn := postgresIntegrationDSN(t)
	ctx := context.Background()

	ledger, err := NewPostgresLedger(dsn)
	if err != nil {
		t.Fatalf("new postgres ledger: %v", err)
	}
	ledger.tableName = postgresIntegrationTableName("control_master_it")
	ledger.SetWarmupDelay(100 * time.Millisecond)
	t.Cleanup(func() {
		_ = ledger.Close()
		postgresIntegrationDropTable(t, dsn, ledger.tableName)
	})

	if err := ledger.WarmUp(ctx); err != nil {
		t.Fatalf("warm-up failed: %v", err)
	}
	if !ledger.IsWarm(ctx) {
		t.Fatalf("ledger reported cold after warm-up")
	}

	next, err := ledger.NextControlNumber(ctx)
	if err != nil {
		t.Fatalf("next control number failed: %v", err)
	}
	if next != controlNumberFloor+1 {
		t.Fatalf("expected %d from empty ledger, got %d", controlNumberFloor+1, next)
	}

	record := IngestedFile{
		ClientID:      500,
		FileName:      "jan.csv",
		RecordCount:   3,
		LoadTimestamp: time.Now().UTC(),
		SourceSystem:  SourceSystemIngest,
		FileHash:      "deadbeef",
		ControlNumber: next,
	}
	if err := ledger.RecordFile(ctx, record); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := ledger.RecordFile(ctx, record); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate key, got %v", err)
	}

	has, err := ledger.HasFile(ctx, 500, "jan.csv")
	if err != nil || !has {
		t.Fatalf("expected file to be recorded, has=%v err=%v", has, err)
	}
	has, err = ledger.HasFile(ctx, 501, "jan.csv")
	if err != nil || has {
		t.Fatalf("other client must not match, has=%v err=%v", has, err)
	}

	next, err = ledger.NextControlNumber(ctx)
	if err != nil {
		t.Fatalf("second next control number failed: %v", err)
	}
	if next != record.ControlNumber+1 {
		t.Fatalf("expected %d after record, got %d", record.ControlNumber+1, next)
	}
}

func TestPostgresIntegrationLoadRecordsAreSeparatedBySourceSystem(t *testing.T) {
	dsn := postgresIntegrationDSN(t)
	ctx := context.Background()

	ledger, err := NewPostgresLedger(dsn)
	if err != nil {
		t.Fatalf("new postgres ledger: %v", err)
	}
	ledger.tableName = postgresIntegrationTableName("control_master_load_it")
	t.Cleanup(func() {
		_ = ledger.Close()
		postgresIntegrationDropTable(t, dsn, ledger.tableName)
	})

	ingest := IngestedFile{
		ClientID:      500,
		FileName:      "jan.csv",
		LoadTimestamp: time.Now().UTC(),
		SourceSystem:  SourceSystemIngest,
		FileHash:      "aa",
		ControlNumber: 1001,
	}
	if err := ledger.RecordFile(ctx, ingest); err != nil {
		t.Fatalf("record ingest failed: %v", err)
	}
	has, err := ledger.HasLoadRecord(ctx, "jan.csv")
	if err != nil || has {
		t.Fatalf("ingest row must not read as load record, has=%v err=%v", has, err)
	}

	load := ingest
	load.FileName = "a_transformed_jan.csv"
	load.SourceSystem = SourceSystemLoad
	if err := ledger.RecordFile(ctx, load); err != nil {
		t.Fatalf("record load failed: %v", err)
	}
	has, err = ledger.HasLoadRecord(ctx, "a_transformed_jan.csv")
	if err != nil || !has {
		t.Fatalf("expected load record, has=%v err=%v", has, err)
	}
}

func postgresIntegrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("INVOICEPIPE_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set INVOICEPIPE_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	return dsn
}

func postgresIntegrationTableName(prefix string) string {
	n := atomic.AddUint64(&postgresIntegrationCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), n)
}

func postgresIntegrationDropTable(t *testing.T, dsn, tableName string) {
	t.Helper()
	if strings.TrimSpace(dsn) == "" || strings.TrimSpace(tableName) == "" {
		return
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres for cleanup failed: %v", err)
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(tableName))
	if _, err := db.ExecContext(ctx, query); err != nil {
		t.Fatalf("drop cleanup table %q failed: %v", tableName, err)
	}
}
