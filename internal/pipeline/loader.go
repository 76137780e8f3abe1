package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

const tabularExtension = ".csv"

// Loader turns enriched files into normalized warehouse rows: scan the
// enriched container, skip files already load-recorded in the ledger,
// classify each by carrier, validate and reorder columns, insert in
// one transaction per file, then record the load.
type Loader struct {
	Store             BlobStore
	Ledger            Ledger
	Warehouse         Warehouse
	EnrichedContainer string
}

type LoadSummary struct {
	FilesLoaded  int
	RowsInserted int
	FilesSkipped int
	FilesFailed  int
}

func (l *Loader) Run(ctx context.Context) (LoadSummary, error) {
	var summary LoadSummary
	if l == nil || l.Store == nil || l.Ledger == nil || l.Warehouse == nil {
		return summary, ErrInvalidInput
	}
	if strings.TrimSpace(l.EnrichedContainer) == "" {
		return summary, fmt.Errorf("%w: missing enriched container", ErrInvalidInput)
	}

	// No per-file recovery is possible without a warehouse connection,
	// so a failed warm-up is fatal for the whole load run.
	if err := l.Ledger.WarmUp(ctx); err != nil {
		return summary, fmt.Errorf("ledger warm-up: %w", err)
	}

	names, err := l.Store.List(ctx, l.EnrichedContainer)
	if err != nil {
		return summary, fmt.Errorf("list %s: %w", l.EnrichedContainer, err)
	}
	for _, name := range names {
		if !strings.HasSuffix(strings.ToLower(name), tabularExtension) {
			continue
		}
		l.loadFile(ctx, name, &summary)
	}
	return summary, nil
}

func (l *Loader) loadFile(ctx context.Context, name string, summary *LoadSummary) {
	loaded, err := l.Ledger.HasLoadRecord(ctx, name)
	if err != nil {
		log.Printf("load: file=%s ledger check failed: %v", name, err)
		summary.FilesFailed++
		return
	}
	if loaded {
		log.Printf("load: file=%s already loaded, skipping", name)
		summary.FilesSkipped++
		return
	}

	data, err := l.Store.Get(ctx, l.EnrichedContainer, name)
	if err != nil {
		log.Printf("load: file=%s download failed: %v", name, err)
		summary.FilesFailed++
		return
	}
	table, err := parseTable(data)
	if err != nil {
		log.Printf("load: file=%s parse failed: %v", name, err)
		summary.FilesFailed++
		return
	}

	carrierValue := table.carrier()
	carrier, ok := LookupCarrier(carrierValue)
	if !ok {
		// Left unrecorded so the file is retried once the source
		// data is fixed.
		log.Printf("load: file=%s unknown carrier %q, skipping", name, carrierValue)
		summary.FilesSkipped++
		return
	}

	rows, err := table.reorder(carrier)
	if err != nil {
		log.Printf("load: file=%s carrier=%s rejected: %v", name, carrier.Name, err)
		summary.FilesFailed++
		return
	}

	duplicate := false
	err = l.Warehouse.InsertRows(ctx, carrier, rows)
	switch {
	case errors.Is(err, ErrDuplicateLoad):
		log.Printf("load: file=%s duplicate rows in %s, treating as already loaded", name, carrier.Table)
		duplicate = true
	case err != nil:
		log.Printf("load: file=%s insert into %s failed: %v", name, carrier.Table, err)
		summary.FilesFailed++
		return
	}

	record := IngestedFile{
		ClientID:      table.clientID(),
		FileName:      name,
		RecordCount:   len(rows),
		LoadTimestamp: time.Now().UTC(),
		SourceSystem:  SourceSystemLoad,
		FileHash:      contentHash(data),
		ControlNumber: table.controlNumber(),
	}
	if duplicate {
		record.RecordCount = 0
	}
	err = l.Ledger.RecordFile(ctx, record)
	if err != nil && !errors.Is(err, ErrConflict) {
		log.Printf("load: file=%s ledger record failed: %v", name, err)
		summary.FilesFailed++
		return
	}
	if duplicate {
		summary.FilesSkipped++
		return
	}
	log.Printf("load: file=%s carrier=%s rows=%d", name, carrier.Name, len(rows))
	summary.FilesLoaded++
	summary.RowsInserted += len(rows)
}

// enrichedTable is one parsed enriched file with a normalized-name
// column index. The two lineage columns are renamed to the
// warehouse's identifiers (clientid becomes childid) before matching.
type enrichedTable struct {
	columns map[string]int
	rows    [][]string
}

func parseTable(data []byte) (*enrichedTable, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrParse)
	}
	columns := make(map[string]int, len(records[0]))
	for i, rawName := range records[0] {
		key := normalizeColumnName(rawName)
		if key == clientIDColumn {
			key = "childid"
		}
		if _, exists := columns[key]; !exists {
			columns[key] = i
		}
	}
	return &enrichedTable{columns: columns, rows: records[1:]}, nil
}

func (t *enrichedTable) field(row []string, column string) string {
	idx, ok := t.columns[normalizeColumnName(column)]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func (t *enrichedTable) carrier() string {
	if len(t.rows) == 0 {
		return ""
	}
	return strings.TrimSpace(t.field(t.rows[0], "carrier"))
}

func (t *enrichedTable) clientID() int64 {
	if len(t.rows) == 0 {
		return 0
	}
	id, _ := strconv.ParseInt(strings.TrimSpace(t.field(t.rows[0], "childid")), 10, 64)
	return id
}

func (t *enrichedTable) controlNumber() int64 {
	if len(t.rows) == 0 {
		return 0
	}
	controlNumber, _ := strconv.ParseInt(strings.TrimSpace(t.field(t.rows[0], controlNumberColumn)), 10, 64)
	return controlNumber
}

// reorder projects every row onto the carrier's exact column sequence.
// Any expected column absent from the file fails the whole file; no
// partial insert is possible downstream of a mismatch.
func (t *enrichedTable) reorder(carrier Carrier) ([][]string, error) {
	indexes := make([]int, len(carrier.Columns))
	missing := make([]string, 0)
	for i, column := range carrier.Columns {
		idx, ok := t.columns[normalizeColumnName(column)]
		if !ok {
			missing = append(missing, column)
			continue
		}
		indexes[i] = idx
	}
	if len(missing) > 0 {
		return nil, &SchemaMismatchError{Carrier: carrier.Name, Missing: missing}
	}
	rows := make([][]string, 0, len(t.rows))
	for _, row := range t.rows {
		out := make([]string, len(indexes))
		for i, idx := range indexes {
			if idx < len(row) {
				out[i] = row[idx]
			}
		}
		rows = append(rows, out)
	}
	return rows, nil
}
