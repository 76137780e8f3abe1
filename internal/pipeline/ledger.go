package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Control numbers start above this floor; an empty ledger issues floor+1.
const controlNumberFloor = 1000

const (
	SourceSystemIngest = "pipeline transfer"
	SourceSystemLoad   = "bronze to gold"
)

type IngestedFile struct {
	ClientID      int64
	FileName      string
	RecordCount   int
	LoadTimestamp time.Time
	SourceSystem  string
	FileHash      string
	ControlNumber int64
}

type Ledger interface {
	NextControlNumber(ctx context.Context) (int64, error)
	HasFile(ctx context.Context, clientID int64, fileName string) (bool, error)
	HasLoadRecord(ctx context.Context, fileName string) (bool, error)
	RecordFile(ctx context.Context, file IngestedFile) error
	// IsWarm is a cheap liveness probe; WarmUp establishes the
	// connection and retries once after a fixed back-off.
	IsWarm(ctx context.Context) bool
	WarmUp(ctx context.Context) error
	Close() error
}

type memoryLedgerKey struct {
	clientID int64
	fileName string
}

type MemoryLedger struct {
	mu      sync.Mutex
	entries map[memoryLedgerKey]IngestedFile
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: map[memoryLedgerKey]IngestedFile{}}
}

func (l *MemoryLedger) NextControlNumber(ctx context.Context) (int64, error) {
	if l == nil {
		return 0, ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next := int64(controlNumberFloor)
	for _, entry := range l.entries {
		if entry.ControlNumber > next {
			next = entry.ControlNumber
		}
	}
	return next + 1, nil
}

func (l *MemoryLedger) HasFile(ctx context.Context, clientID int64, fileName string) (bool, error) {
	if l == nil {
		return false, ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[memoryLedgerKey{clientID: clientID, fileName: fileName}]
	return ok, nil
}

func (l *MemoryLedger) HasLoadRecord(ctx context.Context, fileName string) (bool, error) {
	if l == nil {
		return false, ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.entries {
		if key.fileName == fileName && entry.SourceSystem == SourceSystemLoad {
			return true, nil
		}
	}
	return false, nil
}

func (l *MemoryLedger) RecordFile(ctx context.Context, file IngestedFile) error {
	if l == nil || strings.TrimSpace(file.FileName) == "" {
		return ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := memoryLedgerKey{clientID: file.ClientID, fileName: file.FileName}
	if _, ok := l.entries[key]; ok {
		return ErrConflict
	}
	l.entries[key] = file
	return nil
}

func (l *MemoryLedger) IsWarm(ctx context.Context) bool {
	return l != nil
}

func (l *MemoryLedger) WarmUp(ctx context.Context) error {
	if l == nil {
		return ErrInvalidInput
	}
	return nil
}

func (l *MemoryLedger) Close() error {
	return nil
}

// Entries returns a copy of every ledger row, for tests and diagnostics.
func (l *MemoryLedger) Entries() []IngestedFile {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rows := make([]IngestedFile, 0, len(l.entries))
	for _, entry := range l.entries {
		rows = append(rows, entry)
	}
	return rows
}
