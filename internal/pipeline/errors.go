package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuth           = errors.New("authentication failed")
	ErrNetwork        = errors.New("remote source unreachable")
	ErrParse          = errors.New("malformed tabular file")
	ErrWrite          = errors.New("object store write failed")
	ErrConflict       = errors.New("ledger entry already present")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrDuplicateLoad  = errors.New("duplicate load")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
)

type SchemaMismatchError struct {
	Carrier string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("carrier %s file missing columns: %s", e.Carrier, strings.Join(e.Missing, ", "))
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}
