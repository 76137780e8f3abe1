package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

const (
	controlNumberColumn = "controlno"
	clientIDColumn      = "clientid"
)

// Enrich parses raw as delimited tabular data and prepends the two
// lineage columns, controlno then clientid, to the header and every
// row. Business columns and row order pass through untouched. A file
// with a header and no data rows is valid; record count is 0.
func Enrich(raw []byte, controlNumber, clientID int64) ([]byte, int, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("%w: empty file", ErrParse)
	}

	enriched := make([][]string, 0, len(rows))
	header := append([]string{controlNumberColumn, clientIDColumn}, rows[0]...)
	enriched = append(enriched, header)

	controlValue := strconv.FormatInt(controlNumber, 10)
	clientValue := strconv.FormatInt(clientID, 10)
	for _, row := range rows[1:] {
		enriched = append(enriched, append([]string{controlValue, clientValue}, row...))
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(enriched); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrParse, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return buf.Bytes(), len(rows) - 1, nil
}
