package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"
)

const defaultRemoteDir = "/upload"

type ClientConfig struct {
	Name        string
	ID          int64
	Credentials Credentials
}

type Orchestrator struct {
	Connector         SourceConnector
	Store             BlobStore
	Ledger            Ledger
	Clients           []ClientConfig
	RemoteDir         string
	RawContainer      string
	EnrichedContainer string
}

type IngestSummary struct {
	FilesIngested int
	FilesSkipped  int
	FilesFailed   int
	ClientsFailed int
}

// Run processes every configured client in order, one file at a time.
// Connector faults fail only their client; per-file faults fail only
// their file. A control number is allocated when a file's processing
// starts and is not reclaimed if the file later fails, so the issued
// sequence is strictly increasing but may have gaps.
func (o *Orchestrator) Run(ctx context.Context) (IngestSummary, error) {
	var summary IngestSummary
	if o == nil || o.Connector == nil || o.Store == nil || o.Ledger == nil {
		return summary, ErrInvalidInput
	}
	if strings.TrimSpace(o.RawContainer) == "" || strings.TrimSpace(o.EnrichedContainer) == "" {
		return summary, fmt.Errorf("%w: missing container names", ErrInvalidInput)
	}

	if err := o.Ledger.WarmUp(ctx); err != nil {
		return summary, fmt.Errorf("ledger warm-up: %w", err)
	}
	controlNumber, err := o.Ledger.NextControlNumber(ctx)
	if err != nil {
		return summary, fmt.Errorf("next control number: %w", err)
	}

	for _, client := range o.Clients {
		controlNumber = o.runClient(ctx, client, controlNumber, &summary)
	}
	return summary, nil
}

func (o *Orchestrator) runClient(ctx context.Context, client ClientConfig, controlNumber int64, summary *IngestSummary) int64 {
	log.Printf("ingest: connecting client=%s", client.Name)
	session, err := o.Connector.Connect(ctx, client.Credentials)
	if err != nil {
		log.Printf("ingest: client=%s connect failed: %v", client.Name, err)
		summary.ClientsFailed++
		return controlNumber
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Printf("ingest: client=%s close failed: %v", client.Name, closeErr)
		}
	}()

	remoteDir := o.RemoteDir
	if strings.TrimSpace(remoteDir) == "" {
		remoteDir = defaultRemoteDir
	}
	names, err := session.List(remoteDir)
	if err != nil {
		log.Printf("ingest: client=%s list %s failed: %v", client.Name, remoteDir, err)
		summary.ClientsFailed++
		return controlNumber
	}

	for _, name := range filterSourceNames(names) {
		consumed, err := o.processFile(ctx, session, client, remoteDir, name, controlNumber)
		switch {
		case err == nil && consumed:
			summary.FilesIngested++
		case err == nil:
			summary.FilesSkipped++
		default:
			log.Printf("ingest: client=%s file=%s failed: %v", client.Name, name, err)
			summary.FilesFailed++
		}
		if consumed {
			controlNumber++
		}
	}
	return controlNumber
}

// processFile reports whether the file consumed its control number.
// A fully-skipped file does not; a failed file does (documented gap).
func (o *Orchestrator) processFile(ctx context.Context, session SourceSession, client ClientConfig, remoteDir, name string, controlNumber int64) (bool, error) {
	rawName := rawBlobName(client.Name, name)
	enrichedName := enrichedBlobName(client.Name, name)

	rawPresent, err := o.Store.Exists(ctx, o.RawContainer, rawName)
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %v", ErrWrite, rawName, err)
	}
	recorded, err := o.Ledger.HasFile(ctx, client.ID, name)
	if err != nil {
		return false, fmt.Errorf("ledger check %s: %w", name, err)
	}
	if rawPresent && recorded {
		log.Printf("ingest: client=%s file=%s already processed, skipping", client.Name, name)
		return false, nil
	}

	reader, err := session.Fetch(path.Join(remoteDir, name))
	if err != nil {
		return false, err
	}
	raw, err := io.ReadAll(reader)
	closeErr := reader.Close()
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", ErrNetwork, name, err)
	}
	if closeErr != nil {
		log.Printf("ingest: client=%s file=%s close failed: %v", client.Name, name, closeErr)
	}

	// The control number is consumed from here on.
	enriched, recordCount, err := Enrich(raw, controlNumber, client.ID)
	if err != nil {
		return true, err
	}

	written, err := putIfAbsent(ctx, o.Store, o.RawContainer, rawName, raw)
	if err != nil {
		return true, err
	}
	if !written {
		log.Printf("ingest: blob %s already present, write skipped", rawName)
	}
	written, err = putIfAbsent(ctx, o.Store, o.EnrichedContainer, enrichedName, enriched)
	if err != nil {
		return true, err
	}
	if !written {
		log.Printf("ingest: blob %s already present, write skipped", enrichedName)
	}

	record := IngestedFile{
		ClientID:      client.ID,
		FileName:      name,
		RecordCount:   recordCount,
		LoadTimestamp: time.Now().UTC(),
		SourceSystem:  SourceSystemIngest,
		FileHash:      contentHash(raw),
		ControlNumber: controlNumber,
	}
	err = o.Ledger.RecordFile(ctx, record)
	if errors.Is(err, ErrConflict) {
		log.Printf("ingest: client=%s file=%s already recorded", client.Name, name)
		return true, nil
	}
	if err != nil {
		// Blobs stay put; hasFile still reports false, so the next
		// run retries just the ledger write.
		return true, fmt.Errorf("ledger record %s: %w", name, err)
	}
	log.Printf("ingest: client=%s file=%s controlno=%d records=%d", client.Name, name, controlNumber, recordCount)
	return true, nil
}

func rawBlobName(clientName, fileName string) string {
	return strings.ToLower(clientName) + "_" + fileName
}

func enrichedBlobName(clientName, fileName string) string {
	return strings.ToLower(clientName) + "_" + enrichedMarker + "_" + fileName
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
