package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/parceldata/invoicepipe/internal/pipeline"
)

func main() {
	// Deployment keeps credentials in a .env next to the binary;
	// absence is fine, real env wins either way.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "ingest":
		err = runIngest(context.Background())
	case "load":
		err = runLoad(context.Background())
	case "check":
		err = runCheck(context.Background())
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: invoicepipe <command>

commands:
  ingest   fetch new client files from the remote drop, enrich and store them
  load     load enriched files into the carrier warehouse tables
  check    verify remote-drop connectivity for every configured client`)
}

func runIngest(ctx context.Context) error {
	connector, err := buildConnectorFromEnv()
	if err != nil {
		return err
	}
	store, err := pipeline.BuildBlobStoreFromDSN(requireEnv("INVOICEPIPE_BLOB_DSN"))
	if err != nil {
		return err
	}
	defer store.Close()
	ledger, err := buildLedgerFromEnv()
	if err != nil {
		return err
	}
	defer ledger.Close()
	clients, err := clientsFromEnv()
	if err != nil {
		return err
	}

	orchestrator := &pipeline.Orchestrator{
		Connector:         connector,
		Store:             store,
		Ledger:            ledger,
		Clients:           clients,
		RemoteDir:         envOr("INVOICEPIPE_REMOTE_DIR", "/upload"),
		RawContainer:      requireEnv("INVOICEPIPE_RAW_CONTAINER"),
		EnrichedContainer: requireEnv("INVOICEPIPE_TRANSFORMED_CONTAINER"),
	}
	summary, err := orchestrator.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("ingest done: ingested=%d skipped=%d failed=%d clients_failed=%d",
		summary.FilesIngested, summary.FilesSkipped, summary.FilesFailed, summary.ClientsFailed)
	if summary.FilesFailed > 0 || summary.ClientsFailed > 0 {
		return fmt.Errorf("%d files and %d clients failed", summary.FilesFailed, summary.ClientsFailed)
	}
	return nil
}

func runLoad(ctx context.Context) error {
	store, err := pipeline.BuildBlobStoreFromDSN(requireEnv("INVOICEPIPE_BLOB_DSN"))
	if err != nil {
		return err
	}
	defer store.Close()
	ledger, err := buildLedgerFromEnv()
	if err != nil {
		return err
	}
	defer ledger.Close()
	warehouse, err := buildWarehouse(ledger)
	if err != nil {
		return err
	}

	loader := &pipeline.Loader{
		Store:             store,
		Ledger:            ledger,
		Warehouse:         warehouse,
		EnrichedContainer: requireEnv("INVOICEPIPE_TRANSFORMED_CONTAINER"),
	}
	summary, err := loader.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("load done: loaded=%d rows=%d skipped=%d failed=%d",
		summary.FilesLoaded, summary.RowsInserted, summary.FilesSkipped, summary.FilesFailed)
	if summary.FilesFailed > 0 {
		return fmt.Errorf("%d files failed", summary.FilesFailed)
	}
	return nil
}

func runCheck(ctx context.Context) error {
	connector, err := buildConnectorFromEnv()
	if err != nil {
		return err
	}
	clients, err := clientsFromEnv()
	if err != nil {
		return err
	}
	remoteDir := envOr("INVOICEPIPE_REMOTE_DIR", "/upload")
	failures := 0
	for _, client := range clients {
		session, err := connector.Connect(ctx, client.Credentials)
		if err != nil {
			log.Printf("check: client=%s connect failed: %v", client.Name, err)
			failures++
			continue
		}
		names, err := session.List(remoteDir)
		_ = session.Close()
		if err != nil {
			log.Printf("check: client=%s list failed: %v", client.Name, err)
			failures++
			continue
		}
		log.Printf("check: client=%s ok, %d files visible in %s", client.Name, len(names), remoteDir)
	}
	if failures > 0 {
		return fmt.Errorf("%d clients unreachable", failures)
	}
	return nil
}

func buildConnectorFromEnv() (pipeline.SourceConnector, error) {
	if dsn := strings.TrimSpace(os.Getenv("INVOICEPIPE_SOURCE_DSN")); dsn != "" {
		return pipeline.BuildConnectorFromDSN(dsn)
	}
	host := requireEnv("SFTP_HOST")
	port := intEnv("SFTP_PORT", 22)
	return pipeline.NewSFTPConnector(host, port)
}

func buildLedgerFromEnv() (pipeline.Ledger, error) {
	ledger, err := pipeline.BuildLedgerFromDSN(requireEnv("INVOICEPIPE_SQL_DSN"))
	if err != nil {
		return nil, err
	}
	if pg, ok := ledger.(*pipeline.PostgresLedger); ok {
		pg.SetWarmupDelay(durationEnv("INVOICEPIPE_WARMUP_DELAY", 30*time.Second))
	}
	return ledger, nil
}

func buildWarehouse(ledger pipeline.Ledger) (pipeline.Warehouse, error) {
	if pg, ok := ledger.(*pipeline.PostgresLedger); ok {
		db, err := pg.DB()
		if err != nil {
			return nil, err
		}
		return pipeline.NewPostgresWarehouse(db)
	}
	return pipeline.NewMemoryWarehouse(), nil
}

// clientsFromEnv parses INVOICEPIPE_CLIENTS ("clientA:12659,clientB:12660")
// and resolves each client's SFTP_<NAME>_USER / SFTP_<NAME>_PASS pair.
func clientsFromEnv() ([]pipeline.ClientConfig, error) {
	raw := strings.TrimSpace(os.Getenv("INVOICEPIPE_CLIENTS"))
	if raw == "" {
		return nil, fmt.Errorf("INVOICEPIPE_CLIENTS is not set")
	}
	clients := make([]pipeline.ClientConfig, 0)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, idRaw, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid client entry %q, want name:id", entry)
		}
		name = strings.TrimSpace(name)
		id, err := strconv.ParseInt(strings.TrimSpace(idRaw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid client id in %q: %v", entry, err)
		}
		envKey := strings.ToUpper(name)
		clients = append(clients, pipeline.ClientConfig{
			Name: name,
			ID:   id,
			Credentials: pipeline.Credentials{
				User:     os.Getenv("SFTP_" + envKey + "_USER"),
				Password: os.Getenv("SFTP_" + envKey + "_PASS"),
			},
		})
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("INVOICEPIPE_CLIENTS has no entries")
	}
	return clients, nil
}

func requireEnv(name string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		log.Fatalf("%s is not set", name)
	}
	return value
}

func envOr(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}
