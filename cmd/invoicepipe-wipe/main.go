package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/parceldata/invoicepipe/internal/pipeline"
)

// Admin utility: empties the archival and enriched containers. With
// the blobs gone the next ingest run re-fetches and re-enriches every
// remote file, so this is strictly for resetting test environments.
func main() {
	_ = godotenv.Load()

	confirm := flag.Bool("confirm", false, "actually delete; without it the tool only prints the target containers")
	flag.Parse()

	rawContainer := requireEnv("INVOICEPIPE_RAW_CONTAINER")
	enrichedContainer := requireEnv("INVOICEPIPE_TRANSFORMED_CONTAINER")
	if !*confirm {
		fmt.Fprintf(os.Stderr, "would wipe containers %q and %q; re-run with -confirm\n", rawContainer, enrichedContainer)
		os.Exit(2)
	}

	store, err := pipeline.BuildBlobStoreFromDSN(requireEnv("INVOICEPIPE_BLOB_DSN"))
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}
	defer store.Close()

	deleted, err := pipeline.WipeContainers(context.Background(), store, rawContainer, enrichedContainer)
	if err != nil {
		log.Fatalf("wipe failed after %d deletions: %v", deleted, err)
	}
	log.Printf("wipe done: %d blobs deleted", deleted)
}

func requireEnv(name string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		log.Fatalf("%s is not set", name)
	}
	return value
}
