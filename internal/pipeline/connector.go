package pipeline

import (
	"context"
	"io"
	"strings"
)

// enrichedMarker tags blob names produced by the enrichment step. A
// remote listing can surface such artifacts from a previous run; they
// must never be re-ingested as source files.
const enrichedMarker = "transformed"

type Credentials struct {
	User     string
	Password string
}

// SourceConnector opens an authenticated session against one client's
// remote file area. Session lifetime is scoped to one client's
// processing window and must be closed on every exit path.
type SourceConnector interface {
	Connect(ctx context.Context, creds Credentials) (SourceSession, error)
}

type SourceSession interface {
	// List returns file names in server-reported order. The order is
	// not stable across calls; callers use it only for determinism
	// within one run.
	List(dir string) ([]string, error)
	Fetch(path string) (io.ReadCloser, error)
	Close() error
}

func isEnrichedArtifact(name string) bool {
	lowered := strings.ToLower(name)
	return strings.HasPrefix(lowered, enrichedMarker) || strings.Contains(lowered, "_"+enrichedMarker+"_")
}

// filterSourceNames drops already-enriched artifacts from a remote
// listing, preserving server order for the rest.
func filterSourceNames(names []string) []string {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" || isEnrichedArtifact(name) {
			continue
		}
		kept = append(kept, name)
	}
	return kept
}
