package pipeline

import (
	"context"
	"log"
)

// WipeContainers deletes every blob in the given containers. Admin use
// only: it removes the idempotency evidence the pipeline relies on, so
// a following ingest run re-fetches everything. Individual delete
// failures are logged and do not stop the sweep.
func WipeContainers(ctx context.Context, store BlobStore, containers ...string) (int, error) {
	if store == nil {
		return 0, ErrInvalidInput
	}
	deleted := 0
	for _, container := range containers {
		names, err := store.List(ctx, container)
		if err != nil {
			return deleted, err
		}
		if len(names) == 0 {
			log.Printf("wipe: container=%s already empty", container)
			continue
		}
		for _, name := range names {
			if err := store.Delete(ctx, container, name); err != nil {
				log.Printf("wipe: delete %s/%s failed: %v", container, name, err)
				continue
			}
			deleted++
			log.Printf("wipe: deleted %s/%s", container, name)
		}
	}
	return deleted, nil
}
