package pipeline

import (
	"context"
	"testing"
)

func TestWipeContainersDeletesEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	for _, seed := range []struct{ container, name string }{
		{"raw", "a_jan.csv"},
		{"raw", "b_jan.csv"},
		{"enriched", "a_transformed_jan.csv"},
	} {
		if err := store.Put(ctx, seed.container, seed.name, []byte("x")); err != nil {
			t.Fatalf("seed %s/%s: %v", seed.container, seed.name, err)
		}
	}

	deleted, err := WipeContainers(ctx, store, "raw", "enriched")
	if err != nil {
		t.Fatalf("wipe failed: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deletions, got %d", deleted)
	}
	for _, container := range []string{"raw", "enriched"} {
		names, err := store.List(ctx, container)
		if err != nil {
			t.Fatalf("list %s failed: %v", container, err)
		}
		if len(names) != 0 {
			t.Fatalf("container %s not empty: %v", container, names)
		}
	}
}

func TestWipeContainersEmptyContainerIsFine(t *testing.T) {
	deleted, err := WipeContainers(context.Background(), NewMemoryBlobStore(), "raw")
	if err != nil {
		t.Fatalf("wipe failed: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deletions, got %d", deleted)
	}
}
