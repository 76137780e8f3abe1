package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestPutIfAbsentWritesOnceAndSkipsAfter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()

	written, err := putIfAbsent(ctx, store, "raw", "a_jan.csv", []byte("one"))
	if err != nil || !written {
		t.Fatalf("expected first write to happen, got written=%v err=%v", written, err)
	}
	written, err = putIfAbsent(ctx, store, "raw", "a_jan.csv", []byte("two"))
	if err != nil {
		t.Fatalf("second put errored: %v", err)
	}
	if written {
		t.Fatalf("expected second write to be skipped")
	}
	data, err := store.Get(ctx, "raw", "a_jan.csv")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(data) != "one" {
		t.Fatalf("existing blob was overwritten: %q", data)
	}
}

func TestMemoryBlobStoreListIsPerContainer(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	for _, put := range []struct{ container, name string }{
		{"raw", "b.csv"},
		{"raw", "a.csv"},
		{"enriched", "c.csv"},
	} {
		if err := store.Put(ctx, put.container, put.name, []byte("x")); err != nil {
			t.Fatalf("put %s/%s failed: %v", put.container, put.name, err)
		}
	}
	names, err := store.List(ctx, "raw")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"a.csv", "b.csv"}) {
		t.Fatalf("unexpected listing: %v", names)
	}
}

func TestDirBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewDirBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new dir store failed: %v", err)
	}

	exists, err := store.Exists(ctx, "raw", "a.csv")
	if err != nil || exists {
		t.Fatalf("expected absent blob, got exists=%v err=%v", exists, err)
	}
	if err := store.Put(ctx, "raw", "a.csv", []byte("payload")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	exists, err = store.Exists(ctx, "raw", "a.csv")
	if err != nil || !exists {
		t.Fatalf("expected blob present, got exists=%v err=%v", exists, err)
	}
	data, err := store.Get(ctx, "raw", "a.csv")
	if err != nil || string(data) != "payload" {
		t.Fatalf("get mismatch: %q err=%v", data, err)
	}
	names, err := store.List(ctx, "raw")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"a.csv"}) {
		t.Fatalf("unexpected listing: %v", names)
	}
	if err := store.Delete(ctx, "raw", "a.csv"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete(ctx, "raw", "a.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDirBlobStoreRejectsPathSeparators(t *testing.T) {
	ctx := context.Background()
	store, err := NewDirBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new dir store failed: %v", err)
	}
	if err := store.Put(ctx, "raw", "../escape.csv", []byte("x")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for path separator, got %v", err)
	}
}

func TestDirBlobStoreListMissingContainerIsEmpty(t *testing.T) {
	store, err := NewDirBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new dir store failed: %v", err)
	}
	names, err := store.List(context.Background(), "nope")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty listing, got %v", names)
	}
}
