package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// BlobStore is name-addressed storage with per-container namespaces.
// The pipeline uses two containers: one archival (files exactly as
// received) and one enriched (files with lineage columns added).
type BlobStore interface {
	Exists(ctx context.Context, container, name string) (bool, error)
	Put(ctx context.Context, container, name string, data []byte) error
	Get(ctx context.Context, container, name string) ([]byte, error)
	List(ctx context.Context, container string) ([]string, error)
	Delete(ctx context.Context, container, name string) error
	Close() error
}

// putIfAbsent is the single idempotency policy for blob writes:
// check-then-skip, never overwrite. Returns false when the name was
// already present. The check and the write are not atomic; the
// orchestrator guarantees single-writer-per-name within a run, and a
// concurrent second orchestrator instance for the same client is a
// documented limitation.
func putIfAbsent(ctx context.Context, store BlobStore, container, name string, data []byte) (bool, error) {
	present, err := store.Exists(ctx, container, name)
	if err != nil {
		return false, fmt.Errorf("%w: exists %s/%s: %v", ErrWrite, container, name, err)
	}
	if present {
		return false, nil
	}
	if err := store.Put(ctx, container, name, data); err != nil {
		return false, fmt.Errorf("%w: put %s/%s: %v", ErrWrite, container, name, err)
	}
	return true, nil
}

type memoryBlobKey struct {
	container string
	name      string
}

type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[memoryBlobKey][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: map[memoryBlobKey][]byte{}}
}

func (s *MemoryBlobStore) Exists(ctx context.Context, container, name string) (bool, error) {
	if s == nil {
		return false, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[memoryBlobKey{container: container, name: name}]
	return ok, nil
}

func (s *MemoryBlobStore) Put(ctx context.Context, container, name string, data []byte) error {
	if s == nil || strings.TrimSpace(name) == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[memoryBlobKey{container: container, name: name}] = stored
	return nil
}

func (s *MemoryBlobStore) Get(ctx context.Context, container, name string) ([]byte, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[memoryBlobKey{container: container, name: name}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, name)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryBlobStore) List(ctx context.Context, container string) ([]string, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0)
	for key := range s.blobs {
		if key.container == container {
			names = append(names, key.name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, container, name string) error {
	if s == nil {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryBlobKey{container: container, name: name}
	if _, ok := s.blobs[key]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, container, name)
	}
	delete(s.blobs, key)
	return nil
}

func (s *MemoryBlobStore) Close() error {
	return nil
}
