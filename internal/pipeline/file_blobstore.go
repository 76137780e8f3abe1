package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirBlobStore keeps each container as a subdirectory and each blob as
// a file, for local runs and tests. Blob names are flat; path
// separators are rejected so a name can never escape its container.
type DirBlobStore struct {
	root string
}

func NewDirBlobStore(root string) (*DirBlobStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, ErrInvalidInput
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DirBlobStore{root: root}, nil
}

func (s *DirBlobStore) blobPath(container, name string) (string, error) {
	if s == nil {
		return "", ErrInvalidInput
	}
	if strings.TrimSpace(container) == "" || strings.TrimSpace(name) == "" {
		return "", ErrInvalidInput
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsAny(container, `/\`) {
		return "", ErrInvalidInput
	}
	return filepath.Join(s.root, container, name), nil
}

func (s *DirBlobStore) Exists(ctx context.Context, container, name string) (bool, error) {
	path, err := s.blobPath(container, name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *DirBlobStore) Put(ctx context.Context, container, name string, data []byte) error {
	path, err := s.blobPath(container, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *DirBlobStore) Get(ctx context.Context, container, name string) ([]byte, error) {
	path, err := s.blobPath(container, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, name)
	}
	return data, err
}

func (s *DirBlobStore) List(ctx context.Context, container string) ([]string, error) {
	if s == nil || strings.TrimSpace(container) == "" {
		return nil, ErrInvalidInput
	}
	entries, err := os.ReadDir(filepath.Join(s.root, container))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *DirBlobStore) Delete(ctx context.Context, container, name string) error {
	path, err := s.blobPath(container, name)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, container, name)
	}
	return err
}

func (s *DirBlobStore) Close() error {
	return nil
}
