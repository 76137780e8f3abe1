package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DirConnector serves a local directory tree as a remote file area,
// for tests and local development. Remote paths stay slash-separated;
// they are mapped onto the host filesystem under root.
type DirConnector struct {
	root string
}

func NewDirConnector(root string) (*DirConnector, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, ErrInvalidInput
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNetwork, root)
	}
	return &DirConnector{root: root}, nil
}

func (c *DirConnector) Connect(ctx context.Context, creds Credentials) (SourceSession, error) {
	if c == nil {
		return nil, ErrInvalidInput
	}
	return &dirSession{root: c.root}, nil
}

type dirSession struct {
	root string
}

func (s *dirSession) resolve(remote string) string {
	cleaned := path.Clean("/" + strings.TrimSpace(remote))
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
}

func (s *dirSession) List(dir string) ([]string, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	entries, err := os.ReadDir(s.resolve(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *dirSession) Fetch(remote string) (io.ReadCloser, error) {
	if s == nil {
		return nil, ErrInvalidInput
	}
	file, err := os.Open(s.resolve(remote))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, remote)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return file, nil
}

func (s *dirSession) Close() error {
	return nil
}
