package pipeline

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

type LedgerFactory func(dsn string) (Ledger, error)
type BlobStoreFactory func(dsn string) (BlobStore, error)
type ConnectorFactory func(dsn string) (SourceConnector, error)

var storeFactoryRegistry = struct {
	mu                 sync.RWMutex
	ledgerFactories    map[string]LedgerFactory
	blobStoreFactories map[string]BlobStoreFactory
	connectorFactories map[string]ConnectorFactory
}{
	ledgerFactories:    map[string]LedgerFactory{},
	blobStoreFactories: map[string]BlobStoreFactory{},
	connectorFactories: map[string]ConnectorFactory{},
}

func RegisterLedgerFactory(scheme string, factory LedgerFactory) {
	scheme = normalizeScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	storeFactoryRegistry.mu.Lock()
	defer storeFactoryRegistry.mu.Unlock()
	storeFactoryRegistry.ledgerFactories[scheme] = factory
}

func RegisterBlobStoreFactory(scheme string, factory BlobStoreFactory) {
	scheme = normalizeScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	storeFactoryRegistry.mu.Lock()
	defer storeFactoryRegistry.mu.Unlock()
	storeFactoryRegistry.blobStoreFactories[scheme] = factory
}

func RegisterConnectorFactory(scheme string, factory ConnectorFactory) {
	scheme = normalizeScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	storeFactoryRegistry.mu.Lock()
	defer storeFactoryRegistry.mu.Unlock()
	storeFactoryRegistry.connectorFactories[scheme] = factory
}

func lookupLedgerFactory(scheme string) (LedgerFactory, bool) {
	scheme = normalizeScheme(scheme)
	storeFactoryRegistry.mu.RLock()
	defer storeFactoryRegistry.mu.RUnlock()
	factory, ok := storeFactoryRegistry.ledgerFactories[scheme]
	return factory, ok
}

func lookupBlobStoreFactory(scheme string) (BlobStoreFactory, bool) {
	scheme = normalizeScheme(scheme)
	storeFactoryRegistry.mu.RLock()
	defer storeFactoryRegistry.mu.RUnlock()
	factory, ok := storeFactoryRegistry.blobStoreFactories[scheme]
	return factory, ok
}

func lookupConnectorFactory(scheme string) (ConnectorFactory, bool) {
	scheme = normalizeScheme(scheme)
	storeFactoryRegistry.mu.RLock()
	defer storeFactoryRegistry.mu.RUnlock()
	factory, ok := storeFactoryRegistry.connectorFactories[scheme]
	return factory, ok
}

func BuildLedgerFromDSN(dsn string) (Ledger, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty ledger dsn", ErrInvalidInput)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := normalizeScheme(parsed.Scheme)
	if factory, ok := lookupLedgerFactory(scheme); ok {
		return factory(dsn)
	}
	switch scheme {
	case "postgres", "postgresql":
		return NewPostgresLedger(dsn)
	case "memory", "mem", "inmem":
		return NewMemoryLedger(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger scheme: %s", scheme)
	}
}

// BuildBlobStoreFromDSN resolves azblob://account?key=…, file:///dir
// and mem:// store locations. A raw Azure connection string (no URL
// scheme) is accepted as-is for Azurite-style setups.
func BuildBlobStoreFromDSN(dsn string) (BlobStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty blob store dsn", ErrInvalidInput)
	}
	if strings.Contains(dsn, "AccountName=") {
		return NewAzureBlobStoreFromConnectionString(dsn)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := normalizeScheme(parsed.Scheme)
	if factory, ok := lookupBlobStoreFactory(scheme); ok {
		return factory(dsn)
	}
	switch scheme {
	case "azblob":
		account := parsed.Host
		key := parsed.Query().Get("key")
		return NewAzureBlobStore(account, key)
	case "", "file":
		path, pathErr := dsnPath(parsed, dsn)
		if pathErr != nil {
			return nil, pathErr
		}
		return NewDirBlobStore(path)
	case "memory", "mem", "inmem":
		return NewMemoryBlobStore(), nil
	default:
		return nil, fmt.Errorf("unsupported blob store scheme: %s", scheme)
	}
}

func BuildConnectorFromDSN(dsn string) (SourceConnector, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty source dsn", ErrInvalidInput)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := normalizeScheme(parsed.Scheme)
	if factory, ok := lookupConnectorFactory(scheme); ok {
		return factory(dsn)
	}
	switch scheme {
	case "sftp":
		port := 22
		if raw := parsed.Port(); raw != "" {
			port, err = strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: sftp port %q", ErrInvalidInput, raw)
			}
		}
		return NewSFTPConnector(parsed.Hostname(), port)
	case "", "file":
		path, pathErr := dsnPath(parsed, dsn)
		if pathErr != nil {
			return nil, pathErr
		}
		return NewDirConnector(path)
	default:
		return nil, fmt.Errorf("unsupported source scheme: %s", scheme)
	}
}

func dsnPath(parsed *url.URL, raw string) (string, error) {
	if parsed.Scheme == "" {
		return raw, nil
	}
	path := parsed.Path
	if parsed.Host != "" {
		// file://relative/dir parses the first segment as a host.
		path = filepath.Join(parsed.Host, path)
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: missing path in %s", ErrInvalidInput, raw)
	}
	return path, nil
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}
