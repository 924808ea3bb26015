package storage

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/delegate-upgrade-registry/interfaces"
)

// StorageBackendFactory creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
type StorageBackendFactory struct {
	log *slog.Logger
}

// NewStorageBackendFactory creates a new factory instance that can create storage backends.
func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageBackendFactory{
		log: logger,
	}
}

// StorageBackendFor creates a storage backend from a location URI.
//
// Supported schemes:
//   - memory:// - In-process map, for development
//   - file:// - Local filesystem storage
//   - sqlite:// - Single SQLite database file
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - IPFS node mutable file system
//   - vault:// - HashiCorp Vault KV v2
func (sf *StorageBackendFactory) StorageBackendFor(location interfaces.StorageBackendLocation) (interfaces.KVStore, error) {
	switch strings.ToLower(location.Scheme) {
	case "memory":
		return NewMemoryBackend(sf.log), nil
	case "file":
		return sf.createFileBackend(location)
	case "sqlite":
		return sf.createSQLiteBackend(location)
	case "s3":
		return sf.createS3Backend(location)
	case "ipfs":
		return sf.createIPFSBackend(location)
	case "vault":
		return sf.createVaultBackend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// CreateMultiBackend creates a multi-storage backend from a list of location URIs.
// A single location is returned as-is. Unlike content-addressed storage, a mapping
// written to only some of the configured backends is a correctness risk, so any
// location that fails to produce a backend fails the whole call.
func (sf *StorageBackendFactory) CreateMultiBackend(locations []interfaces.StorageBackendLocation) (interfaces.KVStore, error) {
	if len(locations) == 0 {
		return nil, fmt.Errorf("no storage backends configured")
	}

	backends := make([]interfaces.KVStore, 0, len(locations))
	for _, location := range locations {
		backend, err := sf.StorageBackendFor(location)
		if err != nil {
			sf.log.Error("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", location.String()))
			return nil, fmt.Errorf("could not create backend for %s: %w", location.String(), err)
		}
		backends = append(backends, backend)
	}

	if len(backends) == 1 {
		return backends[0], nil
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

// createFileBackend creates a file system storage backend.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *StorageBackendFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.KVStore, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", location.String()))

	path := joinHostPath(location)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, location.String())
	}

	return NewFileBackend(path, sf.log)
}

// createSQLiteBackend creates a SQLite storage backend.
// URI format: sqlite:///absolute/path/registry.db or sqlite://./relative.db
func (sf *StorageBackendFactory) createSQLiteBackend(location interfaces.StorageBackendLocation) (interfaces.KVStore, error) {
	sf.log.Debug("Creating SQLite backend", slog.String("uri", location.String()))

	path := joinHostPath(location)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in sqlite URI %s", interfaces.ErrInvalidLocationURI, location.String())
	}

	return NewSQLiteBackend(path, sf.log)
}

// createS3Backend creates an S3 or S3-compatible storage backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com
func (sf *StorageBackendFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.KVStore, error) {
	sf.log.Debug("Creating S3 backend", slog.String("bucket", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in s3 URI", interfaces.ErrInvalidLocationURI)
	}

	region := location.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if location.Auth != "" {
		parts := strings.SplitN(location.Auth, ":", 2)
		accessKey = parts[0]
		if len(parts) == 2 {
			secretKey = parts[1]
		}
	}

	return NewS3Backend(location.Host, strings.TrimPrefix(location.Path, "/"), region, location.GetParam("endpoint"), accessKey, secretKey, sf.log)
}

// createIPFSBackend creates an IPFS storage backend.
// URI format: ipfs://host:port/?root=/registry&timeout=30s (a URI path is also accepted as root)
func (sf *StorageBackendFactory) createIPFSBackend(location interfaces.StorageBackendLocation) (interfaces.KVStore, error) {
	sf.log.Debug("Creating IPFS backend", slog.String("uri", location.String()))

	host, port, _ := strings.Cut(location.Host, ":")
	if host == "" {
		return nil, fmt.Errorf("%w: missing host in ipfs URI", interfaces.ErrInvalidLocationURI)
	}
	if port == "" {
		port = "5001" // Default IPFS API port
	}

	timeout := 30 * time.Second
	if raw := location.GetParam("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q: %v", interfaces.ErrInvalidLocationURI, raw, err)
		}
		timeout = parsed
	}

	root := location.GetParam("root")
	if root == "" {
		root = location.Path
	}

	return NewIPFSBackend(host, port, root, timeout, sf.log)
}

// createVaultBackend creates a Vault KV v2 storage backend.
// URI format: vault://vault.example.com:8200/mount/path?token=...&tls=true
// The first path segment is the mount, the rest is the data path.
func (sf *StorageBackendFactory) createVaultBackend(location interfaces.StorageBackendLocation) (interfaces.KVStore, error) {
	sf.log.Debug("Creating Vault backend", slog.String("host", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing host in vault URI", interfaces.ErrInvalidLocationURI)
	}

	mount, dataPath, _ := strings.Cut(strings.TrimPrefix(location.Path, "/"), "/")
	if mount == "" {
		mount = "secret"
	}

	scheme := "http"
	if location.GetParamBool("tls") {
		scheme = "https"
	}

	address := fmt.Sprintf("%s://%s", scheme, location.Host)
	return NewVaultBackend(address, mount, dataPath, location.GetParam("token"), sf.log)
}

func joinHostPath(location interfaces.StorageBackendLocation) string {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	return path
}
