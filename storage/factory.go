package storage

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ruteri/confidential-move-client/interfaces"
)

// StoreFactory creates key-value stores from location URIs.
type StoreFactory struct {
	log *slog.Logger
}

func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreFactory{log: logger}
}

// StoreFor creates a store from a location URI.
//
// Supported schemes:
//   - memory:// - Process-local store
//   - file:///var/lib/mined/keys - One file per key
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-east-1&endpoint=http://minio:9000
//   - vault://[TOKEN@]vault.example.com:8200/secret/mine?tls=true
func (sf *StoreFactory) StoreFor(uri string) (interfaces.KeyValueStore, error) {
	loc, err := interfaces.NewStoreLocation(uri)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return sf.createFileStore(loc)
	case "s3":
		return sf.createS3Store(loc)
	case "vault":
		return sf.createVaultStore(loc)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// MirroredStoreFor creates a mirrored store over every valid URI. A single
// valid URI yields that store directly.
func (sf *StoreFactory) MirroredStoreFor(uris []string) (interfaces.KeyValueStore, error) {
	backends := make([]interfaces.KeyValueStore, 0, len(uris))

	for _, uri := range uris {
		backend, err := sf.StoreFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create store",
				"err", err,
				slog.String("uri", uri))
			continue
		}
		backends = append(backends, backend)
	}

	switch len(backends) {
	case 0:
		return nil, fmt.Errorf("no valid stores created")
	case 1:
		return backends[0], nil
	default:
		return NewMirroredStore(backends, sf.log), nil
	}
}

func (sf *StoreFactory) createFileStore(loc interfaces.StoreLocation) (interfaces.KeyValueStore, error) {
	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, loc)
	}

	sf.log.Debug("Creating file store", slog.String("path", path))
	return NewFileStore(path, sf.log)
}

func (sf *StoreFactory) createS3Store(loc interfaces.StoreLocation) (interfaces.KeyValueStore, error) {
	bucket := loc.Host
	if bucket == "" {
		return nil, fmt.Errorf("%w: missing bucket in %s", interfaces.ErrInvalidLocationURI, loc)
	}

	region := loc.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if loc.Auth != "" {
		accessKey, secretKey, _ = strings.Cut(loc.Auth, ":")
	}

	sf.log.Debug("Creating S3 store", slog.String("bucket", bucket), slog.String("region", region))
	return NewS3Store(bucket, strings.TrimPrefix(loc.Path, "/"), region, loc.GetParam("endpoint"), accessKey, secretKey, sf.log)
}

func (sf *StoreFactory) createVaultStore(loc interfaces.StoreLocation) (interfaces.KeyValueStore, error) {
	scheme := "http"
	if loc.GetParamBool("tls") {
		scheme = "https"
	}
	address := fmt.Sprintf("%s://%s", scheme, loc.Host)

	parts := strings.SplitN(strings.Trim(loc.Path, "/"), "/", 2)
	mount := parts[0]
	if mount == "" {
		mount = "secret"
	}
	dataPath := ""
	if len(parts) == 2 {
		dataPath = parts[1]
	}

	token := loc.Auth
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}

	sf.log.Debug("Creating Vault store", slog.String("address", address), slog.String("mount", mount))
	return NewVaultStore(address, mount, dataPath, token, sf.log)
}
