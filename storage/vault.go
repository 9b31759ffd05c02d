package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/confidential-move-client/interfaces"
)

// VaultStore keeps keys in a HashiCorp Vault KV v2 mount.
type VaultStore struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultStore creates a Vault-backed store.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "mine")
//   - token: Vault token; when empty the client falls back to VAULT_TOKEN
func NewVaultStore(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return NewVaultStoreWithClient(client, mountPath, dataPath, log), nil
}

// NewVaultStoreWithClient wraps an existing client.
func NewVaultStoreWithClient(client *api.Client, mountPath, dataPath string, log *slog.Logger) *VaultStore {
	if log == nil {
		log = slog.Default()
	}
	return &VaultStore{
		client:    client,
		mountPath: strings.Trim(mountPath, "/"),
		dataPath:  strings.Trim(dataPath, "/"),
		log:       log,
	}
}

func (s *VaultStore) path(kind, key string) string {
	if s.dataPath == "" {
		return fmt.Sprintf("%s/%s/%s", s.mountPath, kind, key)
	}
	return fmt.Sprintf("%s/%s/%s/%s", s.mountPath, kind, s.dataPath, key)
}

// Get reads the latest version of key.
func (s *VaultStore) Get(ctx context.Context, key string) ([]byte, error) {
	path := s.path("data", key)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		s.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	if secret == nil || secret.Data == nil || secret.Data["data"] == nil {
		return nil, interfaces.ErrKeyNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}

	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}

	return []byte(content), nil
}

// Set writes a new version of key.
func (s *VaultStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	path := s.path("data", key)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": string(value),
		},
	}

	if _, err := s.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		s.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	s.log.Debug("Stored key in Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Delete removes key with all of its versions.
func (s *VaultStore) Delete(ctx context.Context, key string) error {
	path := s.path("metadata", key)

	if _, err := s.client.Logical().DeleteWithContext(ctx, path); err != nil {
		s.log.Error("Failed to delete from Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// Keys lists keys directly under the data path.
func (s *VaultStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	path := strings.TrimSuffix(s.path("metadata", ""), "/")

	secret, err := s.client.Logical().ListWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	raw, _ := secret.Data["keys"].([]interface{})
	var keys []string
	for _, k := range raw {
		key, ok := k.(string)
		if !ok || strings.HasSuffix(key, "/") {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Available checks that Vault is initialized and unsealed.
func (s *VaultStore) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := s.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		s.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		s.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}
	return true
}

func (s *VaultStore) Name() string {
	return fmt.Sprintf("vault-%s-%s", s.mountPath, s.dataPath)
}
