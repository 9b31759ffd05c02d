// Package storage provides durable key-value stores with pluggable backends.
//
// Encrypted key records are kept in one of these stores under a reserved key
// prefix. Every backend implements interfaces.KeyValueStore:
//
//   - MemoryStore for tests and ephemeral daemons
//   - FileStore, one file per key, for single-host deployments
//   - S3Store for S3-compatible object storage
//   - VaultStore for a HashiCorp Vault KV v2 mount
//   - MirroredStore, writing to several backends and reading from the first hit
//
// # Store URI Format
//
// Stores are configured with URIs:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - memory://
//   - file:///var/lib/mined/keys
//   - s3://bucket-name/prefix?region=us-west-2&endpoint=http://localhost:9000
//   - vault://token@vault.example.com:8200/secret/mine?tls=true
//
// StoreFactory.MirroredStoreFor builds a MirroredStore from several URIs.
//
// # Error Handling
//
//   - interfaces.ErrKeyNotFound: the key does not exist
//   - interfaces.ErrStoreUnavailable: the backend could not be reached
//   - interfaces.ErrInvalidLocationURI: the store URI is malformed
//
// Deleting a missing key is never an error.
package storage
