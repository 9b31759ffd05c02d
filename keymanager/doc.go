// Package keymanager owns the per-identity key pair lifecycle.
//
// Each identity moves through NoKeys, DerivingKeys and KeysReady. On connect a
// persisted EncryptedKeyRecord is decrypted if present; otherwise the key pair
// is derived from the identity's signature, sealed with the application vault
// and stored under KeyPrefix followed by the base58 identity. Disconnect purges
// the record of the last connected identity.
//
// At most one derivation per identity is in flight. A derivation that
// completes after its identity was purged is discarded and never persisted.
// Records that fail to decrypt are deleted and re-derived.
package keymanager
