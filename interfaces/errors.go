package interfaces

import "errors"

var (
	// ErrUnsupportedSigner is returned when an identity exposes neither message
	// signing nor transaction signing.
	ErrUnsupportedSigner = errors.New("identity supports neither message nor transaction signing")

	// ErrDecryption is returned for tampered, malformed or wrongly keyed vault blobs.
	ErrDecryption = errors.New("vault decryption failed")

	// ErrEmptyVaultKey is returned when the static vault key is not configured.
	ErrEmptyVaultKey = errors.New("vault key is empty")

	// ErrInvalidKeyMaterial is returned when key bytes have the wrong length or
	// produce a degenerate shared secret.
	ErrInvalidKeyMaterial = errors.New("invalid key material")

	// ErrNotReady is returned when a move is attempted without a connected
	// identity or without derived keys.
	ErrNotReady = errors.New("identity or keys not ready")

	// ErrNetworkSubmission is returned when dispatching a signed request failed.
	ErrNetworkSubmission = errors.New("network submission failed")

	// ErrFinalizationTimeout is returned when the timer wins the race against
	// computation finalization.
	ErrFinalizationTimeout = errors.New("timeout awaiting computation finalization")

	// ErrEventNotFound is returned when a finalized receipt carries no
	// settlement event of the expected kind.
	ErrEventNotFound = errors.New("settlement event not found in receipt")

	// ErrKeyNotFound is returned by key-value stores for missing keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreUnavailable is returned when a key-value store cannot be reached.
	ErrStoreUnavailable = errors.New("key-value store unavailable")

	// ErrInvalidLocationURI is returned when a store location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid store location URI")
)
