// Package cryptoutils provides the client-side cryptography of the move pipeline.
//
// # Key derivation
//
// An identity signs the fixed KeyDerivationMessage once. The signature is
// hashed with SHA-256 and the digest is used directly as an x25519 private key:
//
//	priv = SHA-256(signature)
//	pub  = X25519(priv, basepoint)
//
// Two signing capabilities are probed in order, message signing and
// transaction signing (a zero-value self-transfer with every field pinned except
// the chain id). Both are deterministic, so re-deriving after cache loss always
// reproduces the same key pair.
//
// # Vault
//
// Key pairs are stored at rest with AES-256-GCM under a static application key:
//
//	base64([nonce (12 bytes)][ciphertext][tag (16 bytes)])
//
// Keys of exactly 16 or 32 bytes are used as-is; any other key is hashed with
// SHA-256 first. Any failure to open a blob is reported as ErrDecryption.
//
// # Cipher session
//
// Move values are encrypted for the remote computation cluster under the
// x25519 shared secret. Every value is reduced modulo 2^255-19 and masked with a
// keystream element expanded by HKDF-SHA256 from the shared secret, salted with
// the 16-byte request nonce. Ciphertexts are 32-byte little-endian field
// elements; the cluster decrypts with the mirrored transform.
package cryptoutils
