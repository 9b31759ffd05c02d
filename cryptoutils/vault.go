package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/ruteri/confidential-move-client/interfaces"
)

// VaultNonceSize is the size of the random AES-GCM nonce prepended to every blob.
const VaultNonceSize = 12

// Encrypt seals plaintext under the normalized form of key.
// The result is base64(nonce || ciphertext || tag) with a fresh 12-byte nonce.
func Encrypt(plaintext []byte, key string) (string, error) {
	aesGCM, err := newVaultAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, VaultNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aesGCM.Seal(nil, nonce, plaintext, nil)

	combined := make([]byte, 0, len(nonce)+len(sealed))
	combined = append(combined, nonce...)
	combined = append(combined, sealed...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

// Decrypt opens a blob produced by Encrypt. Any malformed, tampered or wrongly
// keyed input fails with interfaces.ErrDecryption.
func Decrypt(blob string, key string) ([]byte, error) {
	combined, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid encoding", interfaces.ErrDecryption)
	}

	aesGCM, err := newVaultAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(combined) < VaultNonceSize+aesGCM.Overhead() {
		return nil, fmt.Errorf("%w: blob too short", interfaces.ErrDecryption)
	}

	nonce := combined[:VaultNonceSize]
	sealed := combined[VaultNonceSize:]

	plaintext, err := aesGCM.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", interfaces.ErrDecryption)
	}

	return plaintext, nil
}

// NormalizeVaultKey maps a textual key to AES key bytes. Keys that are exactly
// 16 or 32 bytes long are used as-is, anything else is hashed with SHA-256.
func NormalizeVaultKey(key string) []byte {
	raw := []byte(key)
	if len(raw) == 16 || len(raw) == 32 {
		return raw
	}
	sum := sha256.Sum256(raw)
	return sum[:]
}

func newVaultAEAD(key string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(NormalizeVaultKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// Vault binds Encrypt and Decrypt to the application-wide static key.
type Vault struct {
	key string
}

// NewVault creates a vault for the static application key.
func NewVault(key string) (*Vault, error) {
	if key == "" {
		return nil, interfaces.ErrEmptyVaultKey
	}
	return &Vault{key: key}, nil
}

// Encrypt seals plaintext under the vault key.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	return Encrypt(plaintext, v.key)
}

// Decrypt opens a blob sealed under the vault key.
func (v *Vault) Decrypt(blob string) ([]byte, error) {
	return Decrypt(blob, v.key)
}
