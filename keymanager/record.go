package keymanager

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/ruteri/confidential-move-client/cryptoutils"
	"github.com/ruteri/confidential-move-client/interfaces"
)

// KeyPrefix is the namespace reserved for encrypted key records.
const KeyPrefix = "mine_mpc_keys_"

// StorageKey returns the record key of identity.
func StorageKey(identity interfaces.Identity) string {
	return KeyPrefix + base58.Encode(identity.PublicIdentifier())
}

// EncryptedKeyRecord is the persisted form of a key pair. Each field is an
// independent vault blob carrying its own nonce.
type EncryptedKeyRecord struct {
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	EncryptedPublicKey  string `json:"encryptedPublicKey"`
	WalletPublicKey     string `json:"walletPublicKey"`
}

func sealRecord(vault *cryptoutils.Vault, identity interfaces.Identity, kp *interfaces.KeyPair) ([]byte, error) {
	encPriv, err := vault.Encrypt([]byte(hex.EncodeToString(kp.PrivateKey[:])))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt private key: %w", err)
	}
	encPub, err := vault.Encrypt([]byte(hex.EncodeToString(kp.PublicKey[:])))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt public key: %w", err)
	}

	return json.Marshal(&EncryptedKeyRecord{
		EncryptedPrivateKey: encPriv,
		EncryptedPublicKey:  encPub,
		WalletPublicKey:     base58.Encode(identity.PublicIdentifier()),
	})
}

// openRecord fails with ErrDecryption for any record that cannot be trusted:
// malformed, encrypted under another key, owned by another identity or
// holding an inconsistent pair.
func openRecord(vault *cryptoutils.Vault, identity interfaces.Identity, raw []byte) (*interfaces.KeyPair, error) {
	var record EncryptedKeyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: malformed record: %v", interfaces.ErrDecryption, err)
	}

	if record.WalletPublicKey != base58.Encode(identity.PublicIdentifier()) {
		return nil, fmt.Errorf("%w: record belongs to another identity", interfaces.ErrDecryption)
	}

	kp := &interfaces.KeyPair{}
	if err := openKey(vault, record.EncryptedPrivateKey, kp.PrivateKey[:]); err != nil {
		return nil, err
	}
	if err := openKey(vault, record.EncryptedPublicKey, kp.PublicKey[:]); err != nil {
		return nil, err
	}

	pub, err := cryptoutils.PublicKeyFromPrivate(kp.PrivateKey)
	if err != nil || pub != kp.PublicKey {
		return nil, fmt.Errorf("%w: inconsistent key pair", interfaces.ErrDecryption)
	}
	return kp, nil
}

func openKey(vault *cryptoutils.Vault, blob string, out []byte) error {
	plaintext, err := vault.Decrypt(blob)
	if err != nil {
		return err
	}
	decoded, err := hex.DecodeString(string(plaintext))
	if err != nil || len(decoded) != len(out) {
		return fmt.Errorf("%w: invalid key encoding", interfaces.ErrDecryption)
	}
	copy(out, decoded)
	return nil
}
