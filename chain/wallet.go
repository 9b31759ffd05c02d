package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is a local secp256k1 identity. It offers both message and
// transaction signing.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewWallet wraps an existing private key.
func NewWallet(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// GenerateWallet creates a wallet with a fresh random key.
func GenerateWallet() (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewWallet(key), nil
}

// WalletFromHex loads a hex encoded private key, with or without 0x prefix.
func WalletFromHex(hexKey string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewWallet(key), nil
}

// WalletFromKeystore decrypts a geth keystore file.
func WalletFromKeystore(path, passphrase string) (*Wallet, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return NewWallet(key.PrivateKey), nil
}

// Address returns the wallet account.
func (w *Wallet) Address() common.Address {
	return w.address
}

// PublicIdentifier returns the 20 address bytes.
func (w *Wallet) PublicIdentifier() []byte {
	return w.address.Bytes()
}

// SignMessage signs the EIP-191 text hash of message. Signatures are RFC6979
// deterministic.
func (w *Wallet) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	return crypto.Sign(accounts.TextHash(message), w.key)
}

// SignTransaction signs tx for its own chain id.
func (w *Wallet) SignTransaction(_ context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(tx.ChainId()), w.key)
}

// TransactionOnly hides the message signing capability, modeling wallets that
// can only sign transactions.
func (w *Wallet) TransactionOnly() *TransactionOnlyWallet {
	return &TransactionOnlyWallet{wallet: w}
}

// TransactionOnlyWallet is a Wallet without SignMessage.
type TransactionOnlyWallet struct {
	wallet *Wallet
}

func (w *TransactionOnlyWallet) PublicIdentifier() []byte {
	return w.wallet.PublicIdentifier()
}

func (w *TransactionOnlyWallet) SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return w.wallet.SignTransaction(ctx, tx)
}
