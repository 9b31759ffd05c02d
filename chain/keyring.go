package chain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/confidential-move-client/interfaces"
)

// Keyring holds the local wallets a daemon plays for, by address.
type Keyring struct {
	mu      sync.RWMutex
	wallets map[common.Address]*Wallet
}

func NewKeyring(wallets ...*Wallet) *Keyring {
	k := &Keyring{wallets: make(map[common.Address]*Wallet)}
	for _, w := range wallets {
		k.Add(w)
	}
	return k
}

// LoadKeyring builds a keyring from hex private keys and keystore files
// sharing one passphrase.
func LoadKeyring(hexKeys []string, keystores []string, passphrase string) (*Keyring, error) {
	k := NewKeyring()
	for i, hexKey := range hexKeys {
		w, err := WalletFromHex(hexKey)
		if err != nil {
			return nil, fmt.Errorf("private key #%d: %w", i, err)
		}
		k.Add(w)
	}
	for _, path := range keystores {
		w, err := WalletFromKeystore(path, passphrase)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		k.Add(w)
	}
	return k, nil
}

func (k *Keyring) Add(w *Wallet) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.wallets[w.Address()] = w
}

// Identity returns the wallet for addr.
func (k *Keyring) Identity(addr common.Address) (interfaces.Identity, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	w, ok := k.wallets[addr]
	if !ok {
		return nil, false
	}
	return w, true
}

// Addresses returns the held accounts in ascending order.
func (k *Keyring) Addresses() []common.Address {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]common.Address, 0, len(k.wallets))
	for addr := range k.wallets {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func (k *Keyring) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.wallets)
}
