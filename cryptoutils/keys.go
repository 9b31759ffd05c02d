package cryptoutils

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/confidential-move-client/interfaces"
	"golang.org/x/crypto/curve25519"
)

// KeyDerivationMessage is the fixed message every identity signs to derive its
// x25519 key pair. Changing it changes every derived key.
const KeyDerivationMessage = "Sign this message to derive your encryption keys for the mine game.\n\nVersion: 1"

// derivationGasLimit is the intrinsic gas of a plain value transfer.
const derivationGasLimit = 21000

// SigningCapability produces the signature bytes a key pair is derived from.
type SigningCapability interface {
	// Sign returns deterministic signature bytes over message.
	Sign(ctx context.Context, message []byte) ([]byte, error)
	// Kind names the capability for diagnostics.
	Kind() string
}

type messageCapability struct {
	signer interfaces.MessageSigner
}

func (c *messageCapability) Sign(ctx context.Context, message []byte) ([]byte, error) {
	return c.signer.SignMessage(ctx, message)
}

func (c *messageCapability) Kind() string { return "message" }

// transactionCapability signs a zero-value self-transfer carrying the message
// as calldata. Every field except the chain id is pinned so the signature is
// a pure function of identity, chain and message.
type transactionCapability struct {
	identity interfaces.Identity
	signer   interfaces.TransactionSigner
	network  func(ctx context.Context) (interfaces.NetworkStateSource, error)
}

func (c *transactionCapability) Sign(ctx context.Context, message []byte) ([]byte, error) {
	network, err := c.network(ctx)
	if err != nil {
		return nil, fmt.Errorf("no network state source: %w", err)
	}

	self := interfaces.IdentityAddress(c.identity)
	state, err := network.RecentNetworkState(ctx, self)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch network state: %w", err)
	}
	if state.ChainID == nil {
		return nil, errors.New("network state carries no chain id")
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   state.ChainID,
		Nonce:     0,
		GasTipCap: new(big.Int),
		GasFeeCap: new(big.Int),
		Gas:       derivationGasLimit,
		To:        &self,
		Value:     new(big.Int),
		Data:      message,
	})

	signed, err := c.signer.SignTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to sign derivation transaction: %w", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(state.ChainID), signed)
	if err != nil {
		return nil, fmt.Errorf("failed to recover derivation transaction sender: %w", err)
	}
	if sender != self {
		return nil, fmt.Errorf("derivation transaction signed by %s, expected %s", sender, self)
	}

	v, r, s := signed.RawSignatureValues()
	signature := make([]byte, 0, 65)
	signature = append(signature, common.LeftPadBytes(r.Bytes(), 32)...)
	signature = append(signature, common.LeftPadBytes(s.Bytes(), 32)...)
	signature = append(signature, byte(v.Uint64()))
	return signature, nil
}

func (c *transactionCapability) Kind() string { return "transaction" }

// ProbeSigningCapability selects the first signing capability the identity
// offers: message signing, then transaction signing. The network function is
// only consulted by the transaction variant.
func ProbeSigningCapability(identity interfaces.Identity, network func(ctx context.Context) (interfaces.NetworkStateSource, error)) (SigningCapability, error) {
	if signer, ok := identity.(interfaces.MessageSigner); ok {
		return &messageCapability{signer: signer}, nil
	}
	return probeTransactionCapability(identity, network)
}

func probeTransactionCapability(identity interfaces.Identity, network func(ctx context.Context) (interfaces.NetworkStateSource, error)) (SigningCapability, error) {
	signer, ok := identity.(interfaces.TransactionSigner)
	if !ok {
		return nil, interfaces.ErrUnsupportedSigner
	}
	if network == nil {
		network = func(context.Context) (interfaces.NetworkStateSource, error) {
			return nil, errors.New("no network configured")
		}
	}
	return &transactionCapability{identity: identity, signer: signer, network: network}, nil
}

// KeyDeriver turns an identity's signature over KeyDerivationMessage into an
// x25519 key pair.
type KeyDeriver struct {
	// Network supplies the chain id for the transaction-signing path.
	Network interfaces.NetworkStateSource
	// DialFallback is used when Network is nil.
	DialFallback func(ctx context.Context) (interfaces.NetworkStateSource, error)

	log *slog.Logger
}

// NewKeyDeriver creates a deriver. Either network or dialFallback may be nil.
func NewKeyDeriver(network interfaces.NetworkStateSource, dialFallback func(ctx context.Context) (interfaces.NetworkStateSource, error), log *slog.Logger) *KeyDeriver {
	if log == nil {
		log = slog.Default()
	}
	return &KeyDeriver{Network: network, DialFallback: dialFallback, log: log}
}

func (d *KeyDeriver) networkSource(ctx context.Context) (interfaces.NetworkStateSource, error) {
	if d.Network != nil {
		return d.Network, nil
	}
	if d.DialFallback == nil {
		return nil, errors.New("neither network nor fallback endpoint configured")
	}
	return d.DialFallback(ctx)
}

// Derive asks the identity to sign KeyDerivationMessage and derives a key pair
// from the signature. A message signer reporting ErrUnsupportedSigner at call
// time falls through to the transaction path.
func (d *KeyDeriver) Derive(ctx context.Context, identity interfaces.Identity) (*interfaces.KeyPair, error) {
	capability, err := ProbeSigningCapability(identity, d.networkSource)
	if err != nil {
		return nil, err
	}

	signature, err := capability.Sign(ctx, []byte(KeyDerivationMessage))
	if errors.Is(err, interfaces.ErrUnsupportedSigner) && capability.Kind() == "message" {
		d.log.Debug("message signing unavailable, trying transaction signing")
		capability, err = probeTransactionCapability(identity, d.networkSource)
		if err != nil {
			return nil, err
		}
		signature, err = capability.Sign(ctx, []byte(KeyDerivationMessage))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to sign key derivation message: %w", err)
	}

	d.log.Debug("derived key material from signature", "capability", capability.Kind())
	return KeyPairFromSignature(signature)
}

// KeyPairFromSignature hashes signature into an x25519 private key and
// computes its public key.
func KeyPairFromSignature(signature []byte) (*interfaces.KeyPair, error) {
	if len(signature) == 0 {
		return nil, fmt.Errorf("%w: empty signature", interfaces.ErrInvalidKeyMaterial)
	}

	kp := &interfaces.KeyPair{PrivateKey: sha256.Sum256(signature)}
	pub, err := PublicKeyFromPrivate(kp.PrivateKey)
	if err != nil {
		return nil, err
	}
	kp.PublicKey = pub
	return kp, nil
}

// PublicKeyFromPrivate computes the x25519 public key of priv.
func PublicKeyFromPrivate(priv [32]byte) ([32]byte, error) {
	var pub [32]byte
	raw, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("%w: %v", interfaces.ErrInvalidKeyMaterial, err)
	}
	copy(pub[:], raw)
	return pub, nil
}
