package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Identity is an external actor owned by a wallet provider. The pipeline only
// ever holds this weak reference; signing capabilities are probed separately
// through MessageSigner and TransactionSigner.
type Identity interface {
	// PublicIdentifier returns the raw public identifier (an account address).
	PublicIdentifier() []byte
}

// MessageSigner is the direct message-signing capability of an identity.
type MessageSigner interface {
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// TransactionSigner is the transaction-signing capability of an identity.
type TransactionSigner interface {
	SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
}

// NetworkStateSource supplies recent network state for building transactions.
type NetworkStateSource interface {
	RecentNetworkState(ctx context.Context, account common.Address) (*NetworkState, error)
}

// NetworkClient is the ledger collaborator.
type NetworkClient interface {
	NetworkStateSource

	// SubmitTransaction dispatches a signed transaction and returns its hash.
	SubmitTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error)

	// Receipt returns the receipt of a transaction, or nil without error when
	// the transaction is unknown.
	Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	// AwaitFinalization blocks until the referenced computation is finalized at
	// the requested commitment and returns the finalizing transaction hash.
	// It may block indefinitely; callers bound it through ctx.
	AwaitFinalization(ctx context.Context, ref ComputationRef, commitment CommitmentLevel) (common.Hash, error)
}

// ComputationCluster is the remote confidential computation service.
type ComputationCluster interface {
	// RemotePublicKey returns the cluster's x25519 public key.
	RemotePublicKey(ctx context.Context) ([32]byte, error)
}

// KeySource hands out ready key pairs for connected identities.
type KeySource interface {
	KeyPair(ctx context.Context, identity Identity) (*KeyPair, error)
}

// Observer receives diagnostics from the pipeline. *slog.Logger satisfies it.
type Observer interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
