// Package interfaces defines core interfaces and types for the confidential
// move pipeline, separating collaborator contracts from implementations.
//
// # Collaborator Interfaces
//
// Identity, MessageSigner, TransactionSigner: the wallet side. An identity is a
// weak reference to an externally owned account; its signing capabilities are
// discovered by probing for the optional signer interfaces.
//
// NetworkStateSource, NetworkClient: the ledger side. Transactions are opaque
// signed payloads; receipts carry the ordered log stream that settlement
// events are parsed from.
//
// ComputationCluster: the remote confidential computation service, reduced to
// the slow-changing public key the client encrypts against.
//
// KeyValueStore: durable storage for encrypted key records.
//
// Observer: diagnostics sink injected into every component. *slog.Logger
// satisfies it.
//
// # Errors
//
// All failure kinds of the pipeline are sentinel errors declared here and
// matched with errors.Is: ErrUnsupportedSigner, ErrDecryption, ErrNotReady,
// ErrNetworkSubmission, ErrFinalizationTimeout, ErrEventNotFound.
package interfaces
