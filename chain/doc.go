// Package chain connects the move pipeline to an EVM ledger.
//
// EthNetwork implements interfaces.NetworkClient on top of an ethclient
// connection: it supplies recent network state for transaction building,
// broadcasts signed transactions, fetches receipts and polls for the
// ComputationFinalized log of a queued computation. Wallet is a local
// secp256k1 identity used by the CLI and the daemon.
package chain
