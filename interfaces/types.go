package interfaces

import (
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// KeyPair is an x25519 key pair derived from an identity signature.
type KeyPair struct {
	PrivateKey [32]byte
	PublicKey  [32]byte
}

// PublicKeyHex returns the hex encoded public half.
func (kp *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.PublicKey[:])
}

// Zero wipes both halves of the key pair.
func (kp *KeyPair) Zero() {
	for i := range kp.PrivateKey {
		kp.PrivateKey[i] = 0
	}
	for i := range kp.PublicKey {
		kp.PublicKey[i] = 0
	}
}

// NetworkState is the recent network state attached to outbound transactions.
type NetworkState struct {
	ChainID   *big.Int
	Nonce     uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
	BlockHash common.Hash
}

// CommitmentLevel selects how settled a finalization must be before it is reported.
type CommitmentLevel int

const (
	// CommitmentConfirmed accepts finalization logs in the latest block.
	CommitmentConfirmed CommitmentLevel = iota
	// CommitmentFinalized waits until the block carrying the log is finalized.
	CommitmentFinalized
)

// String returns the commitment name.
func (c CommitmentLevel) String() string {
	switch c {
	case CommitmentConfirmed:
		return "confirmed"
	case CommitmentFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// ParseCommitmentLevel maps a commitment name to its level, defaulting to finalized.
func ParseCommitmentLevel(name string) CommitmentLevel {
	if name == "confirmed" {
		return CommitmentConfirmed
	}
	return CommitmentFinalized
}

// ComputationRef identifies one queued computation of a program.
type ComputationRef struct {
	Program common.Address
	Offset  uint64
}

// OffsetTopic returns the computation offset as an indexed log topic.
func (r ComputationRef) OffsetTopic() common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(r.Offset))
}

// IdentityAddress interprets an identity's public identifier as an account address.
func IdentityAddress(identity Identity) common.Address {
	return common.BytesToAddress(identity.PublicIdentifier())
}
