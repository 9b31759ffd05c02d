package mxe

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/confidential-move-client/cryptoutils"
)

// RequestState is the progress of one submitted move.
type RequestState int

const (
	StateBuilding RequestState = iota
	StateSubmitted
	StateFinalized
	StateTimedOut
	StateFailed
	StateResolved
)

func (s RequestState) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateSubmitted:
		return "submitted"
	case StateFinalized:
		return "finalized"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name.
func (s RequestState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ComputationRequest is one encrypted move queued with the computation cluster.
// It is owned by the submission that built it.
type ComputationRequest struct {
	RequestID        uint64
	EncryptedPayload [][cryptoutils.FieldElementSize]byte
	Nonce            [cryptoutils.CipherNonceSize]byte
	SenderPublicKey  [32]byte
	Accounts         AccountSet
	SubmittedAt      time.Time
}

// newRequestID draws a uniformly random 64-bit computation offset.
func newRequestID() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Outcome is the result of one submitted move. Success is only meaningful
// when Settled is true; an unsettled outcome carries the reason in Err.
type Outcome struct {
	Success     bool
	Settled     bool
	State       RequestState
	RequestID   uint64
	TxHash      common.Hash
	FinalizeSig common.Hash
	Event       *SettlementEvent
	Err         error
	Warning     string
	SubmittedAt time.Time
	Duration    time.Duration
}

type outcomeJSON struct {
	Success     bool             `json:"success"`
	Settled     bool             `json:"settled"`
	State       RequestState     `json:"state"`
	RequestID   uint64           `json:"requestId,omitempty"`
	TxHash      *common.Hash     `json:"txHash,omitempty"`
	FinalizeSig *common.Hash     `json:"finalizeSig,omitempty"`
	Event       *SettlementEvent `json:"event,omitempty"`
	Error       string           `json:"error,omitempty"`
	Warning     string           `json:"warning,omitempty"`
	SubmittedAt *time.Time       `json:"submittedAt,omitempty"`
	DurationMs  int64            `json:"durationMs,omitempty"`
}

// MarshalJSON renders Err as a string and omits unset hashes.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{
		Success:    o.Success,
		Settled:    o.Settled,
		State:      o.State,
		RequestID:  o.RequestID,
		Event:      o.Event,
		Warning:    o.Warning,
		DurationMs: o.Duration.Milliseconds(),
	}
	if o.TxHash != (common.Hash{}) {
		out.TxHash = &o.TxHash
	}
	if o.FinalizeSig != (common.Hash{}) {
		out.FinalizeSig = &o.FinalizeSig
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	if !o.SubmittedAt.IsZero() {
		out.SubmittedAt = &o.SubmittedAt
	}
	return json.Marshal(out)
}
