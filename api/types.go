package api

// Routes served by the move daemon.
const (
	ConnectPath    = "/api/v1/session/connect"
	DisconnectPath = "/api/v1/session/disconnect"
	SessionPath    = "/api/v1/session/{identity}"
	MovePath       = "/api/v1/move"
	ClearKeysPath  = "/api/v1/admin/keys/clear"
)

// ConnectRequest connects a daemon-held identity and makes its keys ready.
type ConnectRequest struct {
	Identity string `json:"identity"`
}

// DisconnectRequest purges the keys of Identity, or of the last connected
// identity when empty.
type DisconnectRequest struct {
	Identity string `json:"identity,omitempty"`
}

// SessionResponse is the key lifecycle state of one identity.
type SessionResponse struct {
	Identity  string `json:"identity"`
	State     string `json:"state"`
	HasKeys   bool   `json:"hasKeys"`
	PublicKey string `json:"publicKey,omitempty"`
}

// MoveRequest plays Move for Identity. Fast selects the short finalization
// budget.
type MoveRequest struct {
	Identity string `json:"identity"`
	Move     uint8  `json:"move"`
	Fast     bool   `json:"fast,omitempty"`
}

// MoveResponse carries the remote outcome and the decision shown to the
// player. Fallback is set when the decision was made locally.
type MoveResponse struct {
	Outcome  OutcomeView `json:"outcome"`
	Decision string      `json:"decision"`
	Fallback bool        `json:"fallback"`
}

// OutcomeView is the wire form of a move outcome.
type OutcomeView struct {
	Success     bool       `json:"success"`
	Settled     bool       `json:"settled"`
	State       string     `json:"state"`
	RequestID   uint64     `json:"requestId,omitempty"`
	TxHash      string     `json:"txHash,omitempty"`
	FinalizeSig string     `json:"finalizeSig,omitempty"`
	Event       *EventView `json:"event,omitempty"`
	Error       string     `json:"error,omitempty"`
	Warning     string     `json:"warning,omitempty"`
	DurationMs  int64      `json:"durationMs,omitempty"`
}

// EventView is the wire form of a settlement event.
type EventView struct {
	Name   string         `json:"name"`
	Status uint8          `json:"status"`
	Fields map[string]any `json:"fields"`
}

// ClearKeysResponse reports purged key records.
type ClearKeysResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
