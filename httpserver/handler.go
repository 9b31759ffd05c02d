package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/confidential-move-client/api"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/ruteri/confidential-move-client/keymanager"
	"github.com/ruteri/confidential-move-client/metrics"
	"github.com/ruteri/confidential-move-client/mxe"
)

const (
	// maxBodySize is the maximum allowed request body size (64KB).
	maxBodySize = 64 * 1024

	// Board cells are numbered 1..MaxMove.
	MinMove uint8 = 1
	MaxMove uint8 = 9
)

// KeyLifecycle is the key manager as seen by the handler.
type KeyLifecycle interface {
	Connect(ctx context.Context, identity interfaces.Identity) error
	Disconnect(ctx context.Context) error
	Purge(ctx context.Context, identity interfaces.Identity) error
	ClearAll(ctx context.Context) error
	KeyPair(ctx context.Context, identity interfaces.Identity) (*interfaces.KeyPair, error)
	HasKeys(ctx context.Context, identity interfaces.Identity) (bool, error)
	State(identity interfaces.Identity) keymanager.State
}

// MoveSubmitter submits encrypted moves.
type MoveSubmitter interface {
	Submit(ctx context.Context, identity interfaces.Identity, move uint8) *mxe.Outcome
	SubmitFast(ctx context.Context, identity interfaces.Identity, move uint8) *mxe.Outcome
}

// IdentityResolver maps an account to an identity held by the daemon.
type IdentityResolver interface {
	Identity(addr common.Address) (interfaces.Identity, bool)
}

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

// Handler serves the session and move routes.
type Handler struct {
	keys       KeyLifecycle
	moves      MoveSubmitter
	fallback   *mxe.FallbackResolver
	identities IdentityResolver
	limiter    *RateLimiter
	inflight   *inflight
	log        *slog.Logger
	now        func() time.Time
}

// NewHandler wires the handler. A nil limiter disables rate limiting.
func NewHandler(keys KeyLifecycle, moves MoveSubmitter, fallback *mxe.FallbackResolver, identities IdentityResolver, limiter *RateLimiter, log *slog.Logger) *Handler {
	return &Handler{
		keys:       keys,
		moves:      moves,
		fallback:   fallback,
		identities: identities,
		limiter:    limiter,
		inflight:   newInflight(),
		log:        log,
		now:        time.Now,
	}
}

// HandleConnect derives or loads keys for a held identity.
//
// URL format: POST /api/v1/session/connect
// Request body: {"identity": "0x..."}
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	var req api.ConnectRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	identity, err := h.resolve(req.Identity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.keys.Connect(r.Context(), identity); err != nil {
		h.log.Error("Connect failed", "err", err, "identity", req.Identity)
		h.writeError(w, classify(err))
		return
	}

	h.writeSession(r.Context(), w, identity)
}

// HandleDisconnect purges keys of the given identity, or of the last
// connected one.
//
// URL format: POST /api/v1/session/disconnect
// Request body: {"identity": "0x..."} (optional)
func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req api.DisconnectRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		h.writeError(w, err)
		return
	}

	if req.Identity == "" {
		if err := h.keys.Disconnect(r.Context()); err != nil {
			h.log.Error("Disconnect failed", "err", err)
			h.writeError(w, classify(err))
			return
		}
		writeJSON(w, http.StatusOK, &api.SessionResponse{State: keymanager.NoKeys.String()})
		return
	}

	identity, err := h.resolve(req.Identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.keys.Purge(r.Context(), identity); err != nil {
		h.log.Error("Purge failed", "err", err, "identity", req.Identity)
		h.writeError(w, classify(err))
		return
	}
	h.writeSession(r.Context(), w, identity)
}

// HandleSession reports the key lifecycle state of an identity.
//
// URL format: GET /api/v1/session/{identity}
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolve(chi.URLParam(r, "identity"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(r.Context(), w, identity)
}

// HandleMove encrypts and submits a move and resolves its outcome. An
// unsettled outcome is answered with a fallback decision.
//
// URL format: POST /api/v1/move
// Request body: {"identity": "0x...", "move": 5, "fast": false}
func (h *Handler) HandleMove(w http.ResponseWriter, r *http.Request) {
	var req api.MoveRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Move < MinMove || req.Move > MaxMove {
		h.writeError(w, &RequestError{http.StatusBadRequest, fmt.Errorf("move must be within [%d, %d]", MinMove, MaxMove)})
		return
	}

	identity, err := h.resolve(req.Identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	key := interfaces.IdentityAddress(identity).Hex()

	if !h.limiter.Allow(key, h.now()) {
		metrics.RateLimited.Inc()
		h.writeError(w, &RequestError{http.StatusTooManyRequests, errors.New("too many moves")})
		return
	}
	if !h.inflight.acquire(key) {
		h.writeError(w, &RequestError{http.StatusConflict, errors.New("a move is already in flight for this identity")})
		return
	}
	defer h.inflight.release(key)

	var out *mxe.Outcome
	if req.Fast {
		out = h.moves.SubmitFast(r.Context(), identity, req.Move)
	} else {
		out = h.moves.Submit(r.Context(), identity, req.Move)
	}

	if out.Err != nil && (errors.Is(out.Err, interfaces.ErrNotReady) || errors.Is(out.Err, interfaces.ErrUnsupportedSigner)) {
		h.writeError(w, classify(out.Err))
		return
	}

	decision, usedFallback := h.fallback.Apply(out)
	if usedFallback {
		h.log.Warn("Move not settled, decided locally",
			"identity", key,
			"decision", decision,
			"err", out.Err)
	}

	writeJSON(w, http.StatusOK, &moveResult{Outcome: out, Decision: decision, Fallback: usedFallback})
}

// HandleClearKeys purges every stored key record.
//
// URL format: POST /api/v1/admin/keys/clear
func (h *Handler) HandleClearKeys(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.ClearAll(r.Context()); err != nil {
		h.log.Error("Clearing key records failed", "err", err)
		h.writeError(w, classify(err))
		return
	}
	writeJSON(w, http.StatusOK, &api.ClearKeysResponse{Status: "cleared"})
}

// moveResult encodes as api.MoveResponse.
type moveResult struct {
	Outcome  *mxe.Outcome `json:"outcome"`
	Decision mxe.Decision `json:"decision"`
	Fallback bool         `json:"fallback"`
}

func (h *Handler) resolve(raw string) (interfaces.Identity, error) {
	if !common.IsHexAddress(raw) {
		return nil, &RequestError{http.StatusBadRequest, fmt.Errorf("invalid identity %q", raw)}
	}
	identity, ok := h.identities.Identity(common.HexToAddress(raw))
	if !ok {
		return nil, &RequestError{http.StatusNotFound, fmt.Errorf("identity %s is not held by this daemon", raw)}
	}
	return identity, nil
}

func (h *Handler) writeSession(ctx context.Context, w http.ResponseWriter, identity interfaces.Identity) {
	hasKeys, err := h.keys.HasKeys(ctx, identity)
	if err != nil {
		h.log.Error("Key store lookup failed", "err", err)
		h.writeError(w, classify(err))
		return
	}

	resp := &api.SessionResponse{
		Identity: interfaces.IdentityAddress(identity).Hex(),
		State:    h.keys.State(identity).String(),
		HasKeys:  hasKeys,
	}
	if kp, err := h.keys.KeyPair(ctx, identity); err == nil {
		resp.PublicKey = kp.PublicKeyHex()
		kp.Zero()
	}
	writeJSON(w, http.StatusOK, resp)
}

// classify maps pipeline errors to HTTP statuses.
func classify(err error) *RequestError {
	switch {
	case errors.Is(err, interfaces.ErrNotReady):
		return &RequestError{http.StatusPreconditionFailed, err}
	case errors.Is(err, interfaces.ErrUnsupportedSigner):
		return &RequestError{http.StatusUnprocessableEntity, err}
	case errors.Is(err, interfaces.ErrStoreUnavailable):
		return &RequestError{http.StatusServiceUnavailable, err}
	default:
		return &RequestError{http.StatusInternalServerError, err}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode
	}
	writeJSON(w, status, &api.ErrorResponse{Error: err.Error()})
}

var errEmptyBody = &RequestError{http.StatusBadRequest, errors.New("empty request body")}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return &RequestError{http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
