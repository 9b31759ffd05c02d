package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/confidential-move-client/api"
	"github.com/ruteri/confidential-move-client/chain"
	"github.com/ruteri/confidential-move-client/cryptoutils"
	"github.com/ruteri/confidential-move-client/httpserver"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/ruteri/confidential-move-client/keymanager"
	"github.com/ruteri/confidential-move-client/mxe"
	"github.com/ruteri/confidential-move-client/storage"
	"github.com/stretchr/testify/require"
)

// scriptedMoves settles every move with status, or times out when status is
// nil. Moves of identities without ready keys fail the way mxe.Client does.
type scriptedMoves struct {
	keys   *keymanager.Manager
	status *uint8
}

func (s *scriptedMoves) Submit(ctx context.Context, identity interfaces.Identity, move uint8) *mxe.Outcome {
	if _, err := s.keys.KeyPair(ctx, identity); err != nil {
		return &mxe.Outcome{State: mxe.StateFailed, Err: err}
	}
	out := &mxe.Outcome{RequestID: uint64(move), TxHash: common.HexToHash("0x01")}
	if s.status == nil {
		out.State = mxe.StateTimedOut
		out.Err = fmt.Errorf("%w after 3s", interfaces.ErrFinalizationTimeout)
		out.Warning = "Transaction sent but computation finalization could not be confirmed."
		return out
	}
	out.State = mxe.StateResolved
	out.Settled = true
	out.Success = *s.status == mxe.WinningStatus
	out.FinalizeSig = common.HexToHash("0x02")
	out.Event = &mxe.SettlementEvent{Name: mxe.GameMineEventName, Status: *s.status, HasStatus: true, Fields: map[string]any{"status": *s.status}}
	return out
}

func (s *scriptedMoves) SubmitFast(ctx context.Context, identity interfaces.Identity, move uint8) *mxe.Outcome {
	return s.Submit(ctx, identity, move)
}

func newTestDaemon(t *testing.T, moves *scriptedMoves) (*MoveClient, *chain.Wallet) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	wallet, err := chain.GenerateWallet()
	require.NoError(t, err)
	vault, err := cryptoutils.NewVault("client test key")
	require.NoError(t, err)

	keys := keymanager.NewManager(storage.NewMemoryStore(), vault, cryptoutils.NewKeyDeriver(nil, nil, log), log)
	moves.keys = keys
	fallback, err := mxe.NewFallbackResolver(0, rand.NewPCG(1, 1))
	require.NoError(t, err)

	handler := httpserver.NewHandler(keys, moves, fallback, chain.NewKeyring(wallet), nil, log)
	server, err := httpserver.New(&api.HTTPServerConfig{Log: log, EnableAdmin: true}, handler)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return NewMoveClient(ts.URL + "/"), wallet
}

func TestMoveClientSession(t *testing.T) {
	client, wallet := newTestDaemon(t, &scriptedMoves{})
	ctx := context.Background()
	identity := wallet.Address().Hex()

	session, err := client.Session(ctx, identity)
	require.NoError(t, err)
	require.Equal(t, keymanager.NoKeys.String(), session.State)
	require.False(t, session.HasKeys)

	session, err = client.Connect(ctx, identity)
	require.NoError(t, err)
	require.Equal(t, keymanager.KeysReady.String(), session.State)
	require.True(t, session.HasKeys)
	require.Len(t, session.PublicKey, 64)

	session, err = client.Disconnect(ctx, identity)
	require.NoError(t, err)
	require.Equal(t, keymanager.NoKeys.String(), session.State)
	require.False(t, session.HasKeys)

	_, err = client.Connect(ctx, identity)
	require.NoError(t, err)
	require.NoError(t, client.ClearKeys(ctx))
	session, err = client.Session(ctx, identity)
	require.NoError(t, err)
	require.False(t, session.HasKeys)
}

func TestMoveClientMove(t *testing.T) {
	won := mxe.WinningStatus
	lost := uint8(0)

	tests := []struct {
		name     string
		status   *uint8
		success  bool
		settled  bool
		fallback bool
		decision string
	}{
		{name: "won", status: &won, success: true, settled: true, decision: "favorable"},
		{name: "lost", status: &lost, settled: true, decision: "adverse"},
		{name: "unsettled", fallback: true, decision: "favorable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, wallet := newTestDaemon(t, &scriptedMoves{status: tt.status})
			ctx := context.Background()
			identity := wallet.Address().Hex()

			_, err := client.Connect(ctx, identity)
			require.NoError(t, err)

			resp, err := client.Move(ctx, &api.MoveRequest{Identity: identity, Move: 5})
			require.NoError(t, err)
			require.Equal(t, tt.success, resp.Outcome.Success)
			require.Equal(t, tt.settled, resp.Outcome.Settled)
			require.Equal(t, tt.fallback, resp.Fallback)
			require.Equal(t, tt.decision, resp.Decision)
			require.Equal(t, uint64(5), resp.Outcome.RequestID)

			if tt.settled {
				require.NotNil(t, resp.Outcome.Event)
				require.Equal(t, *tt.status, resp.Outcome.Event.Status)
				require.Empty(t, resp.Outcome.Error)
			} else {
				require.Equal(t, "timed_out", resp.Outcome.State)
				require.Contains(t, resp.Outcome.Error, interfaces.ErrFinalizationTimeout.Error())
				require.NotEmpty(t, resp.Outcome.Warning)
			}
		})
	}
}

func TestMoveClientErrors(t *testing.T) {
	client, wallet := newTestDaemon(t, &scriptedMoves{})
	ctx := context.Background()

	tests := []struct {
		name   string
		req    *api.MoveRequest
		status int
	}{
		{name: "not connected", req: &api.MoveRequest{Identity: wallet.Address().Hex(), Move: 1}, status: http.StatusPreconditionFailed},
		{name: "move out of range", req: &api.MoveRequest{Identity: wallet.Address().Hex(), Move: 10}, status: http.StatusBadRequest},
		{name: "unknown identity", req: &api.MoveRequest{Identity: common.HexToAddress("0x01").Hex(), Move: 1}, status: http.StatusNotFound},
		{name: "invalid identity", req: &api.MoveRequest{Identity: "player", Move: 1}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Move(ctx, tt.req)
			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr), err)
			require.Equal(t, tt.status, statusErr.StatusCode)
			require.NotEmpty(t, statusErr.Message)
		})
	}
}

func TestMoveClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	_, err := NewMoveClient(addr).Session(context.Background(), common.HexToAddress("0x01").Hex())
	require.Error(t, err)
	var statusErr *StatusError
	require.False(t, errors.As(err, &statusErr))
}
