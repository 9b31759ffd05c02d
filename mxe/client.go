package mxe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/confidential-move-client/cryptoutils"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/ruteri/confidential-move-client/metrics"
)

const (
	// DefaultTimeout bounds finalization of a regular submission.
	DefaultTimeout = 120 * time.Second
	// DefaultFastTimeout bounds finalization on the fast path.
	DefaultFastTimeout = 3 * time.Second
	// DefaultGasLimit of a mine transaction.
	DefaultGasLimit uint64 = 500_000
	// WinningStatus is the event status of a won move.
	WinningStatus uint8 = 1
)

const unsettledWarning = "Transaction sent but computation finalization could not be confirmed."

// Config of a Client. Zero fields take their defaults.
type Config struct {
	Program       common.Address
	ClusterOffset uint32
	Timeout       time.Duration
	FastTimeout   time.Duration
	Commitment    interfaces.CommitmentLevel
	// WinningStatus is the event status of a won move; nil means
	// the package default. Zero is a valid status.
	WinningStatus *uint8
	EventName     string
	GasLimit      uint64
}

// DefaultConfig returns the defaults for program.
func DefaultConfig(program common.Address) Config {
	return Config{
		Program:       program,
		ClusterOffset: DefaultClusterOffset,
		Timeout:       DefaultTimeout,
		FastTimeout:   DefaultFastTimeout,
		Commitment:    interfaces.CommitmentFinalized,
		WinningStatus: StatusOf(WinningStatus),
		EventName:     GameMineEventName,
		GasLimit:      DefaultGasLimit,
	}
}

// StatusOf returns a pointer suitable for Config.WinningStatus.
func StatusOf(status uint8) *uint8 {
	return &status
}

func (c Config) withDefaults() Config {
	def := DefaultConfig(c.Program)
	if c.ClusterOffset == 0 {
		c.ClusterOffset = def.ClusterOffset
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.FastTimeout <= 0 {
		c.FastTimeout = def.FastTimeout
	}
	if c.WinningStatus == nil {
		c.WinningStatus = def.WinningStatus
	}
	if c.EventName == "" {
		c.EventName = def.EventName
	}
	if c.GasLimit == 0 {
		c.GasLimit = def.GasLimit
	}
	return c
}

// Client encrypts moves, queues them with the computation cluster and
// resolves their outcome from the settlement log.
type Client struct {
	cfg      Config
	network  interfaces.NetworkClient
	cluster  interfaces.ComputationCluster
	keys     interfaces.KeySource
	resolver *EventResolver
	log      interfaces.Observer

	mu        sync.Mutex
	remoteKey *[32]byte
	inflight  map[uint64]struct{}
}

func NewClient(cfg Config, network interfaces.NetworkClient, cluster interfaces.ComputationCluster, keys interfaces.KeySource, log interfaces.Observer) (*Client, error) {
	if cfg.Program == (common.Address{}) {
		return nil, errors.New("program address is required")
	}
	if network == nil || cluster == nil || keys == nil {
		return nil, errors.New("network, cluster and key source are required")
	}
	if log == nil {
		log = slog.Default()
	}

	cfg = cfg.withDefaults()
	return &Client{
		cfg:      cfg,
		network:  network,
		cluster:  cluster,
		keys:     keys,
		resolver: NewEventResolver(cfg.Program),
		log:      log,
		inflight: make(map[uint64]struct{}),
	}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Submit plays move for identity with the regular finalization budget.
func (c *Client) Submit(ctx context.Context, identity interfaces.Identity, move uint8) *Outcome {
	return c.submit(ctx, identity, move, c.cfg.Timeout)
}

// SubmitFast plays move for identity with the fast finalization budget.
func (c *Client) SubmitFast(ctx context.Context, identity interfaces.Identity, move uint8) *Outcome {
	return c.submit(ctx, identity, move, c.cfg.FastTimeout)
}

// RemotePublicKey returns the cluster key, fetching it on first use. Failed
// fetches are not cached.
func (c *Client) RemotePublicKey(ctx context.Context) ([32]byte, error) {
	c.mu.Lock()
	if c.remoteKey != nil {
		key := *c.remoteKey
		c.mu.Unlock()
		return key, nil
	}
	c.mu.Unlock()

	key, err := c.cluster.RemotePublicKey(ctx)
	if err != nil {
		return [32]byte{}, err
	}

	c.mu.Lock()
	c.remoteKey = &key
	c.mu.Unlock()
	return key, nil
}

func (c *Client) submit(ctx context.Context, identity interfaces.Identity, move uint8, timeout time.Duration) *Outcome {
	out := &Outcome{State: StateBuilding}
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		metrics.Submissions.WithLabelValues(resultLabel(out)).Inc()
	}()

	if identity == nil {
		return c.fail(out, fmt.Errorf("%w: no identity connected", interfaces.ErrNotReady))
	}
	signer, ok := identity.(interfaces.TransactionSigner)
	if !ok {
		return c.fail(out, fmt.Errorf("%w: identity cannot sign transactions", interfaces.ErrUnsupportedSigner))
	}

	req, data, err := c.build(ctx, identity, move)
	if err != nil {
		return c.fail(out, err)
	}
	out.RequestID = req.RequestID
	defer c.release(req.RequestID)

	log := c.log
	if l, ok := c.log.(*slog.Logger); ok {
		log = l.With("requestId", req.RequestID)
	}

	txHash, err := c.dispatch(ctx, signer, req.Accounts.Payer, data)
	if err != nil {
		return c.fail(out, err)
	}
	req.SubmittedAt = time.Now()
	out.State = StateSubmitted
	out.TxHash = txHash
	out.SubmittedAt = req.SubmittedAt
	log.Info("move submitted", "tx", txHash, "timeout", timeout)

	ref := interfaces.ComputationRef{Program: c.cfg.Program, Offset: req.RequestID}
	finalizeSig, err := Race(ctx, timeout, func(ctx context.Context) (common.Hash, error) {
		return c.network.AwaitFinalization(ctx, ref, c.cfg.Commitment)
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrFinalizationTimeout) {
			out.State = StateTimedOut
		}
		out.Warning = unsettledWarning
		return c.fail(out, err)
	}
	out.State = StateFinalized
	out.FinalizeSig = finalizeSig
	metrics.FinalizationSeconds.Observe(time.Since(req.SubmittedAt).Seconds())

	receipt, err := c.network.Receipt(ctx, finalizeSig)
	if err != nil {
		out.Warning = unsettledWarning
		return c.fail(out, fmt.Errorf("failed to fetch finalization receipt: %w", err))
	}

	event, ok := c.resolver.ResolveMatching(receipt, c.cfg.EventName, func(e *SettlementEvent) bool {
		offset, ok := e.ComputationOffset()
		return !ok || offset == req.RequestID
	})
	if !ok {
		out.Warning = unsettledWarning
		return c.fail(out, fmt.Errorf("%w: %s in %s", interfaces.ErrEventNotFound, c.cfg.EventName, finalizeSig))
	}

	out.State = StateResolved
	out.Settled = true
	out.Event = event
	out.Success = event.Status == *c.cfg.WinningStatus
	log.Info("move resolved", "success", out.Success, "status", event.Status, "finalizeSig", finalizeSig)
	return out
}

// build encrypts move and packs the program call.
func (c *Client) build(ctx context.Context, identity interfaces.Identity, move uint8) (*ComputationRequest, []byte, error) {
	kp, err := c.keys.KeyPair(ctx, identity)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotReady) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %w", interfaces.ErrNotReady, err)
	}
	defer kp.Zero()

	remoteKey, err := c.RemotePublicKey(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: remote public key unavailable: %w", interfaces.ErrNotReady, err)
	}

	session, err := cryptoutils.OpenCipherSession(kp.PrivateKey, remoteKey)
	if err != nil {
		return nil, nil, err
	}
	defer session.Zero()

	nonce, err := cryptoutils.NewNonce()
	if err != nil {
		return nil, nil, err
	}
	payload, err := session.Encrypt([]*big.Int{new(big.Int).SetUint64(uint64(move))}, nonce)
	if err != nil {
		return nil, nil, err
	}

	requestID, err := c.reserve()
	if err != nil {
		return nil, nil, err
	}

	req := &ComputationRequest{
		RequestID:        requestID,
		EncryptedPayload: payload,
		Nonce:            nonce,
		SenderPublicKey:  kp.PublicKey,
		Accounts:         DeriveAccounts(c.cfg.Program, c.cfg.ClusterOffset, requestID, interfaces.IdentityAddress(identity)),
	}

	data, err := ProgramABI.Pack("mine",
		req.RequestID,
		req.EncryptedPayload[0],
		req.SenderPublicKey,
		cryptoutils.NonceToUint128(req.Nonce),
		req.Accounts.List(),
	)
	if err != nil {
		c.release(requestID)
		return nil, nil, fmt.Errorf("failed to pack mine call: %w", err)
	}
	return req, data, nil
}

func (c *Client) dispatch(ctx context.Context, signer interfaces.TransactionSigner, payer common.Address, data []byte) (common.Hash, error) {
	state, err := c.network.RecentNetworkState(ctx, payer)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", interfaces.ErrNetworkSubmission, err)
	}

	program := c.cfg.Program
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   state.ChainID,
		Nonce:     state.Nonce,
		GasTipCap: state.GasTipCap,
		GasFeeCap: state.GasFeeCap,
		Gas:       c.cfg.GasLimit,
		To:        &program,
		Value:     new(big.Int),
		Data:      data,
	})

	signed, err := signer.SignTransaction(ctx, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	txHash, err := c.network.SubmitTransaction(ctx, signed)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", interfaces.ErrNetworkSubmission, err)
	}
	return txHash, nil
}

// reserve draws a request id not used by any in-flight submission.
func (c *Client) reserve() (uint64, error) {
	for {
		id, err := newRequestID()
		if err != nil {
			return 0, fmt.Errorf("failed to draw request id: %w", err)
		}
		c.mu.Lock()
		if _, taken := c.inflight[id]; !taken {
			c.inflight[id] = struct{}{}
			c.mu.Unlock()
			return id, nil
		}
		c.mu.Unlock()
	}
}

func (c *Client) release(id uint64) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}

func (c *Client) fail(out *Outcome, err error) *Outcome {
	if out.State != StateTimedOut {
		out.State = StateFailed
	}
	out.Success = false
	out.Err = err
	c.log.Warn("move not settled", "requestId", out.RequestID, "tx", out.TxHash, "err", err)
	return out
}

func resultLabel(o *Outcome) string {
	switch {
	case o.Settled && o.Success:
		return "won"
	case o.Settled:
		return "lost"
	case errors.Is(o.Err, interfaces.ErrFinalizationTimeout):
		return "timeout"
	case errors.Is(o.Err, interfaces.ErrEventNotFound):
		return "event_not_found"
	case errors.Is(o.Err, interfaces.ErrNotReady):
		return "not_ready"
	default:
		return "failed"
	}
}
