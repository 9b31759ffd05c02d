package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/confidential-move-client/interfaces"
)

// DefaultRPCEndpoint is dialed when no network client is configured.
const DefaultRPCEndpoint = "http://127.0.0.1:8545"

// ComputationFinalizedSignature is the event the computation cluster emits once
// a queued computation has been executed and its callback applied.
const ComputationFinalizedSignature = "ComputationFinalized(uint64,bool)"

// Backend is the subset of *ethclient.Client used by EthNetwork.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// NetworkConfig tunes finalization polling.
type NetworkConfig struct {
	// PollInterval between finalization log queries.
	PollInterval time.Duration
	// Lookback is how many blocks before the await started are searched.
	Lookback uint64
	// FinalizationEvent is the topic of the finalization log.
	FinalizationEvent common.Hash
}

// DefaultNetworkConfig returns the polling defaults.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		PollInterval:      2 * time.Second,
		Lookback:          256,
		FinalizationEvent: crypto.Keccak256Hash([]byte(ComputationFinalizedSignature)),
	}
}

// EthNetwork implements interfaces.NetworkClient on an EVM chain.
type EthNetwork struct {
	backend Backend
	cfg     NetworkConfig
	log     *slog.Logger

	mu      sync.Mutex
	chainID *big.Int
}

// NewEthNetwork wraps backend. Zero config fields take their defaults.
func NewEthNetwork(backend Backend, cfg NetworkConfig, log *slog.Logger) *EthNetwork {
	def := DefaultNetworkConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Lookback == 0 {
		cfg.Lookback = def.Lookback
	}
	if cfg.FinalizationEvent == (common.Hash{}) {
		cfg.FinalizationEvent = def.FinalizationEvent
	}
	if log == nil {
		log = slog.Default()
	}
	return &EthNetwork{backend: backend, cfg: cfg, log: log}
}

// Dial connects to rpcAddr and wraps the client.
func Dial(ctx context.Context, rpcAddr string, cfg NetworkConfig, log *slog.Logger) (*EthNetwork, error) {
	client, err := ethclient.DialContext(ctx, rpcAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcAddr, err)
	}
	return NewEthNetwork(client, cfg, log), nil
}

// DialDefault connects to DefaultRPCEndpoint. It is used as the fallback
// network state source of key derivation.
func DialDefault(log *slog.Logger) func(ctx context.Context) (interfaces.NetworkStateSource, error) {
	return func(ctx context.Context) (interfaces.NetworkStateSource, error) {
		return Dial(ctx, DefaultRPCEndpoint, NetworkConfig{}, log)
	}
}

func (n *EthNetwork) getChainID(ctx context.Context) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.chainID != nil {
		return n.chainID, nil
	}
	chainID, err := n.backend.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	n.chainID = chainID
	return chainID, nil
}

// RecentNetworkState returns chain id, pending nonce and EIP-1559 fee caps.
// The fee cap is twice the latest base fee plus the suggested tip.
func (n *EthNetwork) RecentNetworkState(ctx context.Context, account common.Address) (*interfaces.NetworkState, error) {
	chainID, err := n.getChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	nonce, err := n.backend.PendingNonceAt(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	tip, err := n.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas tip: %w", err)
	}

	head, err := n.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest header: %w", err)
	}

	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	return &interfaces.NetworkState{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		BlockHash: head.Hash(),
	}, nil
}

// SubmitTransaction broadcasts a signed transaction.
func (n *EthNetwork) SubmitTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if err := n.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	n.log.Debug("transaction submitted", "tx", tx.Hash())
	return tx.Hash(), nil
}

// Receipt returns nil, nil for transactions the node does not know yet.
func (n *EthNetwork) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := n.backend.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// AwaitFinalization polls for the finalization log of ref until it is visible
// at the requested commitment or ctx is done.
func (n *EthNetwork) AwaitFinalization(ctx context.Context, ref interfaces.ComputationRef, commitment interfaces.CommitmentLevel) (common.Hash, error) {
	head, err := n.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch latest header: %w", err)
	}

	from := new(big.Int)
	if head.Number.Uint64() > n.cfg.Lookback {
		from.SetUint64(head.Number.Uint64() - n.cfg.Lookback)
	}

	query := ethereum.FilterQuery{
		FromBlock: from,
		Addresses: []common.Address{ref.Program},
		Topics:    [][]common.Hash{{n.cfg.FinalizationEvent}, {ref.OffsetTopic()}},
	}

	n.log.Debug("awaiting finalization", "program", ref.Program, "offset", ref.Offset, "commitment", commitment)

	t := time.NewTicker(n.cfg.PollInterval)
	defer t.Stop()
	for {
		txHash, ok, err := n.pollFinalization(ctx, query, commitment)
		if err != nil {
			n.log.Debug("finalization poll failed", "err", err)
		}
		if ok {
			return txHash, nil
		}

		select {
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		case <-t.C:
		}
	}
}

func (n *EthNetwork) pollFinalization(ctx context.Context, query ethereum.FilterQuery, commitment interfaces.CommitmentLevel) (common.Hash, bool, error) {
	logs, err := n.backend.FilterLogs(ctx, query)
	if err != nil {
		return common.Hash{}, false, err
	}

	var found *types.Log
	for i := range logs {
		if !logs[i].Removed {
			found = &logs[i]
		}
	}
	if found == nil {
		return common.Hash{}, false, nil
	}

	if commitment == interfaces.CommitmentFinalized {
		finalized, err := n.backend.HeaderByNumber(ctx, big.NewInt(int64(rpc.FinalizedBlockNumber)))
		if err != nil {
			return common.Hash{}, false, err
		}
		if finalized.Number.Uint64() < found.BlockNumber {
			return common.Hash{}, false, nil
		}
	}

	return found.TxHash, true, nil
}
