// Package minecommon assembles the move pipeline for the binaries.
package minecommon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/confidential-move-client/chain"
	"github.com/ruteri/confidential-move-client/config"
	"github.com/ruteri/confidential-move-client/cryptoutils"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/ruteri/confidential-move-client/keymanager"
	"github.com/ruteri/confidential-move-client/mxe"
	"github.com/ruteri/confidential-move-client/storage"
)

// Pipeline is every component a move needs.
type Pipeline struct {
	Network  *chain.EthNetwork
	Store    interfaces.KeyValueStore
	Keys     *keymanager.Manager
	Client   *mxe.Client
	Fallback *mxe.FallbackResolver

	eth *ethclient.Client
}

// Build dials the RPC node and wires the pipeline from cfg.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*Pipeline, error) {
	log.Info("Connecting to Ethereum RPC", "address", cfg.RPCAddr)
	eth, err := ethclient.DialContext(ctx, cfg.RPCAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}

	network := chain.NewEthNetwork(eth, cfg.NetworkConfig(), log)

	store, err := storage.NewStoreFactory(log).MirroredStoreFor(cfg.Stores)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to create key store: %w", err)
	}
	log.Info("Key store ready", "store", store.Name())

	vault, err := cryptoutils.NewVault(cfg.VaultKey)
	if err != nil {
		eth.Close()
		return nil, err
	}

	deriver := cryptoutils.NewKeyDeriver(network, chain.DialDefault(log), log)
	keys := keymanager.NewManager(store, vault, deriver, log)

	cluster := mxe.NewProgramCluster(cfg.Program, eth)
	client, err := mxe.NewClient(cfg.ClientConfig(), network, cluster, keys, log)
	if err != nil {
		eth.Close()
		return nil, err
	}

	fallback, err := mxe.NewFallbackResolver(cfg.AdverseProbability, nil)
	if err != nil {
		eth.Close()
		return nil, err
	}

	return &Pipeline{
		Network:  network,
		Store:    store,
		Keys:     keys,
		Client:   client,
		Fallback: fallback,
		eth:      eth,
	}, nil
}

func (p *Pipeline) Close() {
	p.eth.Close()
}

// LoadKeyring loads the identities named on the command line.
func LoadKeyring(hexKeys, keystores []string, passphrase string) (*chain.Keyring, error) {
	keyring, err := chain.LoadKeyring(hexKeys, keystores, passphrase)
	if err != nil {
		return nil, err
	}
	if keyring.Len() == 0 {
		return nil, fmt.Errorf("no identities configured: use --private-key or --keystore")
	}
	return keyring, nil
}
