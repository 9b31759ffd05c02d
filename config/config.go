// Package config loads the move daemon configuration from a YAML file and the
// environment. Command-line flags are applied on top by the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/confidential-move-client/chain"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/ruteri/confidential-move-client/mxe"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvVaultKey = "MPC_ENCRYPTION_KEY"
	EnvRPCAddr  = "MINED_RPC_ADDR"
	EnvProgram  = "MINED_PROGRAM"
)

// Config is the resolved configuration of the pipeline.
type Config struct {
	RPCAddr      string
	Commitment   interfaces.CommitmentLevel
	PollInterval time.Duration
	Lookback     uint64

	Program            common.Address
	ClusterOffset      uint32
	Timeout            time.Duration
	FastTimeout        time.Duration
	GasLimit           uint64
	AdverseProbability float64
	WinningStatus      uint8

	Stores   []string
	VaultKey string

	RateLimit float64
	RateBurst int
}

// Default returns the built-in configuration. Program and VaultKey have no
// default.
func Default() Config {
	net := chain.DefaultNetworkConfig()
	return Config{
		RPCAddr:            chain.DefaultRPCEndpoint,
		Commitment:         interfaces.CommitmentFinalized,
		PollInterval:       net.PollInterval,
		Lookback:           net.Lookback,
		ClusterOffset:      mxe.DefaultClusterOffset,
		Timeout:            mxe.DefaultTimeout,
		FastTimeout:        mxe.DefaultFastTimeout,
		GasLimit:           mxe.DefaultGasLimit,
		AdverseProbability: mxe.DefaultAdverseProbability,
		WinningStatus:      mxe.WinningStatus,
		Stores:             []string{"memory://"},
		RateLimit:          1,
		RateBurst:          3,
	}
}

// File is the on-disk layout.
type File struct {
	Network NetworkFile `yaml:"network"`
	Program ProgramFile `yaml:"program"`
	Keys    KeysFile    `yaml:"keys"`
	Daemon  DaemonFile  `yaml:"daemon"`
}

type NetworkFile struct {
	RPCAddr      string        `yaml:"rpcAddr"`
	Commitment   string        `yaml:"commitment"`
	PollInterval time.Duration `yaml:"pollInterval"`
	Lookback     uint64        `yaml:"lookback"`
}

type ProgramFile struct {
	Address            string        `yaml:"address"`
	ClusterOffset      uint32        `yaml:"clusterOffset"`
	Timeout            time.Duration `yaml:"timeout"`
	FastTimeout        time.Duration `yaml:"fastTimeout"`
	GasLimit           uint64        `yaml:"gasLimit"`
	AdverseProbability *float64      `yaml:"adverseProbability"`
	WinningStatus      *uint8        `yaml:"winningStatus"`
}

type KeysFile struct {
	Stores []string `yaml:"stores"`
}

type DaemonFile struct {
	RateLimit *float64 `yaml:"rateLimit"`
	RateBurst int      `yaml:"rateBurst"`
}

// LoadFromPath reads path over the defaults and applies environment
// overrides. An empty path yields defaults plus environment.
func LoadFromPath(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		var parsed File
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if err := Merge(&cfg, parsed); err != nil {
			return Config{}, err
		}
	}

	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

// Merge copies every set field of src into dst.
func Merge(dst *Config, src File) error {
	if src.Network.RPCAddr != "" {
		dst.RPCAddr = src.Network.RPCAddr
	}
	if src.Network.Commitment != "" {
		dst.Commitment = interfaces.ParseCommitmentLevel(src.Network.Commitment)
	}
	if src.Network.PollInterval != 0 {
		dst.PollInterval = src.Network.PollInterval
	}
	if src.Network.Lookback != 0 {
		dst.Lookback = src.Network.Lookback
	}

	if src.Program.Address != "" {
		if !common.IsHexAddress(src.Program.Address) {
			return fmt.Errorf("invalid program address %q", src.Program.Address)
		}
		dst.Program = common.HexToAddress(src.Program.Address)
	}
	if src.Program.ClusterOffset != 0 {
		dst.ClusterOffset = src.Program.ClusterOffset
	}
	if src.Program.Timeout != 0 {
		dst.Timeout = src.Program.Timeout
	}
	if src.Program.FastTimeout != 0 {
		dst.FastTimeout = src.Program.FastTimeout
	}
	if src.Program.GasLimit != 0 {
		dst.GasLimit = src.Program.GasLimit
	}
	if src.Program.AdverseProbability != nil {
		dst.AdverseProbability = *src.Program.AdverseProbability
	}
	if src.Program.WinningStatus != nil {
		dst.WinningStatus = *src.Program.WinningStatus
	}

	if src.Keys.Stores != nil {
		dst.Stores = src.Keys.Stores
	}

	if src.Daemon.RateLimit != nil {
		dst.RateLimit = *src.Daemon.RateLimit
	}
	if src.Daemon.RateBurst != 0 {
		dst.RateBurst = src.Daemon.RateBurst
	}
	return nil
}

// ApplyEnvOverrides reads the vault key, RPC address and program address
// from the environment.
func ApplyEnvOverrides(cfg *Config) {
	if key := os.Getenv(EnvVaultKey); key != "" {
		cfg.VaultKey = key
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRPCAddr)); addr != "" {
		cfg.RPCAddr = addr
	}
	if program := strings.TrimSpace(os.Getenv(EnvProgram)); common.IsHexAddress(program) {
		cfg.Program = common.HexToAddress(program)
	}
}

// Validate fails fast on configuration the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.VaultKey == "" {
		errs = append(errs, fmt.Errorf("%w: set %s or --vault-key", interfaces.ErrEmptyVaultKey, EnvVaultKey))
	}
	if c.Program == (common.Address{}) {
		errs = append(errs, errors.New("program address is required"))
	}
	if c.AdverseProbability < 0 || c.AdverseProbability > 1 {
		errs = append(errs, fmt.Errorf("adverse probability %v outside [0, 1]", c.AdverseProbability))
	}
	if len(c.Stores) == 0 {
		errs = append(errs, errors.New("at least one key store is required"))
	}
	if c.Timeout <= 0 || c.FastTimeout <= 0 {
		errs = append(errs, errors.New("finalization timeouts must be positive"))
	}
	return errors.Join(errs...)
}

// ClientConfig returns the move client configuration.
func (c Config) ClientConfig() mxe.Config {
	cfg := mxe.DefaultConfig(c.Program)
	cfg.ClusterOffset = c.ClusterOffset
	cfg.Timeout = c.Timeout
	cfg.FastTimeout = c.FastTimeout
	cfg.Commitment = c.Commitment
	cfg.GasLimit = c.GasLimit
	cfg.WinningStatus = mxe.StatusOf(c.WinningStatus)
	return cfg
}

// NetworkConfig returns the finalization polling configuration.
func (c Config) NetworkConfig() chain.NetworkConfig {
	cfg := chain.DefaultNetworkConfig()
	cfg.PollInterval = c.PollInterval
	cfg.Lookback = c.Lookback
	return cfg
}
