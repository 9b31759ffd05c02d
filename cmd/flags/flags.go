package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/confidential-move-client/api"
	"github.com/ruteri/confidential-move-client/common"
	"github.com/ruteri/confidential-move-client/config"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string, moveTimeout time.Duration) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	enableAdmin := cCtx.Bool(AdminFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		EnableAdmin:              enableAdmin,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: moveTimeout + 10*time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             moveTimeout + 30*time.Second,
	}
}

// LoadConfig reads --config and applies every flag the user set on top.
func LoadConfig(cCtx *cli.Context) (config.Config, error) {
	cfg, err := config.LoadFromPath(cCtx.String(ConfigFlag.Name))
	if err != nil {
		return config.Config{}, err
	}

	if cCtx.IsSet(RpcAddrFlag.Name) {
		cfg.RPCAddr = cCtx.String(RpcAddrFlag.Name)
	}
	if cCtx.IsSet(ProgramFlag.Name) {
		if err := config.Merge(&cfg, config.File{Program: config.ProgramFile{Address: cCtx.String(ProgramFlag.Name)}}); err != nil {
			return config.Config{}, err
		}
	}
	if cCtx.IsSet(CommitmentFlag.Name) {
		cfg.Commitment = interfaces.ParseCommitmentLevel(cCtx.String(CommitmentFlag.Name))
	}
	if cCtx.IsSet(TimeoutFlag.Name) {
		cfg.Timeout = cCtx.Duration(TimeoutFlag.Name)
	}
	if cCtx.IsSet(FastTimeoutFlag.Name) {
		cfg.FastTimeout = cCtx.Duration(FastTimeoutFlag.Name)
	}
	if cCtx.IsSet(AdverseProbabilityFlag.Name) {
		cfg.AdverseProbability = cCtx.Float64(AdverseProbabilityFlag.Name)
	}
	if cCtx.IsSet(StoreFlag.Name) {
		cfg.Stores = cCtx.StringSlice(StoreFlag.Name)
	}
	if cCtx.IsSet(VaultKeyFlag.Name) {
		cfg.VaultKey = cCtx.String(VaultKeyFlag.Name)
	}

	return cfg, cfg.Validate()
}

var ConfigFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "path to a YAML config file",
}

var RpcAddrFlag = &cli.StringFlag{
	Name:  "rpc-addr",
	Value: "http://127.0.0.1:8545",
	Usage: "address to connect to RPC",
}

var ProgramFlag = &cli.StringFlag{
	Name:  "program",
	Usage: "game program contract address, 0x-prefixed hex",
}

var CommitmentFlag = &cli.StringFlag{
	Name:  "commitment",
	Value: "finalized",
	Usage: "commitment awaited for computation finalization: 'confirmed' or 'finalized'",
}

var TimeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Value: 120 * time.Second,
	Usage: "finalization budget of a move",
}

var FastTimeoutFlag = &cli.DurationFlag{
	Name:  "fast-timeout",
	Value: 3 * time.Second,
	Usage: "finalization budget of a fast move",
}

var AdverseProbabilityFlag = &cli.Float64Flag{
	Name:  "adverse-probability",
	Value: 1.0 / 3.0,
	Usage: "probability that a move which could not be settled is decided as lost",
}

var StoreFlag = &cli.StringSliceFlag{
	Name:  "store",
	Usage: "key record store URI, repeatable: memory://, file:///path, s3://bucket/prefix, vault://host:8200/secret/path",
}

var VaultKeyFlag = &cli.StringFlag{
	Name:    "vault-key",
	EnvVars: []string{config.EnvVaultKey},
	Usage:   "application key encrypting stored key records",
}

var PrivateKeyFlag = &cli.StringSliceFlag{
	Name:    "private-key",
	EnvVars: []string{"MINED_PRIVATE_KEYS"},
	Usage:   "hex private key of an identity to play for, repeatable",
}

var KeystoreFlag = &cli.StringSliceFlag{
	Name:  "keystore",
	Usage: "keystore file of an identity to play for, repeatable",
}

var KeystorePassphraseFlag = &cli.StringFlag{
	Name:    "keystore-passphrase",
	EnvVars: []string{"MINED_KEYSTORE_PASSPHRASE"},
	Usage:   "passphrase of the keystore files",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var AdminFlag = &cli.BoolFlag{
	Name:  "admin",
	Value: false,
	Usage: "enable key record administration endpoints",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

// PipelineFlags configure the move pipeline shared by both binaries.
var PipelineFlags = []cli.Flag{
	ConfigFlag,
	RpcAddrFlag,
	ProgramFlag,
	CommitmentFlag,
	TimeoutFlag,
	FastTimeoutFlag,
	AdverseProbabilityFlag,
	StoreFlag,
	VaultKeyFlag,
	PrivateKeyFlag,
	KeystoreFlag,
	KeystorePassphraseFlag,
}
