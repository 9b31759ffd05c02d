package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/confidential-move-client/cmd/flags"
	"github.com/ruteri/confidential-move-client/cmd/minecommon"
	"github.com/ruteri/confidential-move-client/httpserver"
	"github.com/urfave/cli/v2"
)

var daemonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.Float64Flag{
		Name:  "rate-limit",
		Usage: "moves per second allowed per identity (0 disables limiting)",
	},
	&cli.IntFlag{
		Name:  "rate-burst",
		Usage: "burst of moves allowed per identity",
	},
	flags.LogServiceFlagFn("mined"),
	flags.PprofFlag,
	flags.AdminFlag,
	flags.DrainSecondsFlag,
	flags.MetricsAddrFlag,
}

func main() {
	app := &cli.App{
		Name:  "mined",
		Usage: "Play encrypted moves against the confidential computation program",
		Flags: append(append(append([]cli.Flag{}, flags.CommonFlags...), flags.PipelineFlags...), daemonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cfg, err := flags.LoadConfig(cCtx)
			if err != nil {
				logger.Error("Invalid configuration", "err", err)
				return err
			}
			if cCtx.IsSet("rate-limit") {
				cfg.RateLimit = cCtx.Float64("rate-limit")
			}
			if cCtx.IsSet("rate-burst") {
				cfg.RateBurst = cCtx.Int("rate-burst")
			}

			keyring, err := minecommon.LoadKeyring(
				cCtx.StringSlice(flags.PrivateKeyFlag.Name),
				cCtx.StringSlice(flags.KeystoreFlag.Name),
				cCtx.String(flags.KeystorePassphraseFlag.Name),
			)
			if err != nil {
				logger.Error("Failed to load identities", "err", err)
				return err
			}
			logger.Info("Identities loaded", "count", keyring.Len())

			pipeline, err := minecommon.Build(cCtx.Context, cfg, logger)
			if err != nil {
				logger.Error("Failed to build pipeline", "err", err)
				return err
			}
			defer pipeline.Close()

			limiter := httpserver.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, 0)
			handler := httpserver.NewHandler(pipeline.Keys, pipeline.Client, pipeline.Fallback, keyring, limiter, logger)

			serverCfg := flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"), cfg.Timeout)
			server, err := httpserver.New(serverCfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			// Key records stay persisted; only disconnects purge them.
			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
