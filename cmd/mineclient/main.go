package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ruteri/confidential-move-client/api"
	"github.com/ruteri/confidential-move-client/api/clients"
	"github.com/ruteri/confidential-move-client/cmd/flags"
	"github.com/ruteri/confidential-move-client/cmd/minecommon"
	"github.com/ruteri/confidential-move-client/interfaces"
	"github.com/ruteri/confidential-move-client/mxe"
	"github.com/urfave/cli/v2"
)

var moveFlag = &cli.UintFlag{
	Name:     "move",
	Required: true,
	Usage:    "cell to play, 1..9",
}

var fastFlag = &cli.BoolFlag{
	Name:  "fast",
	Usage: "use the fast finalization budget",
}

var serverFlag = &cli.StringFlag{
	Name:  "server",
	Value: "http://127.0.0.1:8080",
	Usage: "move daemon address",
}

var identityFlag = &cli.StringFlag{
	Name:     "identity",
	Required: true,
	Usage:    "identity address held by the daemon",
}

func main() {
	app := &cli.App{
		Name:  "mineclient",
		Usage: "Play one encrypted move, locally or through a move daemon",
		Commands: []*cli.Command{
			{
				Name:   "play",
				Usage:  "connect the first configured identity and play one move",
				Flags:  localFlags(moveFlag, fastFlag),
				Action: playLocal,
			},
			{
				Name:  "keys",
				Usage: "inspect or purge stored key records",
				Subcommands: []*cli.Command{
					{
						Name:   "status",
						Usage:  "report whether each configured identity has a stored key record",
						Flags:  localFlags(),
						Action: keysStatus,
					},
					{
						Name:   "clear",
						Usage:  "purge every stored key record",
						Flags:  localFlags(),
						Action: keysClear,
					},
				},
			},
			{
				Name:   "remote",
				Usage:  "play one move through a move daemon",
				Flags:  []cli.Flag{serverFlag, identityFlag, moveFlag, fastFlag},
				Action: playRemote,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func localFlags(extra ...cli.Flag) []cli.Flag {
	out := make([]cli.Flag, 0, len(flags.CommonFlags)+len(flags.PipelineFlags)+len(extra)+1)
	out = append(out, flags.CommonFlags...)
	out = append(out, flags.PipelineFlags...)
	out = append(out, flags.LogServiceFlagFn("mineclient"))
	return append(out, extra...)
}

func validMove(cCtx *cli.Context) (uint8, error) {
	move := cCtx.Uint(moveFlag.Name)
	if move < 1 || move > 9 {
		return 0, fmt.Errorf("move must be within [1, 9], got %d", move)
	}
	return uint8(move), nil
}

func playLocal(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	move, err := validMove(cCtx)
	if err != nil {
		return err
	}

	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return err
	}
	keyring, err := minecommon.LoadKeyring(
		cCtx.StringSlice(flags.PrivateKeyFlag.Name),
		cCtx.StringSlice(flags.KeystoreFlag.Name),
		cCtx.String(flags.KeystorePassphraseFlag.Name),
	)
	if err != nil {
		return err
	}

	pipeline, err := minecommon.Build(cCtx.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	identity, _ := keyring.Identity(keyring.Addresses()[0])
	if err := pipeline.Keys.Connect(cCtx.Context, identity); err != nil {
		return fmt.Errorf("failed to make keys ready: %w", err)
	}

	var out *mxe.Outcome
	if cCtx.Bool(fastFlag.Name) {
		out = pipeline.Client.SubmitFast(cCtx.Context, identity, move)
	} else {
		out = pipeline.Client.Submit(cCtx.Context, identity, move)
	}
	if errors.Is(out.Err, interfaces.ErrNotReady) || errors.Is(out.Err, interfaces.ErrUnsupportedSigner) {
		return out.Err
	}

	decision, usedFallback := pipeline.Fallback.Apply(out)
	return printJSON(map[string]any{
		"outcome":  out,
		"decision": decision,
		"fallback": usedFallback,
	})
}

func keysStatus(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return err
	}
	keyring, err := minecommon.LoadKeyring(
		cCtx.StringSlice(flags.PrivateKeyFlag.Name),
		cCtx.StringSlice(flags.KeystoreFlag.Name),
		cCtx.String(flags.KeystorePassphraseFlag.Name),
	)
	if err != nil {
		return err
	}

	pipeline, err := minecommon.Build(cCtx.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	status := make(map[string]bool)
	for _, addr := range keyring.Addresses() {
		identity, _ := keyring.Identity(addr)
		hasKeys, err := pipeline.Keys.HasKeys(cCtx.Context, identity)
		if err != nil {
			return err
		}
		status[addr.Hex()] = hasKeys
	}
	return printJSON(status)
}

func keysClear(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return err
	}
	pipeline, err := minecommon.Build(cCtx.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	if err := pipeline.Keys.ClearAll(cCtx.Context); err != nil {
		return err
	}
	return printJSON(&api.ClearKeysResponse{Status: "cleared"})
}

func playRemote(cCtx *cli.Context) error {
	move, err := validMove(cCtx)
	if err != nil {
		return err
	}

	client := clients.NewMoveClient(cCtx.String(serverFlag.Name))
	identity := cCtx.String(identityFlag.Name)

	if _, err := client.Connect(cCtx.Context, identity); err != nil {
		return err
	}

	resp, err := client.Move(cCtx.Context, &api.MoveRequest{
		Identity: identity,
		Move:     move,
		Fast:     cCtx.Bool(fastFlag.Name),
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
