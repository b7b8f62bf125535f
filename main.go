package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/archethic-foundation/crypto-accumulator/accumulator"
	"github.com/archethic-foundation/crypto-accumulator/config"
	"github.com/archethic-foundation/crypto-accumulator/logging"
	"github.com/archethic-foundation/crypto-accumulator/server"
	"github.com/archethic-foundation/crypto-accumulator/store"
	"github.com/urfave/cli/v2"
)

var Version = "dev"

func main() {
	runCli()
}

func runCli() {
	accumulator.Init()
	app := cli.App{
		Name:                 "accumulator",
		Usage:                "BLS12-381 cryptographic accumulator",
		Version:              Version,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:  "generate-key",
				Usage: "Generate a secret key and print it as hex",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Usage: "Write the key to this file (mode 0600) instead of stdout", Required: false},
				},
				Action: func(context *cli.Context) error {
					sk, err := accumulator.GenerateKey()
					if err != nil {
						return err
					}
					defer sk.Zero()
					raw := sk.Bytes()
					defer clear(raw[:])
					encoded := hex.EncodeToString(raw[:])

					if path := context.String("output"); path != "" {
						if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
							return err
						}
						logging.Logger().Info().Str("file", path).Msg("Secret key written")
						return nil
					}
					fmt.Println(encoded)
					return nil
				},
			},
			{
				Name:  "export-params",
				Usage: "Print the public generators as JSON",
				Action: func(context *cli.Context) error {
					p, err := accumulator.Parameters()
					if err != nil {
						return err
					}
					g1, g2 := p.G1.Bytes(), p.G2.Bytes()
					out, err := json.MarshalIndent(map[string]string{
						"curve": "bls12-381",
						"g1":    hex.EncodeToString(g1[:]),
						"g2":    hex.EncodeToString(g2[:]),
					}, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(out))
					return nil
				},
			},
			{
				Name:  "verify",
				Usage: "Verify a proof offline against a public export",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "export", Usage: "Public export as hex, or @file", Required: true},
					&cli.StringFlag{Name: "proof", Usage: "Proof as hex, or @file", Required: true},
					&cli.StringFlag{Name: "nonce", Usage: "Nonce as hex", Required: true},
					&cli.StringFlag{Name: "digest", Usage: "Digest of the claimed element as hex (optional)", Required: false},
					&cli.BoolFlag{Name: "non-membership", Usage: "Verify a non-membership proof", Required: false},
				},
				Action: func(context *cli.Context) error {
					rawExport, err := readHexArg(context.String("export"))
					if err != nil {
						return fmt.Errorf("export: %w", err)
					}
					rawProof, err := readHexArg(context.String("proof"))
					if err != nil {
						return fmt.Errorf("proof: %w", err)
					}
					rawNonce, err := readHexArg(context.String("nonce"))
					if err != nil {
						return fmt.Errorf("nonce: %w", err)
					}
					var digest []byte
					if context.IsSet("digest") {
						if digest, err = readHexArg(context.String("digest")); err != nil {
							return fmt.Errorf("digest: %w", err)
						}
					}

					valid, err := verifyOffline(rawExport, rawProof, rawNonce, digest, context.Bool("non-membership"))
					if err != nil {
						return err
					}
					if !valid {
						fmt.Println("invalid")
						return cli.Exit("", 1)
					}
					fmt.Println("valid")
					return nil
				},
			},
			{
				Name:  "start",
				Usage: "Run the accumulator service",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "TOML configuration file", Required: false},
					&cli.BoolFlag{Name: "json-logging", Usage: "enable JSON logging", Required: false},
					&cli.StringFlag{Name: "address", Usage: "address for the accumulator server", Required: false},
					&cli.StringFlag{Name: "metrics-address", Usage: "address for the metrics server", Required: false},
					&cli.StringFlag{Name: "store", Usage: "export store backend (none, memory, redis, leveldb)", Required: false},
					&cli.StringFlag{Name: "redis-url", Usage: "Redis URL for the export store (e.g., redis://localhost:6379)", EnvVars: []string{"REDIS_URL"}, Required: false},
					&cli.StringFlag{Name: "leveldb-dir", Usage: "directory of the LevelDB export store", Required: false},
					&cli.StringFlag{Name: "duplicate-policy", Usage: "what adding a known element does (reject, ignore)", Required: false},
					&cli.IntFlag{Name: "max-handles", Usage: "maximum number of live accumulators", Required: false},
				},
				Action: func(context *cli.Context) error {
					cfg, err := loadConfig(context)
					if err != nil {
						return err
					}

					if cfg.Log.JSON {
						logging.SetJSONOutput()
					}
					if err := logging.SetLevel(cfg.Log.Level); err != nil {
						return fmt.Errorf("log level: %w", err)
					}

					policy, err := accumulator.ParseDuplicatePolicy(cfg.Accumulator.DuplicatePolicy)
					if err != nil {
						return err
					}

					exports, err := store.Open(cfg.Store)
					if err != nil {
						return fmt.Errorf("failed to open export store: %w", err)
					}

					registry := server.NewRegistry(cfg.Accumulator.MaxHandles, accumulator.WithDuplicatePolicy(policy))

					logging.Logger().Info().
						Str("store", cfg.Store.Backend).
						Str("duplicate_policy", policy.String()).
						Int("max_handles", cfg.Accumulator.MaxHandles).
						Msg("Starting accumulator service")

					instance := server.Run(&server.Config{
						Address:        cfg.Server.Address,
						MetricsAddress: cfg.Server.MetricsAddress,
						APIKey:         cfg.Server.APIKey,
						MaxBodyBytes:   cfg.Server.MaxBodyBytes,
					}, registry, exports)

					sigint := make(chan os.Signal, 1)
					signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
					<-sigint
					logging.Logger().Info().Msg("Received signal, shutting down")

					instance.RequestStop()
					instance.AwaitStop()

					registry.DropAll()
					if exports != nil {
						if err := exports.Close(); err != nil {
							logging.Logger().Error().Err(err).Msg("error closing export store")
						}
					}

					logging.Logger().Info().Msg("Shutdown completed")
					return nil
				},
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(context *cli.Context) error {
					fmt.Println(Version)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logging.Logger().Fatal().Err(err).Msg("App failed.")
	}
}

// loadConfig reads the optional config file, then applies flags and the
// environment on top.
func loadConfig(context *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := context.String("config"); path != "" {
		var err error
		if cfg, err = config.ReadConfig(path); err != nil {
			return cfg, err
		}
	}

	if context.IsSet("json-logging") {
		cfg.Log.JSON = context.Bool("json-logging")
	}
	if context.IsSet("address") {
		cfg.Server.Address = context.String("address")
	}
	if context.IsSet("metrics-address") {
		cfg.Server.MetricsAddress = context.String("metrics-address")
	}
	if context.IsSet("store") {
		cfg.Store.Backend = context.String("store")
	}
	if context.IsSet("redis-url") {
		cfg.Store.RedisURL = context.String("redis-url")
	}
	if context.IsSet("leveldb-dir") {
		cfg.Store.LevelDBDir = context.String("leveldb-dir")
	}
	if context.IsSet("duplicate-policy") {
		cfg.Accumulator.DuplicatePolicy = context.String("duplicate-policy")
	}
	if context.IsSet("max-handles") {
		cfg.Accumulator.MaxHandles = context.Int("max-handles")
	}
	cfg.ApplyEnv()

	return cfg, cfg.Validate()
}

func verifyOffline(rawExport, rawProof, rawNonce, digest []byte, nonMembership bool) (bool, error) {
	export, err := accumulator.ParsePublicExport(rawExport)
	if err != nil {
		return false, err
	}
	nonce, err := accumulator.ParseNonce(rawNonce)
	if err != nil {
		return false, err
	}

	if nonMembership {
		proof, err := accumulator.ParseNonMembershipProof(rawProof)
		if err != nil {
			return false, err
		}
		if digest != nil {
			return accumulator.VerifyNonMembershipOf(export, proof, nonce, digest)
		}
		return accumulator.VerifyNonMembership(export, proof, nonce)
	}

	proof, err := accumulator.ParseMembershipProof(rawProof)
	if err != nil {
		return false, err
	}
	if digest != nil {
		return accumulator.VerifyMembershipOf(export, proof, nonce, digest)
	}
	return accumulator.VerifyMembership(export, proof, nonce)
}

// readHexArg decodes a hex argument, optionally 0x-prefixed. "@path" reads
// the hex from a file.
func readHexArg(arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, err
		}
		arg = string(data)
	}
	arg = strings.TrimPrefix(strings.TrimSpace(arg), "0x")
	return hex.DecodeString(arg)
}
