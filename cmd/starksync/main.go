package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/spf13/cobra"

	"github.com/starkware-libs/starksync-go/starknetsync"
	"github.com/starkware-libs/starksync-go/starknetsync/central"
	"github.com/starkware-libs/starksync-go/starknetsync/storage"
)

const nodeVersion = "starksync-go/0.1.0"

func rootCommand() (*cobra.Command, *string) {
	var configPath string
	cmd := &cobra.Command{
		Use:   "starksync",
		Short: "StarkNet full-node block and state-diff sync engine",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (defaults are used for anything it omits)")
	return cmd, &configPath
}

func loadConfig(path string) (starknetsync.Config, error) {
	cfg := starknetsync.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	cmd, configPath := rootCommand()
	logger := log.Root()

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			logger.Error("could not load config", "err", err)
			return err
		}
		if cfg.Central.URL == "" {
			return fmt.Errorf("central.url must be set (pass --config pointing at a TOML file)")
		}

		source := central.NewGenericCentralSource(cfg.Central, nodeVersion)
		store := storage.NewMemoryStore()
		engine := starknetsync.NewGenericStateSync(cfg, source, store, logger)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger.Info("starting sync engine", "central_url", cfg.Central.URL)
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sync engine stopped", "err", err)
			return err
		}
		logger.Info("sync engine shut down")
		return nil
	}

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "starksync: %v\n", err)
		os.Exit(1)
	}
}
