package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	"github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"

	"onchainlottery/internal/app"
	"onchainlottery/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var home string

	root := &cobra.Command{
		Use:           "ocld",
		Short:         "On-chain lottery ABCI daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&home, "home", ".ocl", "app home directory (state is stored under <home>/app)")

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the ABCI application server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStart(home)
		},
	}
	root.AddCommand(start)
	return root
}

func runStart(home string) error {
	cfg, err := config.Load(home)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.NewLogger(os.Stdout)

	a, err := app.New(home, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	srv, err := server.NewServer(cfg.ListenAddr, cfg.Transport, a)
	if err != nil {
		return fmt.Errorf("start abci server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("abci server start: %w", err)
	}
	defer func() { _ = srv.Stop() }()

	logger.Info("abci server listening", "addr", cfg.ListenAddr, "transport", cfg.Transport)

	// Wait for signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}
