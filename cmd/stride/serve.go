package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stridehq/stride/internal/apply"
	"github.com/stridehq/stride/internal/notify"
	"github.com/stridehq/stride/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Stride API server",
		Long:  "Serves the plan, proposal and apply endpoints, and runs the nightly plan archive sweep.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "stride.yaml", "path to Stride config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	gen, err := buildGenerator(cfg)
	if err != nil {
		return err
	}
	signer, err := buildSigner(cfg)
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	notifier, err := notify.FromConfig(cfg.Notify, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	go server.RunArchiveSweeper(ctx, gormDB, log)

	return server.Start(ctx, server.StartOpts{
		DB:        gormDB,
		Port:      port,
		Generator: gen,
		Applier:   &apply.Applier{DB: gormDB, Signer: signer, Log: log},
		Notify:    notifier,
		Out:       cmd.OutOrStdout(),
		Log:       log,
	})
}
