package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qubitpulse/relay-server-rr/internal/instance"
	"github.com/qubitpulse/relay-server-rr/internal/relay"
	"github.com/qubitpulse/relay-server-rr/internal/ws"
)

var (
	serveHost string
	servePort int
	serveLock string
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Start the relay server (default)",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serveHost, "host", "", "Override listen host")
	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "Override listen port")
	cmd.Flags().StringVar(&serveLock, "lock", "", "Override instance lock file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("lock") {
		cfg.Server.LockFile = serveLock
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Server.LockFile != "" {
		lock, err := instance.Acquire(cfg.Server.LockFile)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	tm := newTmux(cfg)
	if version, err := tm.Version(); err != nil {
		log.Printf("WARNING: tmux not usable (%v); install tmux or set tmux.binary. Commands will fail until it is.", err)
	} else {
		log.Printf("Using %s", version)
	}

	hub := ws.NewHub(cfg.Server.SendBuffer)
	coord := relay.NewCoordinator(cfg, tm, hub)
	server := ws.NewServer(hub, coord)
	server.SetSessionReporter(coord)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go coord.Run(ctx)

	err = ws.ListenAndServe(ctx, cfg.Addr(), mux)
	log.Println("Shutting down...")
	hub.CloseAll()
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
