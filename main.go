// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielhkuo/campus-vote/cliparse"
	"github.com/danielhkuo/campus-vote/db"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/router"
	"github.com/danielhkuo/campus-vote/supervisor"
	"github.com/danielhkuo/campus-vote/verification"
)

// breakerOpenTimeout is how long a tripped upstream breaker stays open.
const breakerOpenTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.CreateSchema(conn); err != nil {
		return err
	}
	logging.Info().Str("type", cfg.DatabaseType).Msg("Database schema ready")

	verifiers := router.Verifiers{
		Store: verification.GuardStore(
			verification.NewStorageClient(cfg.StorageURL, cfg.ServiceAPIKey, cfg.UpstreamTimeout), breakerOpenTimeout),
		Reader: verification.GuardReader(
			verification.NewDocumentClient(cfg.DocumentURL, cfg.ServiceAPIKey, cfg.UpstreamTimeout), breakerOpenTimeout),
		Matcher: verification.GuardMatcher(
			verification.NewFaceClient(cfg.FaceURL, cfg.ServiceAPIKey, cfg.UpstreamTimeout), breakerOpenTimeout),
	}

	handler, err := router.NewRouter(conn, cfg, verifiers)
	if err != nil {
		return err
	}

	addr := ":" + strconv.Itoa(cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(supervisor.TreeConfig{})
	tree.AddAPIService(supervisor.NewHTTPService(server, addr, 10*time.Second))

	err = tree.Serve(ctx)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		logging.Info().Msg("Shutdown complete")
		return nil
	}
	return err
}
