package main

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/multify/internal/live"
	"github.com/desertthunder/multify/internal/server"
	"github.com/desertthunder/multify/internal/shared"
)

// Serve runs the HTTP API with live queue updates until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}
	if err := r.requireSpotify(); err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	queueService, err := r.queueService(db)
	if err != nil {
		return err
	}

	hub := live.NewHub(queueService, r.logger)
	defer hub.Close()
	hub.SetCheckOrigin(originChecker(r.config.Server.AllowedOrigins))
	queueService.SetNotifier(hub)

	handler := server.NewAPI(server.APIOptions{
		Tokens:         r.spotify,
		Parties:        r.partyService(db),
		Queue:          queueService,
		Tracks:         r.spotify,
		Live:           hub,
		AllowedOrigins: r.config.Server.AllowedOrigins,
		Logger:         r.logger,
	})

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("serving multify", "addr", addr, "database", r.config.Database.Path, "score", r.config.Queue.Score)
	return server.NewServer(addr, handler, shared.WithLogger(r.logger, "component", "server")).Run(ctx)
}

// originChecker accepts websocket upgrades from the allowed browser origins.
func originChecker(allowed []string) func(origin string) bool {
	return func(origin string) bool {
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
