package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/desertthunder/crowdq/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the rotation engine and the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	e, err := r.startEngine(ctx, cmd.Bool("simulate"))
	if err != nil {
		return err
	}
	defer e.stop(r)
	defer cancel()

	if cmd.Bool("watch") {
		go e.watch(ctx, r)
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Address()
	}

	srv := server.New(e.dispatcher, server.Options{
		Bus:            e.bus,
		AllowedOrigins: r.config.Server.AllowedOrigins,
		Logger:         r.logger,
	})

	r.logger.Info("serving", "addr", addr, "config", r.configPath)
	return srv.ListenAndServe(ctx, addr)
}
