package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/chatops/server"
	apiv1 "github.com/hrygo/chatops/server/router/api/v1"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}

	cmd.Flags().String("addr", "", "address of server")
	cmd.Flags().Int("port", 5000, "port of server")
	cmd.Flags().String("session-redis-addr", "localhost:6379", "redis address for the redis session store")
	cmd.Flags().String("session-sqlite-dsn", "chatops.db", "sqlite dsn for the sqlite session store")
	for key, flag := range map[string]string{
		"addr":               "addr",
		"port":               "port",
		"session.redis.addr": "session-redis-addr",
		"session.sqlite.dsn": "session-sqlite-dsn",
	} {
		bindCmdFlag(cmd, key, flag)
	}
	return cmd
}

func runServe(ctx context.Context) error {
	p := instanceProfile

	a, err := newApp(ctx, p, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("failed to close session store", "error", err)
		}
	}()

	service := apiv1.NewAPIV1Service(a.orchestrator, a.sessions, nil, a.metrics)
	s := server.NewServer(p, service, slog.Default())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Start(ctx)
	})
	g.Go(func() error {
		return a.sessions.Run(ctx)
	})

	err = g.Wait()
	a.metrics.LogSummary()
	return err
}
