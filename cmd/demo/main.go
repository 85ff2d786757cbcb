package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soulkyu/leasekeeper/pkg/health"
	"github.com/soulkyu/leasekeeper/pkg/lifecycle"
	"github.com/soulkyu/leasekeeper/pkg/vaultauth"
)

var demoFlags struct {
	healthAddr string
}

func main() {
	flag.StringVar(&demoFlags.healthAddr, "health-addr", ":8080", "Address for the /healthz and /ready endpoints")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("leasekeeper exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	authConfig := vaultauth.NewAuthConfigFromEnvironment()
	if err := vaultauth.ValidateConfig(authConfig); err != nil {
		return err
	}

	logger.Info("initializing vault authentication", "method", authConfig.Method)

	authenticator, err := vaultauth.NewAuthenticator(authConfig)
	if err != nil {
		return err
	}

	handle, err := lifecycle.StartBackground(ctx, lifecycle.Config{
		Login:  authenticator,
		Renew:  authenticator,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	readyCtx, readyCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readyCancel()
	if _, err := handle.AwaitReady(readyCtx); err != nil {
		return err
	}
	logger.Info("initial credential acquired")

	healthServer := health.NewServer(demoFlags.healthAddr, handle, logger)
	healthServer.Start()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-groupCtx.Done()
		handle.Cancel()
		handle.Wait()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return healthServer.Stop(shutdownCtx)
	})

	return group.Wait()
}
