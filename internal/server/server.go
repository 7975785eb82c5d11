// Package server runs the HTTP and gRPC listeners and drains them on
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shashiranjanraj/eshop/config"
	"github.com/shashiranjanraj/eshop/pkg/grpc"
	"github.com/shashiranjanraj/eshop/pkg/logger"
)

// ShutdownTimeout bounds how long in-flight requests may finish.
var ShutdownTimeout = 15 * time.Second

// New returns the HTTP server for handler on APP_PORT.
func New(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Run serves until ctx ends, then shuts both listeners down gracefully.
// ping backs the gRPC health service.
func Run(ctx context.Context, handler http.Handler, ping grpc.Pinger) error {
	grpcSrv, err := grpc.Start(config.GRPCPort(), ping)
	if err != nil {
		return err
	}
	defer grpc.Stop(grpcSrv)

	srv := New(handler)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: http listening", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server: shutting down", "timeout", ShutdownTimeout)
	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	logger.Info("server: stopped")
	return nil
}
