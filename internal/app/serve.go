package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/health"
	"github.com/rbright/dpt/internal/httpapi"
	"github.com/rbright/dpt/internal/ipc"
	"github.com/rbright/dpt/internal/observability"
	"github.com/rbright/dpt/internal/session"
	"github.com/rbright/dpt/internal/voice"
)

const shutdownGrace = 5 * time.Second

// commandServe runs the owner with every network surface until ctx ends.
// The voice session starts stopped; clients start it over IPC or HTTP.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	sock, err := acquireSocket(ctx, socketPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer sock.Close()

	metrics := observability.NewMetrics("dpt")
	healthServer := health.NewServer(logger)

	own, err := buildOwner(ctx, cfg, logger, ownerOptions{
		keepAlive: true,
		observers: []voice.Observer{metrics, healthServer},
		onResult:  metrics.ObserveResult,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("build session failed", "error", err.Error())
		return 1
	}
	defer own.Close()

	api := httpapi.New(ctx, httpapi.Options{
		Voice:            own.voice,
		Parser:           own.domain.parser,
		Dictionary:       own.domain.dict,
		Calendar:         own.domain.calendar,
		Metrics:          metrics.Handler(),
		Location:         own.domain.location,
		AutoThreshold:    cfg.Parser.AutoThreshold,
		ConfirmThreshold: cfg.Parser.ConfirmThreshold,
		Logger:           logger,
	})

	httpListener, err := listenTCP(cfg.Server.HTTPAddr)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: listen http: %v\n", err)
		return 1
	}
	grpcListener, err := listenTCP(cfg.Server.GRPCAddr)
	if err != nil {
		if httpListener != nil {
			_ = httpListener.Close()
		}
		fmt.Fprintf(r.Stderr, "error: listen grpc: %v\n", err)
		return 1
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		srv := &ipc.Server{Handler: own.controller, Logger: logger}
		return srv.Serve(groupCtx, sock.Listener)
	})

	var controllerResult session.Result
	group.Go(func() error {
		controllerResult = own.controller.Run(groupCtx, session.Start{})
		return nil
	})

	if httpListener != nil {
		server := &http.Server{Handler: api.Router(), ReadHeaderTimeout: 5 * time.Second}
		group.Go(func() error {
			return serveHTTP(groupCtx, server, httpListener)
		})
		logger.Info("http api listening", "addr", httpListener.Addr().String())
		fmt.Fprintf(r.Stdout, "http: %s\n", httpListener.Addr())
	}

	if grpcListener != nil {
		group.Go(func() error {
			return healthServer.Serve(groupCtx, grpcListener)
		})
		logger.Info("grpc health listening", "addr", grpcListener.Addr().String())
		fmt.Fprintf(r.Stdout, "grpc: %s\n", grpcListener.Addr())
	}

	err = group.Wait()
	logSessionResult(logger, controllerResult)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func serveHTTP(ctx context.Context, server *http.Server, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// listenTCP returns a nil listener for an empty address.
func listenTCP(addr string) (net.Listener, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, nil
	}
	return net.Listen("tcp", addr)
}
