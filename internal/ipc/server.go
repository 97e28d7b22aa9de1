package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// DefaultIdleTimeout closes connections that send nothing for this long.
const DefaultIdleTimeout = 30 * time.Second

// Handler answers one control request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Server answers newline-delimited JSON requests. A connection may carry
// any number of requests; each gets exactly one response line.
type Server struct {
	Handler     Handler
	Logger      *slog.Logger
	IdleTimeout time.Duration

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// Serve runs a Server with default settings.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	return (&Server{Handler: handler}).Serve(ctx, listener)
}

// Serve accepts clients until ctx ends or the listener closes. Open
// connections are closed on shutdown and drained before Serve returns.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.Logger == nil {
		s.Logger = slog.New(slog.DiscardHandler)
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}

	var wg sync.WaitGroup
	stop := context.AfterFunc(ctx, func() {
		_ = listener.Close()
		s.closeAll()
	})
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.closeAll()
			wg.Wait()
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		s.track(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	decoder := json.NewDecoder(bufio.NewReader(conn))
	encoder := json.NewEncoder(conn)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))

		var req Request
		if err := decoder.Decode(&req); err != nil {
			if isHangup(err) {
				return
			}
			s.Logger.Debug("ipc request rejected", "error", err.Error())
			_ = encoder.Encode(Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)})
			return
		}

		resp := s.Handler.Handle(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			s.Logger.Debug("ipc response write failed", "command", req.Command, "error", err.Error())
			return
		}
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// isHangup reports a client that went away or idled out.
func isHangup(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}
