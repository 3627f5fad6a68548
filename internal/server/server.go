// Package server accepts WebSocket connections and hands each one to a
// session handler on its own goroutine.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matgreaves/run"
)

// Handler runs one session over an upgraded connection. Serve returns when
// the session is over; the handler owns conn and must close it.
type Handler interface {
	Serve(ctx context.Context, conn *websocket.Conn, r *http.Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn *websocket.Conn, r *http.Request) error

func (f HandlerFunc) Serve(ctx context.Context, conn *websocket.Conn, r *http.Request) error {
	return f(ctx, conn, r)
}

// shutdownTimeout bounds how long Runner waits for sessions on exit.
const shutdownTimeout = 5 * time.Second

// Server is the connection dispatcher.
type Server struct {
	httpServer *http.Server
	handler    Handler

	// Sessions run under ctx; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
	active   atomic.Int64
}

// New creates a dispatcher that will listen on addr.
func New(addr string, h Handler) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Active returns the number of sessions currently running.
func (s *Server) Active() int {
	return int(s.active.Load())
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	log.Printf("wsreplay listening on ws://%s", ln.Addr().String())
	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, cancels every running session and
// waits for them to finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.cancel()
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner serves until its context is cancelled, then shuts down.
func (s *Server) Runner() run.Runner {
	return serveUntilDone(s.Start, s.Shutdown)
}

// serveUntilDone adapts a blocking serve function and its shutdown to a
// run.Runner.
func serveUntilDone(serve func() error, shutdown func(context.Context) error) run.Runner {
	return run.Func(func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- serve() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			return err
		}
		return <-errCh
	})
}
