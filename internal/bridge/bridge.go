// Package bridge proxies one WebSocket client to an upstream server and
// records every message that crosses it.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/wsreplay/internal/clock"
	"github.com/SmitUplenchwar2687/wsreplay/internal/metrics"
	"github.com/SmitUplenchwar2687/wsreplay/internal/namer"
	"github.com/SmitUplenchwar2687/wsreplay/internal/recorder"
	"github.com/SmitUplenchwar2687/wsreplay/internal/session"
)

const mode = "record"

// Bridge turns each accepted client connection into a recorded proxy
// session to Target.
type Bridge struct {
	Target  string       // upstream ws:// or wss:// URL
	Namer   *namer.Namer // per-connection log paths
	Dialer  *websocket.Dialer
	Clock   clock.Clock
	Metrics *metrics.Collector
	Verbose bool

	// OnState, if set, is called on every session state change.
	OnState func(State)
}

// Serve runs one session until either side closes. It returns nil when
// either peer closed normally, and the error that ended the session otherwise.
// The client connection is always closed on return.
func (b *Bridge) Serve(ctx context.Context, client *websocket.Conn, r *http.Request) error {
	logger := session.NewLogger(b.Verbose)
	done := b.Metrics.SessionStarted(mode)
	defer done()

	path := b.Namer.Next()
	w, err := recorder.Create(path)
	if err != nil {
		b.Metrics.RecordError(mode, "log_open")
		logger.Printf("Cannot record connection from %s: %v", r.RemoteAddr, err)
		client.Close()
		return err
	}
	logger.Printf("New connection accepted. Recording to: %s", path)

	clk := b.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	s := &Session{
		client:  client,
		writer:  w,
		clock:   clk,
		start:   clk.Now(),
		log:     logger,
		metrics: b.Metrics,
		onState: b.OnState,
	}

	err = s.run(ctx, b.dialer(r), b.Target, FilterHeaders(r.Header))
	if cerr := w.Close(); cerr != nil {
		logger.Printf("Closing log %s: %v", path, cerr)
	}
	if err != nil {
		b.Metrics.RecordError(mode, "transport")
		logger.Printf("Connection ended with error: %v. Recording complete: %s (%d messages)", err, path, w.Len())
		return err
	}
	logger.Printf("Connection closed. Recording complete: %s (%d messages)", path, w.Len())
	return nil
}

// dialer returns a copy of the configured dialer that requests the same
// subprotocols the client asked for.
func (b *Bridge) dialer(r *http.Request) *websocket.Dialer {
	base := b.Dialer
	if base == nil {
		base = websocket.DefaultDialer
	}
	d := *base
	d.Subprotocols = websocket.Subprotocols(r)
	return &d
}

// Session is one client connection bridged to one upstream connection.
type Session struct {
	client  *websocket.Conn
	writer  *recorder.Writer
	clock   clock.Clock
	start   time.Time
	log     *session.Logger
	metrics *metrics.Collector
	onState func(State)

	state      atomic.Int32
	recordMu   sync.Mutex
	logErrOnce sync.Once
}

type message struct {
	typ  int
	data []byte
}

type dialResult struct {
	conn *websocket.Conn
	err  error
}

// State returns the current session state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	if State(s.state.Swap(int32(st))) == st {
		return
	}
	s.announce(st)
}

func (s *Session) announce(st State) {
	s.log.Debugf("state %s", st)
	if s.onState != nil {
		s.onState(st)
	}
}

// run owns the upstream side: it dials, buffers client messages until the
// upstream opens, flushes them in order, then forwards. Client reads and
// upstream reads happen on their own goroutines; each connection has
// exactly one writer.
func (s *Session) run(ctx context.Context, dialer *websocket.Dialer, target string, header http.Header) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		endOnce sync.Once
		endErr  error
	)
	// end records why the session is over and starts teardown.
	// Only the first reason counts.
	end := func(err error) {
		endOnce.Do(func() { endErr = err })
		cancel()
	}

	dialed := make(chan dialResult, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, _, err := dialer.DialContext(ctx, target, header)
		dialed <- dialResult{conn: conn, err: err}
	}()

	fromClient := make(chan message)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			typ, data, err := s.client.ReadMessage()
			if err != nil {
				end(peerError("client", err))
				return
			}
			// Logged at receipt, even if the message waits for the upstream.
			s.record(recorder.Outgoing, data)
			select {
			case fromClient <- message{typ: typ, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		upstream *websocket.Conn
		pending  []message
	)
	// Sessions start out Connecting.
	s.announce(Connecting)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case res := <-dialed:
			if res.err != nil {
				end(fmt.Errorf("dialing upstream %s: %w", target, res.err))
				break loop
			}
			upstream = res.conn
			s.log.Debugf("upstream %s open, flushing %d buffered messages", target, len(pending))
			s.setState(Draining)
			for _, m := range pending {
				if err := upstream.WriteMessage(m.typ, m.data); err != nil {
					end(fmt.Errorf("writing to upstream: %w", err))
					break loop
				}
			}
			pending = nil
			s.setState(Forwarding)

			wg.Add(1)
			go func() {
				defer wg.Done()
				s.pumpUpstream(upstream, end)
			}()

		case m := <-fromClient:
			if upstream == nil {
				pending = append(pending, m)
				s.setState(Buffering)
				continue
			}
			if err := upstream.WriteMessage(m.typ, m.data); err != nil {
				end(fmt.Errorf("writing to upstream: %w", err))
				break loop
			}
		}
	}

	// Terminate both sides without a close handshake.
	s.setState(Closed)
	cancel()
	s.client.Close()
	if upstream != nil {
		upstream.Close()
	}
	wg.Wait()

	// The dial may have completed after teardown started.
	select {
	case res := <-dialed:
		if res.conn != nil {
			res.conn.Close()
		}
	default:
	}

	if len(pending) > 0 {
		s.log.Debugf("dropped %d buffered messages that never reached the upstream", len(pending))
	}
	return endErr
}

// pumpUpstream forwards upstream messages to the client until either fails.
func (s *Session) pumpUpstream(upstream *websocket.Conn, end func(error)) {
	for {
		typ, data, err := upstream.ReadMessage()
		if err != nil {
			end(peerError("upstream", err))
			return
		}
		s.record(recorder.Incoming, data)
		if err := s.client.WriteMessage(typ, data); err != nil {
			end(fmt.Errorf("writing to client: %w", err))
			return
		}
	}
}

// record appends one message to the session log. The timestamp is taken
// under the same lock as the append so the log stays time-ordered across
// both directions. A failed append is reported once and does not stop
// forwarding.
func (s *Session) record(dir recorder.Direction, data []byte) {
	s.recordMu.Lock()
	rec := recorder.Record{
		Time:      s.clock.Since(s.start).Milliseconds(),
		Direction: dir,
		Payload:   string(data),
	}
	err := s.writer.Append(rec)
	s.recordMu.Unlock()

	if err != nil {
		s.metrics.RecordError(mode, "log_write")
		s.logErrOnce.Do(func() {
			s.log.Printf("Log write failed, further messages may be missing from %s: %v", s.writer.Path(), err)
		})
	}
	s.metrics.RecordMessage(mode, dir, len(data))
	s.log.Debugf("%s %d bytes at %dms", dir, len(data), rec.Time)
}

// peerError maps a read error to the session's end reason: nil for a
// normal close by the peer.
func peerError(peer string, err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return nil
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return fmt.Errorf("%s closed with code %d: %w", peer, ce.Code, err)
	}
	return fmt.Errorf("reading from %s: %w", peer, err)
}
