// Package replay serves a recorded message log to live WebSocket clients,
// reproducing the recorded timing and the order of server messages
// relative to client messages.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/wsreplay/internal/clock"
	"github.com/SmitUplenchwar2687/wsreplay/internal/metrics"
	"github.com/SmitUplenchwar2687/wsreplay/internal/namer"
	"github.com/SmitUplenchwar2687/wsreplay/internal/recorder"
	"github.com/SmitUplenchwar2687/wsreplay/internal/session"
)

const mode = "replay"

// Conn is the part of a WebSocket connection the scheduler uses.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Scheduler replays one log per accepted connection.
type Scheduler struct {
	Namer *namer.Namer // per-connection log paths

	// Factor multiplies every recorded offset. 1 reproduces the recorded
	// timing, 0.5 plays twice as fast, 0 sends without delay.
	Factor float64

	// Wait holds each server message until the client has sent at least as
	// many messages as had been recorded before it.
	Wait bool

	Clock   clock.Clock
	Metrics *metrics.Collector
	Verbose bool
}

// Result summarizes one replay session.
type Result struct {
	Path      string
	Sent      int  // server messages delivered
	Discarded int  // server messages still gated when the client left
	Outgoing  int  // client messages received
	Complete  bool // the whole log was read
	Duration  time.Duration
}

// Serve replays to a WebSocket connection. It satisfies server.Handler.
func (s *Scheduler) Serve(ctx context.Context, conn *websocket.Conn, _ *http.Request) error {
	_, err := s.Play(ctx, conn)
	return err
}

// Play replays the next log to conn until the client disconnects, the
// context is cancelled, or the log turns out to be malformed. conn is
// closed on return. A client disconnect is not an error.
func (s *Scheduler) Play(ctx context.Context, conn Conn) (Result, error) {
	logger := session.NewLogger(s.Verbose)
	done := s.Metrics.SessionStarted(mode)
	defer done()

	path := s.Namer.Next()
	res := Result{Path: path}

	rd, err := recorder.Open(path)
	if err != nil {
		s.Metrics.RecordError(mode, "log_open")
		logger.Printf("Cannot replay: %v", err)
		closeWithError(conn, "replay log unavailable")
		conn.Close()
		return res, err
	}
	defer rd.Close()
	logger.Printf("New connection accepted. Replaying from: %s", path)

	clk := s.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	p := &player{
		conn:     conn,
		log:      rd,
		clock:    clk,
		factor:   s.Factor,
		wait:     s.Wait,
		logger:   logger,
		metrics:  s.Metrics,
		arrivals: make(chan int),
		closed:   make(chan struct{}),
		stop:     make(chan struct{}),
	}
	err = p.run(ctx)

	res.Sent = p.sent
	res.Discarded = len(p.queue)
	res.Outgoing = p.outgoing
	res.Complete = p.complete
	res.Duration = clk.Since(p.start)
	s.Metrics.RecordDiscarded(res.Discarded)

	if err != nil {
		var pe *recorder.ParseError
		if errors.As(err, &pe) {
			s.Metrics.RecordError(mode, "log_parse")
		} else {
			s.Metrics.RecordError(mode, "transport")
		}
		logger.Printf("Replay of %s stopped: %v (sent %d, discarded %d)", path, err, res.Sent, res.Discarded)
		return res, err
	}
	logger.Printf("Connection closed. Replay complete: %s (sent %d, discarded %d, client messages %d)",
		path, res.Sent, res.Discarded, res.Outgoing)
	return res, nil
}

// closeWithError sends a 1011 close frame. Failures are ignored; the
// connection is being torn down regardless.
func closeWithError(conn Conn, reason string) {
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, reason))
}

// errClientGone ends a session whose client disconnected.
var errClientGone = errors.New("client disconnected")

type entry struct {
	gate    int
	payload string
	due     time.Time
}

// player is the state of one replay session. Everything except the
// channels is owned by the goroutine running run.
type player struct {
	conn    Conn
	log     *recorder.Reader
	clock   clock.Clock
	factor  float64
	wait    bool
	logger  *session.Logger
	metrics *metrics.Collector

	arrivals chan int      // size of each client message
	closed   chan struct{} // closed when the client reader exits
	stop     chan struct{} // closed when run exits

	start     time.Time
	readCount int // outgoing records read from the log so far
	outgoing  int // client messages received so far
	queue     []entry
	sent      int
	complete  bool
}

func (p *player) run(ctx context.Context) error {
	p.start = p.clock.Now()
	go p.readClient()
	defer func() {
		close(p.stop)
		p.conn.Close()
		<-p.closed
	}()

	err := p.play(ctx)
	switch {
	case err == nil, errors.Is(err, errClientGone), errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, recorder.ErrParse):
		closeWithError(p.conn, "malformed replay log")
		return err
	default:
		if p.clientGone() {
			return nil
		}
		return err
	}
}

func (p *player) play(ctx context.Context) error {
	for {
		rec, err := p.log.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch rec.Direction {
		case recorder.Outgoing:
			p.readCount++
		case recorder.Incoming:
			due := p.start.Add(p.offset(rec.Time))
			if err := p.sleepUntil(ctx, due); err != nil {
				return err
			}
			p.queue = append(p.queue, entry{gate: p.readCount, payload: rec.Payload, due: due})
			if err := p.drain(); err != nil {
				return err
			}
		}
	}

	p.complete = true
	p.logger.Debugf("log exhausted, %d messages still gated", len(p.queue))

	// Gated messages can still be released by further client messages.
	for {
		select {
		case n := <-p.arrivals:
			if err := p.received(n); err != nil {
				return err
			}
		case <-p.closed:
			return errClientGone
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// offset scales a recorded time to a delay from session start. Delays too
// large for a time.Duration saturate at the maximum.
func (p *player) offset(ms int64) time.Duration {
	if ms <= 0 || p.factor == 0 {
		return 0
	}
	ns := math.Round(float64(ms) * p.factor * float64(time.Millisecond))
	if math.IsNaN(ns) || ns >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(ns)
}

// sleepUntil waits for due on a cancellable timer, draining the queue on
// every client message that arrives meanwhile.
func (p *player) sleepUntil(ctx context.Context, due time.Time) error {
	d := due.Sub(p.clock.Now())
	if d <= 0 {
		select {
		case <-p.closed:
			return errClientGone
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	t := p.clock.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-t.C():
			return nil
		case n := <-p.arrivals:
			if err := p.received(n); err != nil {
				return err
			}
		case <-p.closed:
			return errClientGone
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *player) received(size int) error {
	p.outgoing++
	p.metrics.RecordMessage(mode, recorder.Outgoing, size)
	p.logger.Debugf("client message %d", p.outgoing)
	return p.drain()
}

// drain sends queued messages in order while the head is not gated.
func (p *player) drain() error {
	for len(p.queue) > 0 {
		head := p.queue[0]
		if p.wait && p.outgoing < head.gate {
			return nil
		}
		p.queue[0] = entry{}
		p.queue = p.queue[1:]

		if err := p.conn.WriteMessage(websocket.TextMessage, []byte(head.payload)); err != nil {
			return fmt.Errorf("sending to client: %w", err)
		}
		p.sent++
		p.metrics.RecordMessage(mode, recorder.Incoming, len(head.payload))
		p.metrics.ObserveDeliveryLag(p.clock.Since(head.due))
		p.logger.Debugf("sent message %d (gate %d)", p.sent, head.gate)
	}
	return nil
}

// readClient counts client messages until the connection fails or run exits.
func (p *player) readClient() {
	defer close(p.closed)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case p.arrivals <- len(data):
		case <-p.stop:
			return
		}
	}
}

func (p *player) clientGone() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}
