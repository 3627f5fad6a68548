package bridge

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/wsreplay/internal/clock"
	"github.com/SmitUplenchwar2687/wsreplay/internal/namer"
	"github.com/SmitUplenchwar2687/wsreplay/internal/recorder"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// startUpstream serves h on a live WebSocket endpoint.
func startUpstream(t *testing.T, h func(*websocket.Conn, *http.Request)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{Subprotocols: []string{"chat.v2"}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		h(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// echo replies to every message with "echo:" prepended.
func echo(conn *websocket.Conn, _ *http.Request) {
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(typ, append([]byte("echo:"), data...)); err != nil {
			return
		}
	}
}

// startProxy serves b and reports each Serve result on the returned channel.
func startProxy(t *testing.T, b *Bridge) (string, <-chan error) {
	t.Helper()
	results := make(chan error, 8)
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := http.Header{}
		if protos := websocket.Subprotocols(r); len(protos) > 0 {
			hdr.Set("Sec-Websocket-Protocol", protos[0])
		}
		conn, err := up.Upgrade(w, r, hdr)
		if err != nil {
			return
		}
		results <- b.Serve(context.Background(), conn, r)
	}))
	t.Cleanup(srv.Close)
	return wsURL(srv), results
}

func dial(t *testing.T, url string, hdr http.Header, protos ...string) *websocket.Conn {
	t.Helper()
	d := websocket.Dialer{Subprotocols: protos}
	conn, _, err := d.Dial(url, hdr)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func waitResult(t *testing.T, results <-chan error) error {
	t.Helper()
	select {
	case err := <-results:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
		return nil
	}
}

func loadLog(t *testing.T, path string) []recorder.Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := recorder.LoadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

// waitForRecords polls the log until it holds at least n records.
func waitForRecords(t *testing.T, path string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, _ := os.ReadFile(path)
		if strings.Count(string(data), "\n") >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("log %s never reached %d records", path, n)
}

func payloads(recs []recorder.Record, dir recorder.Direction) []string {
	var out []string
	for _, r := range recs {
		if r.Direction == dir {
			out = append(out, r.Payload)
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBridge_RecordsBothDirections(t *testing.T) {
	upstream := startUpstream(t, echo)
	logPath := filepath.Join(t.TempDir(), "session.json")
	b := &Bridge{Target: wsURL(upstream), Namer: namer.New(logPath)}
	proxyURL, results := startProxy(t, b)

	conn := dial(t, proxyURL, nil)
	for _, msg := range []string{"a", "b", "c"} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatal(err)
		}
		if got, want := readText(t, conn), "echo:"+msg; got != want {
			t.Errorf("reply = %q, want %q", got, want)
		}
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	if err := waitResult(t, results); err != nil {
		t.Errorf("Serve() error = %v, want nil after normal close", err)
	}

	recs := loadLog(t, logPath)
	if len(recs) != 6 {
		t.Fatalf("log has %d records, want 6: %v", len(recs), recs)
	}
	if got := payloads(recs, recorder.Outgoing); !equal(got, []string{"a", "b", "c"}) {
		t.Errorf("outgoing = %v", got)
	}
	if got := payloads(recs, recorder.Incoming); !equal(got, []string{"echo:a", "echo:b", "echo:c"}) {
		t.Errorf("incoming = %v", got)
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Time < recs[i-1].Time {
			t.Errorf("record %d time %d before record %d time %d", i, recs[i].Time, i-1, recs[i-1].Time)
		}
	}
}

func TestBridge_PreservesMessageType(t *testing.T) {
	upstream := startUpstream(t, func(conn *websocket.Conn, _ *http.Request) {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.WriteMessage(typ, data)
		conn.ReadMessage()
	})
	logPath := filepath.Join(t.TempDir(), "bin.json")
	b := &Bridge{Target: wsURL(upstream), Namer: namer.New(logPath)}
	proxyURL, _ := startProxy(t, b)

	conn := dial(t, proxyURL, nil)
	defer conn.Close()
	conn.WriteMessage(websocket.BinaryMessage, []byte("raw"))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	typ, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.BinaryMessage || string(data) != "raw" {
		t.Errorf("got type %d payload %q, want binary %q", typ, data, "raw")
	}
}

func TestBridge_BuffersUntilUpstreamOpens(t *testing.T) {
	release := make(chan struct{})
	received := make(chan []string, 1)
	gate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var got []string
		for len(got) < 3 {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			got = append(got, string(data))
		}
		received <- got
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		conn.ReadMessage()
	})
	upstream := httptest.NewServer(gate)
	t.Cleanup(upstream.Close)

	vc := clock.NewVirtualClock(epoch)
	logPath := filepath.Join(t.TempDir(), "buffered.json")
	var (
		mu     sync.Mutex
		states []State
	)
	b := &Bridge{
		Target: wsURL(upstream),
		Namer:  namer.New(logPath),
		Clock:  vc,
		OnState: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	}
	proxyURL, results := startProxy(t, b)

	conn := dial(t, proxyURL, nil)
	for _, msg := range []string{"m1", "m2", "m3"} {
		conn.WriteMessage(websocket.TextMessage, []byte(msg))
	}
	waitForRecords(t, logPath, 3)

	vc.Advance(5 * time.Second)
	close(release)

	select {
	case got := <-received:
		if !equal(got, []string{"m1", "m2", "m3"}) {
			t.Errorf("upstream received %v, want [m1 m2 m3]", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("upstream never received buffered messages")
	}
	if got := readText(t, conn); got != "hello" {
		t.Errorf("reply = %q, want %q", got, "hello")
	}
	conn.Close()
	waitResult(t, results)

	recs := loadLog(t, logPath)
	if len(recs) != 4 {
		t.Fatalf("log has %d records, want 4", len(recs))
	}
	for _, r := range recs[:3] {
		if r.Direction != recorder.Outgoing || r.Time != 0 {
			t.Errorf("buffered record = %v, want outgoing at 0ms", r)
		}
	}
	if recs[3].Direction != recorder.Incoming || recs[3].Time != 5000 {
		t.Errorf("reply record = %v, want incoming at 5000ms", recs[3])
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{Connecting, Buffering, Draining, Forwarding, Closed}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %s, want %s", i, states[i], want[i])
		}
	}
}

func TestBridge_ForwardsFilteredHeadersAndSubprotocol(t *testing.T) {
	type seen struct {
		token  string
		protos []string
	}
	got := make(chan seen, 1)
	upstream := startUpstream(t, func(conn *websocket.Conn, r *http.Request) {
		got <- seen{token: r.Header.Get("X-Token"), protos: websocket.Subprotocols(r)}
		conn.ReadMessage()
	})
	b := &Bridge{Target: wsURL(upstream), Namer: namer.New(filepath.Join(t.TempDir(), "h.json"))}
	proxyURL, _ := startProxy(t, b)

	hdr := http.Header{"X-Token": {"secret"}}
	d := websocket.Dialer{Subprotocols: []string{"chat.v2", "chat.v1"}}
	conn, resp, err := d.Dial(proxyURL, hdr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if p := resp.Header.Get("Sec-Websocket-Protocol"); p != "chat.v2" {
		t.Errorf("negotiated subprotocol = %q, want chat.v2", p)
	}

	select {
	case s := <-got:
		if s.token != "secret" {
			t.Errorf("upstream X-Token = %q, want secret", s.token)
		}
		if !equal(s.protos, []string{"chat.v2", "chat.v1"}) {
			t.Errorf("upstream subprotocols = %v", s.protos)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("upstream never connected")
	}
}

func TestBridge_UpstreamCloseTerminatesClient(t *testing.T) {
	upstream := startUpstream(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.ReadMessage()
	})
	logPath := filepath.Join(t.TempDir(), "up.json")
	b := &Bridge{Target: wsURL(upstream), Namer: namer.New(logPath)}
	proxyURL, results := startProxy(t, b)

	conn := dial(t, proxyURL, nil)
	defer conn.Close()
	conn.WriteMessage(websocket.TextMessage, []byte("bye"))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("client read succeeded, want connection terminated")
	} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
		t.Fatal("client was not terminated after upstream closed")
	}
	waitResult(t, results)

	if got := payloads(loadLog(t, logPath), recorder.Outgoing); !equal(got, []string{"bye"}) {
		t.Errorf("outgoing = %v, want [bye]", got)
	}
}

func TestBridge_ClientCloseTerminatesUpstream(t *testing.T) {
	upstreamDone := make(chan struct{})
	upstream := startUpstream(t, func(conn *websocket.Conn, _ *http.Request) {
		defer close(upstreamDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	b := &Bridge{Target: wsURL(upstream), Namer: namer.New(filepath.Join(t.TempDir(), "c.json"))}
	proxyURL, results := startProxy(t, b)

	conn := dial(t, proxyURL, nil)
	conn.WriteMessage(websocket.TextMessage, []byte("x"))
	time.Sleep(50 * time.Millisecond)
	conn.Close()

	select {
	case <-upstreamDone:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream connection still open after client closed")
	}
	waitResult(t, results)
}

func TestBridge_DialFailureTerminatesClient(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	deadAddr := ln.Addr().String()
	ln.Close()

	logPath := filepath.Join(t.TempDir(), "dead.json")
	b := &Bridge{Target: "ws://" + deadAddr, Namer: namer.New(logPath)}
	proxyURL, results := startProxy(t, b)

	conn := dial(t, proxyURL, nil)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("client read succeeded, want connection terminated")
	}
	if err := waitResult(t, results); err == nil {
		t.Error("Serve() error = nil, want dial error")
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestBridge_ConcurrentSessionsUseDistinctLogs(t *testing.T) {
	upstream := startUpstream(t, echo)
	dir := t.TempDir()
	logPath := filepath.Join(dir, "multi.json")
	b := &Bridge{Target: wsURL(upstream), Namer: namer.New(logPath)}
	proxyURL, results := startProxy(t, b)

	const clients = 4
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := websocket.Dialer{}
			conn, _, err := d.Dial(proxyURL, nil)
			if err != nil {
				t.Errorf("client %d dial: %v", i, err)
				return
			}
			defer conn.Close()
			msg := []byte{'c', byte('0' + i)}
			for j := 0; j < 5; j++ {
				conn.WriteMessage(websocket.TextMessage, msg)
				conn.SetReadDeadline(time.Now().Add(5 * time.Second))
				if _, _, err := conn.ReadMessage(); err != nil {
					t.Errorf("client %d read: %v", i, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < clients; i++ {
		waitResult(t, results)
	}

	for n := int64(0); n < clients; n++ {
		path := namer.Path(logPath, n)
		recs := loadLog(t, path)
		if len(recs) != 10 {
			t.Errorf("%s has %d records, want 10", path, len(recs))
			continue
		}
		out := payloads(recs, recorder.Outgoing)
		for _, p := range out {
			if p != out[0] {
				t.Errorf("%s mixes sessions: %v", path, out)
				break
			}
		}
	}
}

func TestFilterHeaders(t *testing.T) {
	in := http.Header{
		"Upgrade":                  {"websocket"},
		"Connection":               {"Upgrade"},
		"Host":                     {"example.com"},
		"Sec-Websocket-Key":        {"abc"},
		"Sec-Websocket-Version":    {"13"},
		"Sec-Websocket-Protocol":   {"chat"},
		"Sec-Websocket-Extensions": {"permessage-deflate"},
		"Authorization":            {"Bearer t"},
		"Cookie":                   {"a=1", "b=2"},
		"Origin":                   {"http://example.com"},
	}
	got := FilterHeaders(in)

	for _, k := range []string{"Upgrade", "Connection", "Host", "Sec-Websocket-Key",
		"Sec-Websocket-Version", "Sec-Websocket-Protocol", "Sec-Websocket-Extensions"} {
		if _, ok := got[k]; ok {
			t.Errorf("%s kept, want stripped", k)
		}
	}
	if got.Get("Authorization") != "Bearer t" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
	if !equal(got["Cookie"], []string{"a=1", "b=2"}) {
		t.Errorf("Cookie = %v", got["Cookie"])
	}
	if got.Get("Origin") != "http://example.com" {
		t.Errorf("Origin = %q", got.Get("Origin"))
	}

	got["Cookie"][0] = "changed"
	if in["Cookie"][0] != "a=1" {
		t.Error("FilterHeaders shares value slices with its input")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Connecting, "connecting"},
		{Buffering, "buffering"},
		{Draining, "draining"},
		{Forwarding, "forwarding"},
		{Closed, "closed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
