package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Any origin may connect; this is a local test tool.
	},
}

// ServeHTTP upgrades any request on any path and runs the session handler
// on the request goroutine until the session ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.sessions.Done()

	// Echo the client's first requested subprotocol.
	var hdr http.Header
	if protos := websocket.Subprotocols(r); len(protos) > 0 {
		hdr = http.Header{"Sec-Websocket-Protocol": {protos[0]}}
	}
	conn, err := upgrader.Upgrade(w, r, hdr)
	if err != nil {
		log.Printf("websocket upgrade error from %s: %v", r.RemoteAddr, err)
		return
	}

	s.active.Add(1)
	defer s.active.Add(-1)
	if err := s.handler.Serve(s.ctx, conn, r); err != nil {
		log.Printf("session from %s ended: %v", r.RemoteAddr, err)
	}
}

// track registers a session unless shutdown has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}
