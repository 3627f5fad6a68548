package server

import (
	"net/http"

	internalserver "github.com/SmitUplenchwar2687/wsreplay/internal/server"
)

// Server accepts WebSocket connections and runs one session per connection.
type Server = internalserver.Server

// Handler runs one session over an upgraded connection.
type Handler = internalserver.Handler

// HandlerFunc adapts a function to Handler.
type HandlerFunc = internalserver.HandlerFunc

// New creates a dispatcher that will listen on addr.
func New(addr string, h Handler) *Server {
	return internalserver.New(addr, h)
}

// NewStatusHandler serves metrics at /metrics and a liveness probe at /health.
func NewStatusHandler(metrics http.Handler) http.Handler {
	return internalserver.NewStatusHandler(metrics)
}
