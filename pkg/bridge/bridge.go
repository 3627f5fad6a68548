package bridge

import (
	"net/http"

	internalbridge "github.com/SmitUplenchwar2687/wsreplay/internal/bridge"
)

// Bridge proxies clients to an upstream WebSocket server and records the traffic.
type Bridge = internalbridge.Bridge

// State is the lifecycle phase of one bridged session.
type State = internalbridge.State

const (
	Connecting = internalbridge.Connecting
	Buffering  = internalbridge.Buffering
	Draining   = internalbridge.Draining
	Forwarding = internalbridge.Forwarding
	Closed     = internalbridge.Closed
)

// FilterHeaders strips handshake and hop-by-hop headers before dialing upstream.
func FilterHeaders(h http.Header) http.Header {
	return internalbridge.FilterHeaders(h)
}
