package bridge

import (
	"net/http"
	"strings"
)

// FilterHeaders returns a copy of the client's handshake headers with the
// hop-by-hop and handshake headers removed (Upgrade, Connection, Host and
// every Sec-WebSocket-* header). The bridge performs its own handshake with
// the upstream, and the dialer rejects duplicates of those headers.
func FilterHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		ck := http.CanonicalHeaderKey(k)
		switch {
		case ck == "Upgrade", ck == "Connection", ck == "Host":
			continue
		case strings.HasPrefix(ck, "Sec-Websocket-"):
			continue
		}
		out[ck] = append(out[ck], v...)
	}
	return out
}
