package bridge

// State is the lifecycle phase of one bridged session.
type State int32

const (
	// Connecting: the upstream handshake is in flight and nothing is queued.
	Connecting State = iota
	// Buffering: the upstream handshake is in flight and client messages are queued.
	Buffering
	// Draining: the upstream just opened and queued messages are being flushed.
	Draining
	// Forwarding: both sides are open and messages pass straight through.
	Forwarding
	// Closed: the session is torn down.
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Buffering:
		return "buffering"
	case Draining:
		return "draining"
	case Forwarding:
		return "forwarding"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
