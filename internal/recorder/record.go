package recorder

import "fmt"

// Direction tags which side of the session a message was delivered to.
type Direction string

const (
	// Incoming messages are delivered to the client (from the upstream
	// server while recording, from the log while replaying).
	Incoming Direction = "incoming"
	// Outgoing messages are sent by the client.
	Outgoing Direction = "outgoing"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Incoming || d == Outgoing
}

// Record is one captured WebSocket message.
type Record struct {
	Time      int64     // milliseconds since the session started
	Direction Direction
	Payload   string
}

func (r Record) String() string {
	return fmt.Sprintf("%dms %s (%d bytes)", r.Time, r.Direction, len(r.Payload))
}
