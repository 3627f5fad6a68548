package replay

import internalreplay "github.com/SmitUplenchwar2687/wsreplay/internal/replay"

// Scheduler replays one log per accepted connection.
type Scheduler = internalreplay.Scheduler

// Conn is the part of a WebSocket connection the scheduler uses.
type Conn = internalreplay.Conn

// Result summarizes one replay session.
type Result = internalreplay.Result
