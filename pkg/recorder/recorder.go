package recorder

import (
	"io"

	internalrecorder "github.com/SmitUplenchwar2687/wsreplay/internal/recorder"
)

// Record is one logged message.
type Record = internalrecorder.Record

// Direction says which way a message travelled.
type Direction = internalrecorder.Direction

const (
	Incoming = internalrecorder.Incoming
	Outgoing = internalrecorder.Outgoing
)

// Writer appends records to a log.
type Writer = internalrecorder.Writer

// Reader reads records from a log one line at a time.
type Reader = internalrecorder.Reader

// ParseError reports a malformed log line.
type ParseError = internalrecorder.ParseError

// Stats summarizes a log.
type Stats = internalrecorder.Stats

// ErrParse is wrapped by every error caused by a malformed log line.
var ErrParse = internalrecorder.ErrParse

// Create truncates or creates the log at path.
func Create(path string) (*Writer, error) {
	return internalrecorder.Create(path)
}

// NewWriter appends records to w.
func NewWriter(w io.Writer) *Writer {
	return internalrecorder.NewWriter(w)
}

// Open opens the log at path for reading.
func Open(path string) (*Reader, error) {
	return internalrecorder.Open(path)
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	return internalrecorder.NewReader(r)
}

// Encode serializes a record as one log line.
func Encode(rec Record) ([]byte, error) {
	return internalrecorder.Encode(rec)
}

// Decode parses one log line.
func Decode(line []byte) (Record, error) {
	return internalrecorder.Decode(line)
}

// Summarize reads all of r and returns its stats.
func Summarize(r io.Reader) (Stats, error) {
	return internalrecorder.Summarize(r)
}
