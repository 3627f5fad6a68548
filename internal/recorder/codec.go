package recorder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrParse is wrapped by every error caused by a malformed log line.
var ErrParse = errors.New("malformed log record")

// ParseError reports a malformed line read through a Reader.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Encode serializes a record as one newline-terminated JSON array:
//
//	[1042,"incoming","{\"op\":\"hello\"}"]
//
// Payloads that are not valid UTF-8 have invalid bytes replaced with U+FFFD.
func Encode(rec Record) ([]byte, error) {
	if !rec.Direction.Valid() {
		return nil, fmt.Errorf("encoding record: unknown direction %q", rec.Direction)
	}
	if rec.Time < 0 {
		return nil, fmt.Errorf("encoding record: negative time %d", rec.Time)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]any{rec.Time, rec.Direction, rec.Payload}); err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses one log line. Surrounding whitespace is ignored.
//
// Outgoing records written without a payload ([time, "outgoing"]) are
// accepted and decode with an empty payload.
func Decode(line []byte) (Record, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(fields) < 2 || len(fields) > 3 {
		return Record{}, fmt.Errorf("%w: want 3 fields, got %d", ErrParse, len(fields))
	}

	ms, err := strconv.ParseInt(string(bytes.TrimSpace(fields[0])), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: time %s is not an integer", ErrParse, fields[0])
	}
	if ms < 0 {
		return Record{}, fmt.Errorf("%w: negative time %d", ErrParse, ms)
	}

	var dir Direction
	if err := json.Unmarshal(fields[1], &dir); err != nil || !dir.Valid() {
		return Record{}, fmt.Errorf("%w: unknown direction %s", ErrParse, fields[1])
	}

	rec := Record{Time: ms, Direction: dir}
	if len(fields) == 2 {
		if dir != Outgoing {
			return Record{}, fmt.Errorf("%w: incoming record without payload", ErrParse)
		}
		return rec, nil
	}
	if raw := bytes.TrimSpace(fields[2]); len(raw) == 0 || raw[0] != '"' {
		return Record{}, fmt.Errorf("%w: payload is not a string", ErrParse)
	}
	if err := json.Unmarshal(fields[2], &rec.Payload); err != nil {
		return Record{}, fmt.Errorf("%w: payload is not a string", ErrParse)
	}
	return rec, nil
}
