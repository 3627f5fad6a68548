package recorder

import (
	"io"
	"time"
)

// Stats summarizes a log.
type Stats struct {
	Records       int           `json:"records"`
	Incoming      int           `json:"incoming"`
	Outgoing      int           `json:"outgoing"`
	IncomingBytes int64         `json:"incoming_bytes"`
	OutgoingBytes int64         `json:"outgoing_bytes"`
	Duration      time.Duration `json:"duration"`
	// OutOfOrder counts records whose time is earlier than the record before.
	OutOfOrder int `json:"out_of_order"`
}

// Summarize reads all of r and returns its stats. On a parse error the
// stats cover the records read before the bad line.
func Summarize(r io.Reader) (Stats, error) {
	rd := NewReader(r)
	var (
		st   Stats
		last int64
	)
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			return st, err
		}

		st.Records++
		switch rec.Direction {
		case Incoming:
			st.Incoming++
			st.IncomingBytes += int64(len(rec.Payload))
		case Outgoing:
			st.Outgoing++
			st.OutgoingBytes += int64(len(rec.Payload))
		}
		if rec.Time < last {
			st.OutOfOrder++
		} else {
			last = rec.Time
		}
		st.Duration = time.Duration(last) * time.Millisecond
	}
}
