package recorder

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// maxLineSize bounds a single log line (one message payload plus framing).
const maxLineSize = 64 << 20

// Reader yields records from a log one line at a time.
// It reads forward only; to start over, open the log again.
type Reader struct {
	sc     *bufio.Scanner
	line   int
	blank  int // first blank line not yet followed by a record
	closer io.Closer
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{sc: sc}
}

// Open opens the log file at path for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log %s: %w", path, err)
	}
	rd := NewReader(f)
	rd.closer = f
	return rd, nil
}

// Next returns the next record. It returns io.EOF after the last record
// and a *ParseError wrapping ErrParse for a malformed line. Blank lines
// are accepted only at the end of the log; a blank line followed by a
// record is malformed.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			if r.blank == 0 {
				r.blank = r.line
			}
			continue
		}
		if r.blank != 0 {
			return Record{}, &ParseError{Line: r.blank, Err: fmt.Errorf("%w: empty line", ErrParse)}
		}
		rec, err := Decode(line)
		if err != nil {
			return Record{}, &ParseError{Line: r.line, Err: err}
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return Record{}, &ParseError{Line: r.line + 1, Err: fmt.Errorf("%w: %v", ErrParse, err)}
		}
		return Record{}, fmt.Errorf("reading log: %w", err)
	}
	return Record{}, io.EOF
}

// Line returns the 1-based number of the last line consumed.
func (r *Reader) Line() int {
	return r.line
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// LoadAll reads every record from r.
func LoadAll(r io.Reader) ([]Record, error) {
	rd := NewReader(r)
	var records []Record
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
