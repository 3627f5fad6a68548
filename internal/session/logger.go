// Package session provides the per-connection identity shared by the
// record and replay handlers.
package session

import (
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Logger is a session-scoped logger. Every line carries the session id;
// Debugf lines are emitted only in verbose mode.
type Logger struct {
	id      string
	verbose bool
	logger  *log.Logger
}

// NewLogger creates a Logger with a fresh session id, writing through
// the standard logger's output and flags.
func NewLogger(verbose bool) *Logger {
	id := NewID()
	return &Logger{
		id:      id,
		verbose: verbose,
		logger:  log.New(log.Writer(), fmt.Sprintf("[%s] ", id), log.Flags()|log.Lmsgprefix),
	}
}

// NewID returns a short random session id.
func NewID() string {
	return uuid.NewString()[:8]
}

// ID returns the session id.
func (l *Logger) ID() string {
	return l.id
}

func (l *Logger) Printf(format string, args ...any) {
	l.logger.Printf(format, args...)
}

// Debugf logs only in verbose mode.
func (l *Logger) Debugf(format string, args ...any) {
	if l.verbose {
		l.logger.Printf(format, args...)
	}
}
