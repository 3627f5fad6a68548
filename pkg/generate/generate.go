package generate

import (
	internalgenerate "github.com/SmitUplenchwar2687/wsreplay/internal/generate"
	"github.com/SmitUplenchwar2687/wsreplay/pkg/recorder"
)

const (
	PatternSteady = internalgenerate.PatternSteady
	PatternBurst  = internalgenerate.PatternBurst
	PatternRamp   = internalgenerate.PatternRamp
)

// Options controls how a synthetic log is generated.
type Options = internalgenerate.Options

// DefaultOptions returns the defaults used by the CLI.
func DefaultOptions() Options {
	return internalgenerate.DefaultOptions()
}

// Session generates a time-ordered synthetic session log.
func Session(opts Options) ([]recorder.Record, error) {
	return internalgenerate.Session(opts)
}
