package namer

import internalnamer "github.com/SmitUplenchwar2687/wsreplay/internal/namer"

// Namer hands out one log path per connection.
type Namer = internalnamer.Namer

// New returns a Namer whose first path is base.
func New(base string) *Namer {
	return internalnamer.New(base)
}

// Path returns the log path for the n-th connection.
func Path(base string, n int64) string {
	return internalnamer.Path(base, n)
}
