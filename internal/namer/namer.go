// Package namer derives one log file path per accepted connection.
package namer

import (
	"path/filepath"
	"strconv"
	"sync/atomic"
)

// Namer hands out per-connection log paths derived from a base path.
// The first path is the base itself; later ones insert ".N" before the
// extension, where N is the number of paths handed out before.
//
// The counter lives for the lifetime of the Namer and is never reset.
type Namer struct {
	base  string
	count atomic.Int64
}

// New creates a Namer for the given base path.
func New(base string) *Namer {
	return &Namer{base: base}
}

// Base returns the base path.
func (n *Namer) Base() string {
	return n.base
}

// Next returns the path for the next connection. Safe for concurrent use;
// no two calls return the same ordinal.
func (n *Namer) Next() string {
	return Path(n.base, n.count.Add(1)-1)
}

// Issued returns how many paths have been handed out.
func (n *Namer) Issued() int64 {
	return n.count.Load()
}

// Path returns the log path for ordinal n of base.
//
//	Path("a/b.json", 0) == "a/b.json"
//	Path("a/b.json", 2) == "a/b.2.json"
func Path(base string, n int64) string {
	if n == 0 {
		return base
	}
	dir, file := filepath.Split(base)
	ext := filepath.Ext(file)
	stem := file[:len(file)-len(ext)]
	// A dotfile such as ".log" has no stem; treat the whole name as the stem.
	if stem == "" {
		stem, ext = file, ""
	}
	return dir + stem + "." + strconv.FormatInt(n, 10) + ext
}
