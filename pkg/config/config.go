package config

import internalconfig "github.com/SmitUplenchwar2687/wsreplay/internal/config"

// Config is the top-level configuration for a wsreplay process.
type Config = internalconfig.Config

// Mode selects record or replay.
type Mode = internalconfig.Mode

// Speed is a replay speed: a positive multiplier, or max.
type Speed = internalconfig.Speed

const (
	ModeRecord = internalconfig.ModeRecord
	ModeReplay = internalconfig.ModeReplay
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = internalconfig.ErrInvalid

// Default returns a Config with sensible defaults.
func Default() Config {
	return internalconfig.Default()
}

// LoadFile reads a JSON config file and merges it with defaults.
func LoadFile(path string) (Config, error) {
	return internalconfig.LoadFile(path)
}

// ParseSpeed parses "max" or a finite number greater than zero.
func ParseSpeed(s string) (Speed, error) {
	return internalconfig.ParseSpeed(s)
}
