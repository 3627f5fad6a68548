package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ErrInvalid is wrapped by every configuration validation error.
var ErrInvalid = errors.New("invalid configuration")

// Mode selects what each accepted connection turns into.
type Mode string

const (
	ModeRecord Mode = "record"
	ModeReplay Mode = "replay"
)

// Config is the top-level configuration for a wsreplay process.
type Config struct {
	Mode    Mode         `json:"mode"`
	Server  ServerConfig `json:"server"`
	Record  RecordConfig `json:"record"`
	Replay  ReplayConfig `json:"replay"`
	Verbose bool         `json:"verbose"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port        int    `json:"port"`
	MetricsAddr string `json:"metrics_addr"` // empty disables the metrics listener
}

// RecordConfig holds record-mode settings.
type RecordConfig struct {
	Target string `json:"target"` // upstream ws:// or wss:// URL
	File   string `json:"file"`   // base log path
}

// ReplayConfig holds replay-mode settings.
type ReplayConfig struct {
	File  string `json:"file"` // base log path
	Speed Speed  `json:"speed"`
	Wait  bool   `json:"wait"` // gate incoming messages on the client's message count
}

// Speed is a replay speed: a positive multiplier, or Max for no delays.
type Speed struct {
	Max   bool
	Value float64
}

// Factor returns the multiplier applied to recorded offsets:
// 1/Value, or 0 for Max.
func (s Speed) Factor() float64 {
	if s.Max {
		return 0
	}
	return 1 / s.Value
}

func (s Speed) String() string {
	if s.Max {
		return "max"
	}
	return strconv.FormatFloat(s.Value, 'g', -1, 64)
}

func (s Speed) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Speed) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("speed must be a number or \"max\"")
		}
		raw = strconv.FormatFloat(f, 'g', -1, 64)
	}
	v, err := ParseSpeed(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSpeed parses "max" or a finite number greater than zero.
func ParseSpeed(s string) (Speed, error) {
	s = strings.TrimSpace(s)
	if s == "max" {
		return Speed{Max: true}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !validSpeed(v) {
		return Speed{}, fmt.Errorf("%w: speed %q must be a number > 0 or \"max\"", ErrInvalid, s)
	}
	return Speed{Value: v}, nil
}

// validSpeed reports whether v is a finite positive speed whose
// reciprocal is finite too.
func validSpeed(v float64) bool {
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return false
	}
	return !math.IsInf(1/v, 0)
}

// ParsePort parses a TCP port in 1-65535.
func ParsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("%w: port %q must be an integer in 1-65535", ErrInvalid, s)
	}
	return p, nil
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Replay: ReplayConfig{
			Speed: Speed{Value: 1},
			Wait:  true,
		},
	}
}

// Addr returns the listen address for the WebSocket server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port must be in 1-65535, got %d", ErrInvalid, c.Server.Port)
	}
	switch c.Mode {
	case ModeRecord:
		if c.Record.File == "" {
			return fmt.Errorf("%w: record file is required", ErrInvalid)
		}
		u, err := url.Parse(c.Record.Target)
		if err != nil {
			return fmt.Errorf("%w: target url: %v", ErrInvalid, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("%w: target url %q must use ws:// or wss://", ErrInvalid, c.Record.Target)
		}
		if u.Host == "" {
			return fmt.Errorf("%w: target url %q has no host", ErrInvalid, c.Record.Target)
		}
	case ModeReplay:
		if c.Replay.File == "" {
			return fmt.Errorf("%w: replay file is required", ErrInvalid)
		}
		if !c.Replay.Speed.Max {
			v := c.Replay.Speed.Value
			if !validSpeed(v) {
				return fmt.Errorf("%w: speed must be > 0 or max, got %v", ErrInvalid, v)
			}
		}
	default:
		return fmt.Errorf("%w: unknown mode %q, must be one of: record, replay", ErrInvalid, c.Mode)
	}
	return nil
}

// LoadFile reads a JSON config file and merges it with defaults.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Use a raw intermediate struct so absent fields can be told apart from zero values.
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if raw.Mode != "" {
		cfg.Mode = Mode(raw.Mode)
	}
	if raw.Verbose != nil {
		cfg.Verbose = *raw.Verbose
	}
	if raw.Server.Port != nil {
		cfg.Server.Port = *raw.Server.Port
	}
	if raw.Server.MetricsAddr != "" {
		cfg.Server.MetricsAddr = raw.Server.MetricsAddr
	}
	if raw.Record.Target != "" {
		cfg.Record.Target = raw.Record.Target
	}
	if raw.Record.File != "" {
		cfg.Record.File = raw.Record.File
	}
	if raw.Replay.File != "" {
		cfg.Replay.File = raw.Replay.File
	}
	if raw.Replay.Speed != nil {
		cfg.Replay.Speed = *raw.Replay.Speed
	}
	if raw.Replay.Wait != nil {
		cfg.Replay.Wait = *raw.Replay.Wait
	}

	return cfg, nil
}

// rawConfig is the JSON-friendly representation with optional fields.
type rawConfig struct {
	Mode    string `json:"mode"`
	Verbose *bool  `json:"verbose"`
	Server  struct {
		Port        *int   `json:"port"`
		MetricsAddr string `json:"metrics_addr"`
	} `json:"server"`
	Record struct {
		Target string `json:"target"`
		File   string `json:"file"`
	} `json:"record"`
	Replay struct {
		File  string `json:"file"`
		Speed *Speed `json:"speed"`
		Wait  *bool  `json:"wait"`
	} `json:"replay"`
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	example := `{
  "server": {
    "port": 8080,
    "metrics_addr": ":9090"
  },
  "replay": {
    "speed": "1",
    "wait": true
  }
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}
