package cli

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/SmitUplenchwar2687/wsreplay/internal/config"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	port        portValue
	configPath  string
	metricsAddr string
	verbose     bool
}

// NewRootCmd creates the root wsreplay command.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{port: portValue(config.Default().Server.Port)}

	root := &cobra.Command{
		Use:   "wsreplay",
		Short: "Record and replay WebSocket traffic",
		Long: `wsreplay sits between a WebSocket client and server and records every
message in both directions. The recording can later be served back to
any client with the original timing, scaled or not, and with server
messages held until the client has sent what it sent during recording.

Every accepted connection gets its own log file: the first uses the
given name, later ones insert a counter (session.json, session.1.json, ...).`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.VarP(&opts.port, "port", "p", "port to listen on (1-65535)")
	pf.StringVar(&opts.configPath, "config", "", "path to JSON config file")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090 (disabled when empty)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log every message")

	root.AddCommand(
		newRecordCmd(opts),
		newReplayCmd(opts),
		newInspectCmd(),
		newGenerateCmd(),
	)

	return root
}

// load builds the effective config: defaults, then the config file, then
// any flag the user set explicitly.
func (o *globalOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.LoadFile(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = int(o.port)
	}
	if flags.Changed("metrics-addr") {
		cfg.Server.MetricsAddr = o.metricsAddr
	}
	if flags.Changed("verbose") {
		cfg.Verbose = o.verbose
	}
	return cfg, nil
}

var (
	_ pflag.Value = (*portValue)(nil)
	_ pflag.Value = (*speedValue)(nil)
)

// portValue is a pflag.Value that rejects ports outside 1-65535 at parse time.
type portValue int

func (p *portValue) String() string { return strconv.Itoa(int(*p)) }

func (p *portValue) Set(s string) error {
	v, err := config.ParsePort(s)
	if err != nil {
		return err
	}
	*p = portValue(v)
	return nil
}

func (p *portValue) Type() string { return "port" }

// speedValue is a pflag.Value accepting a positive number or "max".
type speedValue struct {
	speed config.Speed
}

func (s *speedValue) String() string { return s.speed.String() }

func (s *speedValue) Set(v string) error {
	sp, err := config.ParseSpeed(v)
	if err != nil {
		return err
	}
	s.speed = sp
	return nil
}

func (s *speedValue) Type() string { return "speed" }
