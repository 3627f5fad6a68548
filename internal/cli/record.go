package cli

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/wsreplay/internal/bridge"
	"github.com/SmitUplenchwar2687/wsreplay/internal/clock"
	"github.com/SmitUplenchwar2687/wsreplay/internal/config"
	"github.com/SmitUplenchwar2687/wsreplay/internal/namer"
)

func newRecordCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <url> <filename>",
		Short: "Proxy clients to a WebSocket server and record the traffic",
		Long: `Accepts WebSocket clients on the local port and connects each one to the
target server, forwarding messages both ways and logging every message
with its direction and the milliseconds since the connection opened.

Client messages sent before the target accepts the connection are held
and delivered in order once it does. When either side disconnects the
other is disconnected too.`,
		Example: `  wsreplay record ws://localhost:9000/socket session.json
  wsreplay record wss://echo.example.com/ws capture.json --port 9001 -v`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cfg.Mode = config.ModeRecord
			cfg.Record.Target = args[0]
			cfg.Record.File = args[1]
			if err := cfg.Validate(); err != nil {
				return err
			}

			m := newCollector(cfg)
			b := &bridge.Bridge{
				Target:  cfg.Record.Target,
				Namer:   namer.New(cfg.Record.File),
				Clock:   clock.NewRealClock(),
				Metrics: m,
				Verbose: cfg.Verbose,
			}

			log.Printf("Recording %s to %s", cfg.Record.Target, cfg.Record.File)
			return serve(cmd.Context(), cfg, b, m)
		},
	}
	return cmd
}
