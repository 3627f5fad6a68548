package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/wsreplay/internal/clock"
	"github.com/SmitUplenchwar2687/wsreplay/internal/config"
	"github.com/SmitUplenchwar2687/wsreplay/internal/namer"
	"github.com/SmitUplenchwar2687/wsreplay/internal/replay"
)

func newReplayCmd(opts *globalOptions) *cobra.Command {
	var (
		speed  = speedValue{speed: config.Default().Replay.Speed}
		noWait bool
	)

	cmd := &cobra.Command{
		Use:   "replay <filename>",
		Short: "Serve a recording to WebSocket clients",
		Long: `Acts as a WebSocket server that plays a recording back to every client
that connects. Server messages go out at their recorded offsets from
the moment the client connected, divided by --speed.

By default each server message is held until the client has sent at
least as many messages as it had when the message was recorded.
--no-wait sends on timing alone.

Speed: 1 = recorded timing, 2 = twice as fast, 0.5 = half speed,
max = no delays.`,
		Example: `  wsreplay replay session.json
  wsreplay replay session.json --speed 10
  wsreplay replay session.json --speed max --no-wait --port 9001`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cfg.Mode = config.ModeReplay
			cfg.Replay.File = args[0]
			if cmd.Flags().Changed("speed") {
				cfg.Replay.Speed = speed.speed
			}
			if cmd.Flags().Changed("no-wait") {
				cfg.Replay.Wait = !noWait
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Replay.File); err != nil {
				return fmt.Errorf("replay log: %w", err)
			}

			m := newCollector(cfg)
			s := &replay.Scheduler{
				Namer:   namer.New(cfg.Replay.File),
				Factor:  cfg.Replay.Speed.Factor(),
				Wait:    cfg.Replay.Wait,
				Clock:   clock.NewRealClock(),
				Metrics: m,
				Verbose: cfg.Verbose,
			}

			log.Printf("Replaying %s at speed %s (wait for client: %t)", cfg.Replay.File, cfg.Replay.Speed, cfg.Replay.Wait)
			return serve(cmd.Context(), cfg, s, m)
		},
	}

	cmd.Flags().VarP(&speed, "speed", "s", "replay speed: a positive factor, or max for no delays")
	cmd.Flags().BoolVarP(&noWait, "no-wait", "n", false, "send server messages on timing alone, without waiting for client messages")

	return cmd
}
