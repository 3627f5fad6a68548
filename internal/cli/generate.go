package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/wsreplay/internal/config"
	"github.com/SmitUplenchwar2687/wsreplay/internal/generate"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample recordings and config",
		Long: `Generates sample data for testing and experimentation.

Use "generate log" to create a synthetic recording to replay.
Use "generate config" to create an example config JSON file.`,
	}

	defaults := generate.DefaultOptions()
	var (
		count    int
		duration time.Duration
		pattern  string
		seed     int64
	)

	logCmd := &cobra.Command{
		Use:   "log <filename>",
		Short: "Generate a synthetic recording",
		Long: `Creates a recording of a client exchanging request/reply messages with a
server that greets it on connect.

Patterns:
  steady    Evenly spaced requests
  burst     Concentrated bursts with quiet periods
  ramp      Gradually increasing request rate`,
		Example: `  wsreplay generate log sample.json --count 50
  wsreplay generate log burst.json --pattern burst --duration 1m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := defaults
			opts.Count = count
			opts.Duration = duration
			opts.Pattern = pattern
			opts.Seed = seed

			records, err := generate.WriteFile(args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %d records to %s\n", len(records), args[0])
			fmt.Fprintf(out, "  Exchanges: %d\n", count)
			fmt.Fprintf(out, "  Duration:  %s\n", duration)
			fmt.Fprintf(out, "  Pattern:   %s\n", pattern)
			return nil
		},
	}

	logCmd.Flags().IntVar(&count, "count", defaults.Count, "number of request/reply exchanges")
	logCmd.Flags().DurationVar(&duration, "duration", defaults.Duration, "time span of the recording")
	logCmd.Flags().StringVar(&pattern, "pattern", defaults.Pattern, "request pattern (steady, burst, ramp)")
	logCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time-based)")

	configCmd := &cobra.Command{
		Use:     "config <path>",
		Short:   "Generate an example config JSON file",
		Example: `  wsreplay generate config wsreplay.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExample(args[0]); err != nil {
				return fmt.Errorf("writing example config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated example config at %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(logCmd, configCmd)
	return cmd
}
