package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/wsreplay/internal/recorder"
)

func newInspectCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <filename>",
		Short: "Summarize a recording",
		Long: `Reads a recording and prints how many messages went each way, how many
bytes they carried, and how long the session lasted. Fails on the first
malformed line.`,
		Example: `  wsreplay inspect session.json
  wsreplay inspect session.3.json --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening file: %w", err)
			}
			defer f.Close()

			stats, err := recorder.Summarize(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Fprintf(out, "--- %s ---\n", args[0])
			fmt.Fprintf(out, "  Records:        %d\n", stats.Records)
			fmt.Fprintf(out, "  Incoming:       %d (%d bytes)\n", stats.Incoming, stats.IncomingBytes)
			fmt.Fprintf(out, "  Outgoing:       %d (%d bytes)\n", stats.Outgoing, stats.OutgoingBytes)
			fmt.Fprintf(out, "  Duration:       %s\n", stats.Duration)
			if stats.OutOfOrder > 0 {
				fmt.Fprintf(out, "  Out of order:   %d\n", stats.OutOfOrder)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output the summary as JSON")
	return cmd
}
