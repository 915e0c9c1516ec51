package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/chalk/internal/watch"
	"github.com/spf13/cobra"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch [BOARD]",
	Short: "Monitor operations sent to boards in real time",
	Long: `Stream client operations as they are published on the operations
channel. Requires the redis backend.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON envelopes for programmatic processing

Examples:
  # Watch every board
  chalk watch

  # Watch one board and record it
  chalk watch lobby --output=json > lobby.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return p.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			nil,
			[]string{"Valid formats: default, json"},
		)
	}

	boardName := ""
	if len(args) > 0 {
		boardName = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, be, err := openBackend(ctx, p)
	if err != nil {
		return err
	}
	defer be.Close()

	bus, err := be.Bus()
	if err != nil {
		return p.Error(
			"cannot watch operations",
			err.Error(),
			nil,
			[]string{"Set persistence.backend to redis in chalk.yml"},
		)
	}

	sub, err := bus.SubscribeOperations(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to operations: %w", err)
	}
	defer sub.Close()

	return watch.StreamOperations(ctx, sub, boardName, outputFormat, cmd.OutOrStdout())
}
