package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyluth/chalk/internal/watch"
	"github.com/dyluth/chalk/pkg/board"
	"github.com/spf13/cobra"
)

var sendWait time.Duration

var sendCmd = &cobra.Command{
	Use:   "send BOARD MESSAGE_JSON",
	Short: "Publish an operation to running daemons",
	Long: `Publish one client operation for a board on the operations channel.
Requires the redis backend.

Examples:
  chalk send lobby '{"type":"line","id":"l1","color":"#ff0000","size":4}'
  chalk send lobby '{"type":"child","parent":"l1","x":10,"y":20}'
  chalk send lobby '{"type":"delete","id":"l1"}'

  # Wait until a daemon has persisted the new element
  chalk send lobby '{"type":"rect","id":"r1","x":10,"y":10}' --wait=5s`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendWait, "wait", 0, "Wait up to this long for the element to be persisted (create, update and child only)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p := newPrinter(cmd)
	boardName, message := args[0], args[1]

	op, err := board.ParseOperation([]byte(message))
	if err != nil {
		return p.Error(
			"invalid operation",
			err.Error(),
			nil,
			[]string{`Operations are JSON objects, e.g. '{"type":"delete","id":"l1"}'`},
		)
	}

	_, be, err := openBackend(ctx, p)
	if err != nil {
		return err
	}
	defer be.Close()

	bus, err := be.Bus()
	if err != nil {
		return p.Error(
			"cannot send operations",
			err.Error(),
			nil,
			[]string{"Set persistence.backend to redis in chalk.yml"},
		)
	}

	if err := bus.PublishOperation(ctx, boardName, json.RawMessage(message)); err != nil {
		return fmt.Errorf("failed to send operation: %w", err)
	}

	p.Success("Sent %s operation to board '%s'\n", op.Kind(), boardName)

	if sendWait <= 0 {
		return nil
	}
	target := op.ID
	if op.Kind() == board.KindChild {
		target = op.Parent
	}
	if target == "" || op.Kind() == board.KindDelete || op.Kind() == board.KindClear {
		p.Warning("--wait ignored for %s operations\n", op.Kind())
		return nil
	}

	p.Step("Waiting for element '%s' to be persisted...\n", target)
	if _, err := watch.PollForElement(ctx, be.Adapter, boardName, target, sendWait); err != nil {
		return p.Error(
			"operation not persisted",
			err.Error(),
			nil,
			[]string{"Check that chalkd is running against the same namespace"},
		)
	}
	p.Success("Element '%s' persisted\n", target)
	return nil
}
