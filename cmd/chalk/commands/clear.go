package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyluth/chalk/pkg/board"
	"github.com/spf13/cobra"
)

var clearConfirmed bool

var clearCmd = &cobra.Command{
	Use:   "clear BOARD",
	Short: "Delete every element of a board",
	Long: `Delete every element of a board from the backend.

With the redis backend a clear operation is also published, so running
daemons drop their in-memory copy of the board.`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearConfirmed, "yes", false, "Confirm the deletion")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p := newPrinter(cmd)
	boardName := args[0]

	if !clearConfirmed {
		return p.Error(
			"confirmation required",
			fmt.Sprintf("This permanently deletes every element of board '%s'.", boardName),
			nil,
			[]string{fmt.Sprintf("Run again with --yes:\n  chalk clear %s --yes", boardName)},
		)
	}

	_, be, err := openBackend(ctx, p)
	if err != nil {
		return err
	}
	defer be.Close()

	store := board.New(boardName, be.Adapter, board.WithPersistMode(board.PersistSync))
	clearErr := store.ClearAll(ctx)
	if err := store.Close(ctx); err != nil && clearErr == nil {
		clearErr = err
	}
	if clearErr != nil {
		return p.Error(fmt.Sprintf("failed to clear board '%s'", boardName), clearErr.Error(), nil, nil)
	}

	if bus, err := be.Bus(); err == nil {
		op, _ := json.Marshal(map[string]string{"type": string(board.KindClear)})
		if err := bus.PublishOperation(ctx, boardName, op); err != nil {
			p.Warning("Board cleared, but running daemons were not notified: %v\n", err)
		}
	}

	p.Success("Cleared board '%s'\n", boardName)
	return nil
}
