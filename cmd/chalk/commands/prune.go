package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/chalk/pkg/board"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune BOARD",
	Short: "Evict the oldest elements beyond the item limit and compact the board",
	Long: `Load a board, evict its oldest elements beyond limits.max_item_count and
write a fresh snapshot, which also compacts the element log.

Run it while no daemon holds the board, or the daemon's next save restores
the evicted elements.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p := newPrinter(cmd)
	boardName := args[0]

	cfg, be, err := openBackend(ctx, p)
	if err != nil {
		return err
	}
	defer be.Close()

	opts := append(cfg.StoreOptions(), board.WithPersistMode(board.PersistSync))
	store, err := board.Load(ctx, boardName, be.Adapter, opts...)
	if err != nil {
		return p.Error(fmt.Sprintf("failed to load board '%s'", boardName), err.Error(), nil, nil)
	}
	defer store.Close(ctx)

	p.Step("Loaded %d elements\n", store.Len())

	evicted, err := store.Clean(ctx)
	if err != nil {
		return p.Error("failed to evict elements", err.Error(), nil, nil)
	}
	if err := store.Save(ctx); err != nil {
		return p.Error("failed to save board", err.Error(), nil, nil)
	}

	p.Success("Pruned board '%s': %d evicted, %d kept\n", boardName, evicted, store.Len())
	return nil
}
