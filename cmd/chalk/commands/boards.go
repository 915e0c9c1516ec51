package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List persisted boards",
	Args:  cobra.NoArgs,
	RunE:  runBoards,
}

func init() {
	rootCmd.AddCommand(boardsCmd)
}

func runBoards(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p := newPrinter(cmd)

	_, be, err := openBackend(ctx, p)
	if err != nil {
		return err
	}
	defer be.Close()

	lister, ok := be.Lister()
	if !ok {
		return p.Error(
			"listing not supported",
			"The "+be.Name+" backend cannot enumerate boards.",
			nil,
			nil,
		)
	}

	names, err := lister.ListBoards(ctx)
	if err != nil {
		return p.Error("failed to list boards", err.Error(), nil, nil)
	}

	if len(names) == 0 {
		p.Info("No boards found\n")
		return nil
	}
	for _, name := range names {
		p.Info("%s\n", name)
	}
	return nil
}
