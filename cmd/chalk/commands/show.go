package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/chalk/internal/boardview"
	"github.com/dyluth/chalk/internal/filter"
	"github.com/dyluth/chalk/internal/resolver"
	"github.com/dyluth/chalk/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	showOutputFormat string
	showSince        string
	showUntil        string
	showType         string
	showAfter        string
	showMinChildren  int
)

var showCmd = &cobra.Command{
	Use:   "show BOARD [ELEMENT_ID]",
	Short: "Inspect board elements with filtering",
	Long: `Inspect the elements of a board in list or get mode.

List Mode (no ELEMENT_ID):
  Displays elements in draw order as a table or JSONL stream.

Get Mode (with ELEMENT_ID):
  Displays one element as pretty-printed JSON.
  Supports id prefixes of at least 3 characters (e.g., "l1a" for "l1a2b3c4").

Output Formats (list mode only):
  default - Human-readable table with ID, Type, Size, Position, Children and Age
  jsonl   - Line-delimited JSON, one element per line

Filters (list mode only):
  --since        - Elements last written after this time
  --until        - Elements last written before this time
  --type         - Element type glob ("line", "doc", "*")
  --after        - Only elements whose id sorts after this one
  --min-children - Elements with at least this many children

Examples:
  # List a board
  chalk show lobby

  # Lines drawn in the last hour, as JSONL for jq
  chalk show lobby --type=line --since=1h --output=jsonl | jq .id

  # One element
  chalk show lobby l1a2b3`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")

	showCmd.Flags().StringVar(&showSince, "since", "", "Show elements after time (duration or RFC3339)")
	showCmd.Flags().StringVar(&showUntil, "until", "", "Show elements before time (duration or RFC3339)")

	showCmd.Flags().StringVar(&showType, "type", "", "Filter by element type (glob pattern)")
	showCmd.Flags().StringVar(&showAfter, "after", "", "Only elements with an id after this one")
	showCmd.Flags().IntVar(&showMinChildren, "min-children", 0, "Minimum number of children")

	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p := newPrinter(cmd)
	boardName := args[0]
	isGetMode := len(args) > 1

	var outputFormat boardview.OutputFormat
	if !isGetMode {
		switch showOutputFormat {
		case "default":
			outputFormat = boardview.OutputFormatDefault
		case "jsonl":
			outputFormat = boardview.OutputFormatJSONL
		default:
			return p.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", showOutputFormat),
				nil,
				[]string{"Valid formats: default, jsonl"},
			)
		}
	}

	_, be, err := openBackend(ctx, p)
	if err != nil {
		return err
	}
	defer be.Close()

	if isGetMode {
		elementID := args[1]
		err := boardview.GetElement(ctx, be.Adapter, boardName, elementID, cmd.OutOrStdout())
		if err != nil {
			if boardview.IsNotFound(err) {
				return p.Error(
					fmt.Sprintf("element '%s' not found", elementID),
					fmt.Sprintf("Board '%s' has no element with this id.", boardName),
					nil,
					[]string{fmt.Sprintf("List the board:\n  chalk show %s", boardName)},
				)
			}
			if resolver.IsAmbiguousError(err) {
				ambigErr := err.(*resolver.AmbiguousError)
				fmt.Fprintln(cmd.ErrOrStderr(), resolver.FormatAmbiguousError(ambigErr))
				return fmt.Errorf("ambiguous short ID")
			}
			return fmt.Errorf("failed to get element: %w", err)
		}
		return nil
	}

	sinceMS, untilMS, err := timespec.ParseRange(showSince, showUntil, time.Now())
	if err != nil {
		return p.Error(
			"invalid time filter",
			err.Error(),
			nil,
			[]string{"Use duration format like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z'"},
		)
	}

	opts := boardview.ListOptions{
		Format: outputFormat,
		Filters: &filter.Criteria{
			SinceTimestampMs: sinceMS,
			UntilTimestampMs: untilMS,
			TypeGlob:         showType,
			MinChildren:      showMinChildren,
		},
		AfterID: showAfter,
	}
	if err := boardview.ListElements(ctx, be.Adapter, boardName, opts, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to list elements: %w", err)
	}
	return nil
}
