package commands

import (
	"fmt"

	"github.com/dyluth/chalk/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default chalk.yml",
	Long: `Write a default configuration for chalkd and the chalk CLI.

Creates:
  • chalk.yml    - Configuration with every default spelled out
  • .env.example - Environment overrides understood by chalkd

Use --force to overwrite existing files (WARNING: destroys existing configuration).`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing chalk.yml and .env.example")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to write the files to")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting(initDir); err != nil {
			return err
		}
	}

	if err := scaffold.Initialize(initDir, forceInit, cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess(cmd.OutOrStdout())
	return nil
}
