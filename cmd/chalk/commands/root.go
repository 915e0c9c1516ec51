package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/chalk/internal/backend"
	"github.com/dyluth/chalk/internal/config"
	"github.com/dyluth/chalk/internal/printer"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chalk",
	Short: "Chalk - inspect and maintain shared drawing boards",
	Long: `Chalk inspects and maintains the boards persisted by chalkd.

It reads the same chalk.yml as the daemon, so it talks to the same Redis
namespace or SQLite file. Use it to list boards, show their elements, prune
or clear a board, and send operations to running daemons.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "chalk.yml", "Path to chalk.yml (defaults apply when missing)")
}

// newPrinter returns a printer bound to the command's output streams.
func newPrinter(cmd *cobra.Command) *printer.Printer {
	return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// openBackend loads the configuration and connects its backend, reporting
// failures through p.
func openBackend(ctx context.Context, p *printer.Printer) (*config.ChalkConfig, *backend.Backend, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, nil, p.Error(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{"Fix chalk.yml or point --config at another file"},
		)
	}

	be, err := backend.Open(ctx, cfg)
	if err != nil {
		details := map[string]string{"Backend": cfg.Persistence.Backend}
		switch cfg.Persistence.Backend {
		case config.BackendRedis:
			details["Redis URL"] = cfg.Persistence.RedisURL
		case config.BackendSQLite:
			details["SQLite path"] = cfg.Persistence.SQLitePath
		}
		return nil, nil, p.Error(
			"backend not accessible",
			err.Error(),
			details,
			[]string{
				"Check that the backend is running and reachable",
				fmt.Sprintf("Override the Redis URL:\n     %s=redis://host:6379/0 chalk ...", config.EnvRedisURL),
			},
		)
	}
	return cfg, be, nil
}
