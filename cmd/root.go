package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mj1618/deskmirror/internal/config"
	"github.com/mj1618/deskmirror/internal/logging"
	"github.com/mj1618/deskmirror/internal/output"
	"github.com/mj1618/deskmirror/internal/version"
)

var (
	// cfg is loaded from the environment and overridden by flags before any
	// subcommand runs.
	cfg = config.Default()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "deskmirror",
	Short: "Mirror desktop windows and applications and watch them change",
	Long: `deskmirror keeps an in-process mirror of the windows and applications on a
desktop and reports every change as a typed event, marked external when
something other than deskmirror caused it.

Backends:
  memory   simulated desktop loaded from --fixture (default: built-in demo)
  poll     the same simulated desktop observed by periodic snapshots
  native   the OS window manager, where supported

Settings come from DESKMIRROR_* environment variables; flags override them.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	rootCmd.PersistentFlags().String("format", "", "Output format: yaml, json")
	rootCmd.PersistentFlags().String("backend", "", "Desktop backend: memory, poll, native")
	rootCmd.PersistentFlags().String("fixture", "", "YAML fixture for the memory and poll backends")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-dev", false, "Human-readable console logs")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if err := applyFlags(rootCmd, loaded); err != nil {
			return err
		}
		cfg = loaded

		format, _ := rootCmd.PersistentFlags().GetString("format")
		f, err := output.ParseFormat(format)
		if err != nil {
			return err
		}
		output.OutputFormat = f
		output.Writer = cmd.OutOrStdout()
		if prettyFlag := cmd.Flags().Lookup("pretty"); prettyFlag != nil {
			if pretty, err := cmd.Flags().GetBool("pretty"); err == nil && pretty {
				output.PrettyOutput = true
			}
		}

		l, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
		if err != nil {
			return err
		}
		logger = l
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	}
}

// applyFlags copies explicitly set persistent flags over c.
func applyFlags(root *cobra.Command, c *config.Config) error {
	flags := root.PersistentFlags()
	if flags.Changed("backend") {
		c.Desktop.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("fixture") {
		c.Desktop.Fixture, _ = flags.GetString("fixture")
	}
	if flags.Changed("log-level") {
		c.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-dev") {
		c.Log.Development, _ = flags.GetBool("log-dev")
	}
	return c.Validate()
}
