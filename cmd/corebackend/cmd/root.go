package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corebackend/backend/pkg/clog"
	"github.com/corebackend/backend/pkg/telemetry"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// logger is set up in rootCmd's PersistentPreRunE, once verbose is
	// known, the way the teacher's own root command defers logger
	// construction until flags are parsed.
	logger clog.Logger

	// telemetryShutdown flushes and tears down the span exporter
	// telemetry.Init set up, if OTEL_ENABLED made it anything but a
	// no-op.
	telemetryShutdown telemetry.ShutdownFunc
)

var rootCmd = &cobra.Command{
	Use:   "corebackend",
	Short: "A standalone x86-64 compilation backend",
	Long: `corebackend takes a low-level, SSA-form function description and
runs it through the backend pipeline: critical-edge splitting,
liveness, conflict-map construction, register allocation, machine-code
emission, and installation into an executable memory pool.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := clog.LevelInfo
		if verbose {
			level = clog.LevelDebug
		}
		logger = clog.New(level, os.Stdout)

		shutdown, err := telemetry.Init(cmd.Context())
		if err != nil {
			return err
		}
		telemetryShutdown = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if telemetryShutdown == nil {
			return nil
		}
		return telemetryShutdown(cmd.Context())
	},
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	rootCmd.SetContext(context.Background())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output, including a per-phase timing summary")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a pipeline config file (defaults to ./config.yaml if present)")

	binName := BinName()
	rootCmd.Example = `  # Compile a function description and invoke it
  ` + binName + ` compile -f ./add.ir --run 2,3

  # Dump the LIR and disassembly alongside the result
  ` + binName + ` compile -f ./add.ir --dump-lir --dump-asm --run 2,3

  # Run verbosely, printing per-phase timings
  ` + binName + ` compile -f ./add.ir --run 2,3 -v`
}

// GetLogger returns the logger PersistentPreRunE configured.
func GetLogger() clog.Logger {
	return logger
}

// BinName returns the base name of the current executable, the way the
// teacher's root command derives its Example text.
func BinName() string {
	return filepath.Base(os.Args[0])
}
