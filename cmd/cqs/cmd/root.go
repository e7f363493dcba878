// Package cmd provides the CLI commands for cqs.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cqlabs/cqs/internal/logging"
	"github.com/cqlabs/cqs/internal/profiling"
	"github.com/cqlabs/cqs/internal/signalctl"
	"github.com/cqlabs/cqs/pkg/version"
)

// Profiling flags, matching the teacher's CPU/mem/trace profile hooks.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the cqs CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cqs",
		Short: "Local code-intelligence index for AI coding assistants",
		Long: `cqs chunks a codebase with tree-sitter, embeds the chunks into a
local content-addressed index, and serves hybrid search plus call-graph
analysis (callers, callees, impact, dead code, test mapping) to tools and
AI assistants over an MCP server or a plain CLI.

Run 'cqs index' once, then 'cqs search <query>' or 'cqs serve' to expose
the index over MCP.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("cqs version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.cq/logs/")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCallersCmd())
	cmd.AddCommand(newCalleesCmd())
	cmd.AddCommand(newDepsCmd())
	cmd.AddCommand(newTestMapCmd())
	cmd.AddCommand(newDeadCodeCmd())
	cmd.AddCommand(newImpactDiffCmd())
	cmd.AddCommand(newScoutCmd())
	cmd.AddCommand(newGatherCmd())
	cmd.AddCommand(newWhereCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newGCCmd())
	cmd.AddCommand(newSuggestCmd())
	cmd.AddCommand(newDiffStoresCmd())
	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and returns the process exit code to use.
func Execute() signalctl.ExitCode {
	stop := signalctl.Install()
	defer stop()

	if err := NewRootCmd().Execute(); err != nil {
		if code, ok := exitCodeOf(err); ok {
			return code
		}
		fmt.Println("Error:", err)
		if signalctl.Interrupted() {
			return signalctl.ExitInterrupted
		}
		return 1
	}
	if signalctl.Interrupted() {
		return signalctl.ExitInterrupted
	}
	return signalctl.ExitOK
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("start trace: %w", err)
		}
	}

	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("write memory profile: %w", err)
		}
	}
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}
