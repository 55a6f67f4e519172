// ProofGate - multi-agent compliance judgment pipeline.
//
// Three reasoning agents with conflicting objectives run in parallel against
// the same evidence pack, a citation guard blocks hallucinated references,
// and a judge agent resolves disagreement with deterministic rules. Every
// run is hashed, traced, and replayable.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"proofgate/internal/agents"
	"proofgate/internal/config"
	"proofgate/internal/logging"
	"proofgate/internal/orchestrator"
	"proofgate/internal/store"
)

var (
	// Global flags
	verbose   bool
	workspace string
	dataDir   string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "proofgate",
	Short: "ProofGate - fail-closed multi-agent compliance judgments",
	Long: `ProofGate evaluates compliance questions through three independent
reasoning agents (Policy, Risk, Evidence) running in parallel, a citation
guard that rejects any reference to material that was not provided, and a
judge agent applying deterministic resolution rules.

Every run is keyed by a hash of its inputs: identical questions over
identical excerpts replay the stored verdict instead of re-invoking agents,
and every verdict is auditable from its trace.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspace == "" {
			workspace, _ = os.Getwd()
		}
		if err := logging.Initialize(workspace); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if err := logging.InitAudit(); err != nil {
			return fmt.Errorf("failed to initialize audit log: %w", err)
		}

		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAudit()
		logging.Close()
	},
}

// loadConfig loads the workspace config with the global flag overrides
// applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.DefaultPath(workspace))
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// openStore opens the trace store without building an LLM client, for
// read-only subcommands that never invoke agents.
func openStore() (*config.Config, *store.TraceStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	traces, err := store.NewTraceStore(cfg.TraceDBPath())
	if err != nil {
		return nil, nil, err
	}
	return cfg, traces, nil
}

// bootstrap loads config and constructs the injected component graph shared
// by the subcommands. The caller owns closing the returned store.
func bootstrap() (*config.Config, *store.TraceStore, *orchestrator.Orchestrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	traces, err := store.NewTraceStore(cfg.TraceDBPath())
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := agents.NewClientFromConfig(cfg)
	if err != nil {
		traces.Close()
		return nil, nil, nil, err
	}

	orch := orchestrator.New(
		agents.NewLLMInvoker(client),
		traces,
		orchestrator.WithDeterministicMode(cfg.Deterministic()),
		orchestrator.WithMaxRetries(cfg.RetryBudget()),
	)
	return cfg, traces, orch, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace directory (default: cwd)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the data directory")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall run timeout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(judgeCmd)
	rootCmd.AddCommand(tracesCmd)
	rootCmd.AddCommand(excerptsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
