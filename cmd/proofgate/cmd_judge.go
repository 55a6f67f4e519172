package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"proofgate/internal/api"
	"proofgate/internal/ingest"
	"proofgate/internal/retrieve"
	"proofgate/internal/schema"
)

var includeAcceptance bool

var judgeCmd = &cobra.Command{
	Use:   "judge <question>",
	Short: "Run a compliance question through the judgment pipeline",
	Long: `Runs one question through the full pipeline: retrieval, three parallel
reasoning agents, citation validation, and judge resolution. Prints the
verdict and the trace identifiers needed to audit it.

By default the client-acceptance email excerpt is held back, matching the
incomplete-evidence scenario. Pass --include-acceptance to retrieve it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runJudge,
}

var (
	verdictStyles = map[string]lipgloss.Style{
		schema.DecisionApprove:              lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22C55E")),
		schema.DecisionReject:               lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
		schema.DecisionInsufficientEvidence: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B")),
	}

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

func runJudge(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	cfg, traces, orch, err := bootstrap()
	if err != nil {
		return err
	}
	defer traces.Close()

	pack, err := ingest.LoadPack(cfg.DocsDir())
	if err != nil {
		return err
	}

	var opts []retrieve.Option
	if !includeAcceptance {
		opts = append(opts, retrieve.WithExcludedIDs(api.AcceptanceExcerptID))
	}
	excerpts := retrieve.NewFirstN(pack.Excerpts, cfg.Retrieval, opts...).Retrieve(question)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	result, err := orch.Run(ctx, question, excerpts)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(result *schema.RunResult) {
	v := result.Verdict

	style, ok := verdictStyles[v.Decision]
	if !ok {
		style = lipgloss.NewStyle().Bold(true)
	}

	fmt.Println()
	fmt.Printf("%s %s  %s\n",
		labelStyle.Render("Verdict:"),
		style.Render(v.Decision),
		dimStyle.Render(fmt.Sprintf("(confidence %.2f, %s)", v.Confidence, v.RuleApplied)),
	)

	if len(v.Violations) > 0 {
		fmt.Printf("%s %s\n", labelStyle.Render("Violations:"), strings.Join(v.Violations, "; "))
	}
	if len(v.ConditionsToAllow) > 0 {
		fmt.Printf("%s\n", labelStyle.Render("Conditions to allow:"))
		for _, c := range v.ConditionsToAllow {
			fmt.Printf("  - %s\n", c)
		}
	}
	if len(v.Citations) > 0 {
		fmt.Printf("%s %s\n", labelStyle.Render("Citations:"), strings.Join(v.Citations, ", "))
	}
	if result.Error != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Error:"), result.Error)
	}

	fmt.Println()
	fmt.Printf("%s run=%s input=%s output=%s",
		labelStyle.Render("Trace:"),
		result.RunID,
		shortHash(result.Trace.InputHash),
		shortHash(result.Trace.FinalOutputHash),
	)
	if result.Trace.Replayed {
		fmt.Printf(" %s", dimStyle.Render("[replayed]"))
	}
	fmt.Printf("\n%s %dms, %d excerpts\n",
		labelStyle.Render("Timing:"),
		result.Trace.LatencyMs,
		len(result.Trace.ExcerptIDs),
	)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func init() {
	judgeCmd.Flags().BoolVar(&includeAcceptance, "include-acceptance", false, "include the client acceptance email in evidence retrieval")
}
