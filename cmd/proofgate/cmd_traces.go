package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var tracesLimit int

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Inspect stored run traces",
}

var tracesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent run traces, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, traces, err := openStore()
		if err != nil {
			return err
		}
		defer traces.Close()

		rows, err := traces.ListTraces(tracesLimit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No traces stored.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tINPUT HASH\tREPLAYED\tLATENCY\tQUESTION")
		for _, tr := range rows {
			question := tr.Question
			if len(question) > 60 {
				question = question[:57] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%v\t%dms\t%s\n",
				tr.RunID, shortHash(tr.InputHash), tr.Replayed, tr.LatencyMs, question)
		}
		return w.Flush()
	},
}

var tracesShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print one trace as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, traces, err := openStore()
		if err != nil {
			return err
		}
		defer traces.Close()

		trace, err := traces.GetTrace(args[0])
		if err != nil {
			return err
		}
		if trace == nil {
			return fmt.Errorf("no trace with run id %q", args[0])
		}

		out, err := json.MarshalIndent(trace, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	tracesListCmd.Flags().IntVar(&tracesLimit, "limit", 20, "maximum number of traces to list")
	tracesCmd.AddCommand(tracesListCmd)
	tracesCmd.AddCommand(tracesShowCmd)
}
