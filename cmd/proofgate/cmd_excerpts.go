package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"proofgate/internal/ingest"
	"proofgate/internal/schema"
)

var excerptsCmd = &cobra.Command{
	Use:   "excerpts",
	Short: "List the citable excerpts in the evidence pack",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		pack, err := ingest.LoadPack(cfg.DocsDir())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tDOC\tTEXT")
		for _, dt := range schema.DocTypes {
			for _, ex := range pack.Excerpts[dt] {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ex.ExcerptID, ex.DocType, ex.DocID, preview(ex.Text, 70))
			}
		}
		return w.Flush()
	},
}

func preview(text string, n int) string {
	flat := make([]rune, 0, n)
	for _, r := range text {
		if r == '\n' {
			r = ' '
		}
		flat = append(flat, r)
		if len(flat) == n {
			return string(flat[:n-3]) + "..."
		}
	}
	return string(flat)
}
