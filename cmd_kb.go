package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"mauassist/internal/knowledge"
)

var kbFile string

// kbCmd validates a knowledge table
var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Validate a knowledge table and print a summary",
	Long: `Parses the knowledge table given by --file, or the built-in table when
no file is given, and prints entry counts per category.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := knowledge.Load(kbFile)
		if err != nil {
			return err
		}
		printKnowledgeSummary(cmd.OutOrStdout(), base)
		return nil
	},
}

func init() {
	kbCmd.Flags().StringVarP(&kbFile, "file", "f", "", "knowledge YAML file (built-in table when empty)")
}

func printKnowledgeSummary(out io.Writer, base *knowledge.Base) {
	entries := base.Entries()
	byCategory := make(map[string]int)
	for _, e := range entries {
		byCategory[e.Category]++
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	fmt.Fprintf(out, "Entries: %d\n", len(entries))
	for _, c := range categories {
		fmt.Fprintf(out, "  %-20s %d\n", c, byCategory[c])
	}

	quick := base.QuickInfo()
	items := 0
	for _, q := range quick {
		items += len(q.Items)
	}
	fmt.Fprintf(out, "Quick info: %d categories, %d items\n", len(quick), items)
}
