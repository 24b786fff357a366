// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-chat/internal/fetch"
	"github.com/pdiddy/research-chat/internal/httputil"
	"github.com/pdiddy/research-chat/internal/normalize"
	"github.com/pdiddy/research-chat/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <topic>",
	Short: "Fetch paper records for a topic without indexing them",
	Long: `Fetch queries every enabled source (arXiv, PubMed, Google Scholar) for
the topic and prints the records in source order. With --normalized it
prints the documents exactly as they would be embedded.

No OpenAI key is needed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	limit := cfg.Fetch.MaxResults
	if cmd.Flags().Changed("limit") {
		limit, _ = cmd.Flags().GetInt("limit")
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	yamlOutput, _ := cmd.Flags().GetBool("yaml")
	normalized, _ := cmd.Flags().GetBool("normalized")
	if jsonOutput && yamlOutput {
		return fmt.Errorf("--json and --yaml are mutually exclusive")
	}

	warnMissingSerpAPIKey(cfg, logger)

	agg := &fetch.Aggregator{
		Fetchers: fetch.FromConfig(cfg, httputil.NewClient(cfg.HTTP.Timeout), logger),
		Logger:   logger,
	}
	records, err := agg.Fetch(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	var out any = records
	if normalized {
		out = normalize.Normalize(records, cfg.Normalize.MaxWords)
	}

	switch {
	case jsonOutput:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case yamlOutput:
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	case normalized:
		return printDocuments(os.Stdout, out.([]types.NormalizedDocument))
	default:
		return printRecords(os.Stdout, records)
	}
}

func printRecords(w io.Writer, records []types.PaperRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No papers found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-15s  %-50s  %s\n", "#", "Source", "Title", "Abstract")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for i, r := range records {
		fmt.Fprintf(w, "%-4d  %-15s  %-50s  %s\n", i+1, r.Source, clip(r.Title, 50), clip(r.Summary, 35))
	}
	fmt.Fprintf(w, "\n%d records\n", len(records))
	return nil
}

func printDocuments(w io.Writer, docs []types.NormalizedDocument) error {
	for i, d := range docs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s] %s (%s)\n%s\n", d.ID, d.Metadata.Title, d.Metadata.Source, d.Text)
	}
	fmt.Fprintf(w, "\n%d documents\n", len(docs))
	return nil
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	fetchCmd.Flags().Int("limit", 3, "maximum results per source")
	fetchCmd.Flags().Bool("json", false, "output as JSON")
	fetchCmd.Flags().Bool("yaml", false, "output as YAML")
	fetchCmd.Flags().Bool("normalized", false, "print normalized documents instead of raw records")

	rootCmd.AddCommand(fetchCmd)
}
