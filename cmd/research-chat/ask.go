// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-chat/internal/chat"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Build a session for a topic and ask one or more questions",
	Long: `Ask fetches and indexes papers for --topic, then answers each --question
in order within the same conversation, so later questions may refer to
earlier ones.`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	topic, _ := cmd.Flags().GetString("topic")
	questions, _ := cmd.Flags().GetStringArray("question")
	if len(questions) == 0 {
		return fmt.Errorf("at least one --question is required")
	}

	res, err := newBuilder(cfg, nil, logger).Build(cmd.Context(), topic)
	if err != nil {
		return err
	}
	defer res.Close()
	fmt.Fprintf(os.Stderr, "Indexed %d papers for %q\n", len(res.Documents), res.Topic)

	for i, q := range questions {
		ans, err := res.Session.Ask(cmd.Context(), q)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Println()
		}
		printAnswer(os.Stdout, q, ans)
	}
	return nil
}

func printAnswer(w io.Writer, question string, ans chat.Answer) {
	fmt.Fprintf(w, "Q: %s\n", question)
	fmt.Fprintf(w, "Answer: %s\n", ans.Text)
	if len(ans.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "Sources:")
	for _, s := range ans.Sources {
		fmt.Fprintf(w, "  - %s (%s)\n", s.Title, s.Source)
	}
}

func init() {
	askCmd.Flags().String("topic", "", "research topic to fetch papers for (required)")
	askCmd.Flags().StringArray("question", nil, "question to ask; repeat for follow-ups")
	askCmd.MarkFlagRequired("topic")

	rootCmd.AddCommand(askCmd)
}
