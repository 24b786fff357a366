// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-chat/internal/logging"
	"github.com/pdiddy/research-chat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run the terminal front-end",
	Long: `Chat opens an interactive terminal session: enter a research topic,
wait for the papers to be indexed, then ask questions. ctrl+n starts a new
topic and ctrl+c quits.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	warnMissingKeys(cfg, logger)

	// The builder logs nowhere: log lines would corrupt the full-screen view.
	b := newBuilder(cfg, nil, logging.Discard())
	final, err := tea.NewProgram(tui.New(cmd.Context(), b), tea.WithAltScreen()).Run()
	if m, ok := final.(tui.Model); ok {
		m.Close()
	}
	return err
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
