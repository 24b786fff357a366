// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-chat/internal/metrics"
	"github.com/pdiddy/research-chat/internal/server"
	"github.com/pdiddy/research-chat/internal/sessions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web front-end",
	Long: `Serve starts the web chatbot. Enter a research topic to fetch and index
papers, then ask questions about them. Each browser keeps its own session;
idle sessions expire after server.session_ttl.

Prometheus metrics are exposed at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	reg := sessions.New(m, logger)
	srv := server.New(newBuilder(cfg, m, logger), reg, server.Options{
		SessionTTL: cfg.Server.SessionTTL,
		Metrics:    m,
		Logger:     logger,
	})
	return srv.Run(ctx, cfg.Server.Addr)
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8501)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}
