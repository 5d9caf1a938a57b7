package main

import (
	"context"
	"os"

	"github.com/sandevgo/eqchat/internal/config"
	"github.com/sandevgo/eqchat/pkg/log"
	"github.com/spf13/cobra"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "eqchat",
	Short: "eqchat, an event-driven conversational agent backend",
	Long:  `eqchat serves the chat API and runs the ingestion and fact-extraction workers.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
