package main

import (
	"os"
	"os/signal"

	"github.com/sandevgo/eqchat/pkg/log"
	"github.com/sandevgo/eqchat/pkg/srv"
	"github.com/spf13/cobra"
)

var ingestWorkerCmd = &cobra.Command{
	Use:   "ingest-worker",
	Short: "Start the message ingestion worker",
	Long:  `Consumes message.created events and persists them idempotently into the conversation store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting ingest worker")

		services := NewIngestWorkerServices(ctx)

		srv.StartServices(ctx, services)
		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("ingest worker has been shut down gracefully")

		return nil
	},
}

var extractWorkerCmd = &cobra.Command{
	Use:   "extract-worker",
	Short: "Start the fact extraction worker",
	Long:  `Consumes extraction requests, distills durable facts with the LLM and stores them in long-term memory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting extract worker")

		services := NewExtractWorkerServices(ctx)

		srv.StartServices(ctx, services)
		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("extract worker has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestWorkerCmd)
	rootCmd.AddCommand(extractWorkerCmd)
}
