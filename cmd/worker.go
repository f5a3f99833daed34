/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scholaraid/apiserver/config"
	"github.com/scholaraid/apiserver/internal/db"
	"github.com/scholaraid/apiserver/internal/logging"
	"github.com/scholaraid/apiserver/internal/mq"
	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes notification events",
	Long: `Consumes notification events from the configured message broker and
records their delivery. Usage:

	scholaraid worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.MQ.Backend == config.BackendNone {
			return fmt.Errorf("worker requires MQ_BACKEND to be set")
		}

		logger, err := logging.New(cfg.Env, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dbConn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() { _ = dbConn.Close() }()

		bus, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		defer func() {
			if err := bus.Close(); err != nil {
				logger.Warn("failed to close mq", zap.Error(err))
			}
		}()

		dispatcher := worker.NewDispatcher(bus, cfg.MQ.NotificationsChannel, store.NewNotificationRepository(dbConn), logger)
		return dispatcher.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
