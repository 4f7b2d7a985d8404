package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/addressbridge/internal/server"
	"go.uber.org/zap"
)

var version = "1.0.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "addressbridge",
	Short:   "SecureAddress Bridge client and webhook receiver",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.close(ctx)

	if env.cfg.WebhookSecret == "" {
		return fmt.Errorf("BRIDGE_WEBHOOK_SECRET is required to verify deliveries")
	}

	env.logger.Info("Starting SecureAddress Bridge webhook receiver",
		zap.Int("port", env.cfg.Port),
		zap.String("version", env.cfg.Version),
	)

	srv := server.New(server.Config{
		Port:          env.cfg.Port,
		WebhookSecret: env.cfg.WebhookSecret,
	}, env.client, env.logger, env.metrics)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
