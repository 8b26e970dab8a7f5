package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jira-jenkins-integ/internal/config"
	"github.com/jira-jenkins-integ/internal/server"
	"github.com/jira-jenkins-integ/internal/webhook"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the step and configuration endpoints over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(v, os.Stdout)
			if err != nil {
				return err
			}
			defer a.Close()
			logger := a.logger

			logger.Info("starting jira build info service",
				slog.String("address", a.cfg.Server.Address),
				slog.Int("sites", len(a.cfg.SiteList)),
				slog.String("cloud_id_cache", a.cfg.CloudID.Cache.Backend))

			stepSecret := config.EnvSecret(a.cfg.Server.StepSecretEnv)
			if stepSecret == "" {
				logger.Warn("step secret is empty, invocations are not authenticated", slog.String("env", a.cfg.Server.StepSecretEnv))
			}
			adminToken := config.EnvSecret(a.cfg.Server.AdminTokenEnv)
			if adminToken == "" {
				logger.Warn("admin token is empty, admin endpoints are disabled", slog.String("env", a.cfg.Server.AdminTokenEnv))
			}

			handler := webhook.New(a.newSender(), logger.With(slog.String("component", "step_handler")), stepSecret, a.debug)
			srv := server.New(a.cfg.Server, a.newDescriptor(), handler, adminToken, logger.With(slog.String("component", "server")))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := srv.Run(ctx); err != nil {
				logger.Error("server terminated with error", slog.String("error", err.Error()))
				return err
			}
			logger.Info("jira build info service stopped")
			return nil
		},
	}
}
