package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/jira-jenkins-integ/internal/config"
	"github.com/jira-jenkins-integ/internal/descriptor"
	"github.com/jira-jenkins-integ/internal/secret"
	"github.com/jira-jenkins-integ/internal/sender"
	"github.com/jira-jenkins-integ/internal/tenant"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	debug    bool
	secrets  secret.Chain
	resolver tenant.Resolver
	closers  []io.Closer
}

func loadApp(v *viper.Viper, logOut io.Writer) (*app, error) {
	configPath := v.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if v.GetBool("debug") {
		level = "debug"
	}
	if override := v.GetString("log-level"); override != "" {
		level = override
	}
	debug := cfg.DebugLogging || v.GetBool("debug")
	logger := newLogger(level, logOut)
	logger.Debug("configuration loaded", slog.String("path", configPath), slog.Int("sites", len(cfg.SiteList)))

	a := &app{cfg: cfg, logger: logger, debug: debug}

	a.secrets = secret.Chain{secret.NewStaticStore(cfg.Credentials)}
	if cfg.Keyring.Enabled {
		ks, err := secret.OpenKeyring(cfg.Keyring)
		if err != nil {
			logger.Warn("keyring unavailable", slog.String("error", err.Error()))
		} else {
			a.secrets = append(a.secrets, ks)
		}
	}

	resolverClient := newHTTPClient(false, cfg.CloudID.Timeout.Duration)
	resolver, closer, err := tenant.NewFromConfig(cfg.CloudID, resolverClient, logger.With(slog.String("component", "tenant")))
	if err != nil {
		return nil, err
	}
	a.resolver = resolver
	a.closers = append(a.closers, closer)

	return a, nil
}

func (a *app) newSender() *sender.Sender {
	return sender.New(
		a.cfg,
		a.secrets,
		a.resolver,
		newHTTPClient(a.cfg.Sender.SkipTLSVerify, a.cfg.Sender.Timeout.Duration),
		sender.Options{
			RateLimit:   a.cfg.Sender.RateLimit,
			Concurrency: a.cfg.Sender.Concurrency,
			UserAgent:   a.cfg.Sender.UserAgent,
		},
		a.logger.With(slog.String("component", "sender")),
	)
}

func (a *app) newDescriptor() *descriptor.Descriptor {
	return descriptor.New(a.resolver, a.secrets, a.secrets, a.cfg,
		a.logger.With(slog.String("component", "descriptor")))
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
