package main

import (
	"context"

	"github.com/tournevent/addressbridge/internal/config"
	"github.com/tournevent/addressbridge/internal/telemetry"
	"github.com/tournevent/addressbridge/pkg/bridge"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// environment is the wiring shared by every command.
type environment struct {
	cfg     *config.Config
	logger  *otelzap.Logger
	metrics *telemetry.Metrics
	client  *bridge.Client

	tracerShutdown func(context.Context) error
}

func setup(ctx context.Context) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	tracer, shutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
		shutdown = func(context.Context) error { return nil }
	}

	metrics := telemetry.NewMetrics()
	client := initBridgeClient(cfg, logger, tracer).WithObserver(metrics)

	return &environment{
		cfg:            cfg,
		logger:         logger,
		metrics:        metrics,
		client:         client,
		tracerShutdown: shutdown,
	}, nil
}

func (e *environment) close(ctx context.Context) {
	e.tracerShutdown(ctx)
	e.logger.Sync()
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}

	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
}

func initBridgeClient(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) *bridge.Client {
	return bridge.New(cfg.BridgeConfig(), logger, tracer)
}
