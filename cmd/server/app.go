package main

import (
	"context"
	"fmt"
	"time"

	"cortex.ai/contract-desk/internal/config"
	"cortex.ai/contract-desk/internal/core"
	"cortex.ai/contract-desk/internal/gateway"
	"cortex.ai/contract-desk/internal/logging"
	"cortex.ai/contract-desk/internal/session"
	"cortex.ai/contract-desk/internal/store"
	"go.uber.org/zap"
)

// app holds the wired services shared by every subcommand.
type app struct {
	logger      *zap.Logger
	gateway     *gateway.Client
	activity    store.ActivityLog
	desk        *core.DeskService
	negotiation *core.NegotiationService
	closers     []func() error
}

func newApp(ctx context.Context) (*app, error) {
	if err := config.LoadConfig(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg := config.AppConfig

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{logger: logger}
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	var kv session.Store
	if cfg.SessionDir == config.MemorySessionDir {
		kv = session.NewMemoryStore()
	} else {
		badgerStore, err := session.NewBadgerStore(cfg.SessionDir, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, badgerStore.Close)
		kv = badgerStore
	}

	activity, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}
	a.activity = activity
	a.closers = append(a.closers, activity.Close)

	sess := session.New(kv, logger)
	a.gateway = gateway.New(cfg.BackendURL, time.Duration(cfg.RequestTimeoutSeconds)*time.Second)
	a.desk = core.NewDeskService(a.gateway, sess, activity, logger)
	a.negotiation = core.NewNegotiationService(a.gateway, sess, activity, logger)

	logger.Debug("desk initialized",
		zap.String("backend_url", cfg.BackendURL),
		zap.Bool("postgres", cfg.UsesPostgres()),
		zap.String("session_dir", cfg.SessionDir))
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to release resource", zap.Error(err))
		}
	}
}
