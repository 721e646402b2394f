package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nhle/farmfresh-notify/internal/app"
	"github.com/nhle/farmfresh-notify/internal/cache"
	"github.com/nhle/farmfresh-notify/internal/credential"
	"github.com/nhle/farmfresh-notify/internal/gateway"
	"github.com/nhle/farmfresh-notify/internal/model"
	"github.com/nhle/farmfresh-notify/internal/notify"
	appsync "github.com/nhle/farmfresh-notify/internal/sync"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	configPath := os.Getenv("FARMFRESH_CONFIG")
	if configPath == "" {
		configPath = model.DefaultConfigPath()
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, configPath, logger); err != nil {
		logger.Error("farmfresh-notify exited with error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *model.AppConfig, configPath string, logger *zap.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	kv, err := cache.NewSQLiteCache(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer kv.Close()

	sessions, err := credential.Open()
	if err != nil {
		// Guests do not need the keyring.
		logger.Warn("keyring unavailable; sign-in will not persist", zap.Error(err))
	}
	var sessionStore app.SessionStore
	tokens := func() string { return "" }
	if sessions != nil {
		sessionStore = sessions
		tokens = sessions.AccessToken
	}

	timeout := time.Duration(cfg.Gateway.TimeoutSec) * time.Second
	var gw gateway.Gateway
	if cfg.Gateway.BaseURL != "" {
		gw = gateway.NewRESTGateway(gateway.Options{
			BaseURL:     cfg.Gateway.BaseURL,
			RealtimeURL: cfg.Gateway.RealtimeEndpoint(),
			APIKey:      cfg.Gateway.AnonKey,
			Token:       tokens,
			Timeout:     timeout,
			Logger:      logger,
		})
	} else {
		logger.Info("backend not configured; running guest-only")
	}

	policy, err := notify.ParseWritePolicy(cfg.Notifications.WritePolicy)
	if err != nil {
		logger.Warn("invalid write policy; using best_effort", zap.Error(err))
	}

	relay := appsync.New()
	store := notify.New(gw, cache.NewNotificationCache(kv, logger), logger,
		notify.WithWritePolicy(policy),
		notify.WithRetryAttempts(uint64(cfg.Notifications.RetryAttempts)),
		notify.WithWriteErrorHandler(relay.WriteErrorHandler()),
	)
	defer store.Close()

	verify := func(ctx context.Context, sess credential.Session) error {
		if cfg.Gateway.BaseURL == "" {
			return fmt.Errorf("backend is not configured; run setup from the command palette first")
		}
		probe := gateway.NewRESTGateway(gateway.Options{
			BaseURL: cfg.Gateway.BaseURL,
			APIKey:  cfg.Gateway.AnonKey,
			Token:   func() string { return sess.AccessToken },
			Timeout: timeout,
			Logger:  logger,
		})
		_, err := probe.FetchNotifications(ctx, sess.UserID)
		return err
	}

	logger.Info("starting farmfresh-notify",
		zap.String("config", configPath),
		zap.Bool("backend", gw != nil),
		zap.Stringer("write_policy", policy),
	)

	root := app.New(app.Options{
		Store:      store,
		Relay:      relay,
		Sessions:   sessionStore,
		Config:     cfg,
		ConfigPath: configPath,
		Verify:     verify,
		Logger:     logger,
	})

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// initLogger writes to the configured file because the terminal belongs to
// the UI.
func initLogger(cfg model.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	}

	return zc.Build()
}
