package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"NeuralClient/internal/auth"
	"NeuralClient/internal/client"
	"NeuralClient/internal/config"
	"NeuralClient/internal/domain"
	"NeuralClient/internal/gateway"
	"NeuralClient/internal/notifications"
	"NeuralClient/internal/playback"
	"NeuralClient/internal/playback/mpd"
	"NeuralClient/internal/session"
	"NeuralClient/internal/store/file"
	"NeuralClient/internal/store/postgres"
)

func main() {
	envFile := pflag.String("env-file", "", "path of the .env file (default .env, or APP_ENV_FILE)")
	logLevel := pflag.String("log-level", "", "debug, info, warn or error")
	apiURL := pflag.String("api-url", "", "base URL of the API")
	code := pflag.String("code", "", "access code to sign in with when no session is stored")
	pflag.Parse()

	overrides := map[string]string{
		"APP_ENV_FILE":  *envFile,
		"APP_LOG_LEVEL": *logLevel,
		"APP_API_URL":   *apiURL,
	}
	for k, v := range overrides {
		if v != "" {
			_ = os.Setenv(k, v)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	if err := run(cfg, logger, *code); err != nil {
		logger.Error("client exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, code string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := gateway.New(gateway.Options{
		BaseURL:    cfg.APIURL.String(),
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		AuthScheme: cfg.AuthScheme,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	creds, closeCreds, err := openCredentials(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCreds()

	var (
		player    playback.Player = playback.Discard
		mpdPlayer *mpd.Player
	)
	if cfg.MPDAddr != "" {
		mpdPlayer = mpd.New(cfg.MPDAddr, cfg.MPDPassword, logger)
		player = mpdPlayer
	}

	app, err := client.New(client.Options{
		API:                  api,
		Credentials:          creds,
		Player:               player,
		Logger:               logger,
		PollInterval:         cfg.PollInterval,
		RequestsPollInterval: cfg.RequestsPollInterval,
		ChatPollInterval:     cfg.ChatPollInterval,
		ToastTTL:             cfg.ToastTTL,
		PreviewLen:           cfg.NotifyPreviewLen,
		EndPolicy:            cfg.EndPolicy,
		Volume:               cfg.DefaultVolume,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	out := os.Stdout
	unsubscribe := app.Toasts.Subscribe(func(t domain.Toast) {
		fmt.Fprintf(out, "! %s\n", t.Message)
	})
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)

	if mpdPlayer != nil {
		mpdPlayer.OnTrackEnd = func() {
			if err := app.Playback.OnTrackEnd(gctx); err != nil {
				logger.Warn("playback: advance failed", "err", err)
			}
		}
		g.Go(func() error { return mpdPlayer.Watch(gctx) })
	}

	if cfg.ForwardsNotifications() {
		sender, err := notifications.NewFCMSender(ctx, cfg.FCMProjectID, cfg.FCMCredentials)
		if err != nil {
			return err
		}
		fwd := notifications.NewForwarder(sender, cfg.FCMDeviceToken, logger)
		cancel := app.Toasts.Subscribe(fwd.Forward)
		defer cancel()
		g.Go(func() error { return fwd.Run(gctx) })
	}

	if err := app.Init(ctx); err != nil {
		logger.Info("stored session not restored", "err", err)
	}
	if code != "" && !app.Session.Snapshot().Authenticated() {
		if err := app.Login(ctx, domain.Credentials{Code: code}); err != nil {
			logger.Warn("login with --code failed", "err", err)
		}
	}

	logger.Info("client started", "env", cfg.Env, "api", cfg.APIURL.String(), "profile", cfg.Profile)

	g.Go(func() error {
		defer stop()
		return commandLoop(gctx, app, os.Stdin, out)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openCredentials picks where the access token is kept: Postgres when a DSN
// is configured, a file under the state directory otherwise.
func openCredentials(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.CredentialStore, func(), error) {
	sealer := auth.NewSealer(cfg.CredentialPassphrase)
	if cfg.CredentialPassphrase == "" {
		logger.Warn("APP_CREDENTIAL_PASSPHRASE not set; credential stored unsealed")
	}

	if cfg.DBDSN == "" {
		return file.NewCredentialStore(cfg.StateDir, cfg.Profile, sealer), func() {}, nil
	}

	pool, err := postgres.Open(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	store := postgres.NewCredentialStore(pool, cfg.Profile, sealer)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("db schema: %w", err)
	}
	return store, pool.Close, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// stdout carries the command loop's output.
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
