// Package main runs the simple-mfa service. With default settings everything
// is in-memory and SMS delivery is mocked, which is useful for:
// - Quick development and testing
// - Demo/prototype environments
// - Learning the API without database setup
//
// Set MFA_PERSISTENCE_TYPE, MFA_DATABASE_URL, MFA_REDIS_ADDR,
// MFA_TWILIO_ENABLED, and MFA_SMTP_ENABLED for durable storage and real
// delivery.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-mfa/pkg/config"
	"github.com/tendant/simple-mfa/pkg/mfa"
	"github.com/tendant/simple-mfa/pkg/mfa/api"
	"github.com/tendant/simple-mfa/pkg/notification"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var cfg config.MfaConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	storeCfg := mfa.StoreConfig{DataDir: cfg.DataDir}
	if cfg.PersistenceType == "postgres" || cfg.PersistenceType == "postgresql" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		storeCfg.Pool = pool
	}

	configStore, err := mfa.NewAccountConfigStore(cfg.PersistenceType, storeCfg)
	if err != nil {
		slog.Error("Failed to create account config store", "error", err)
		os.Exit(1)
	}

	// The file backend only covers account configs; settings fall back to
	// the in-memory store there.
	settingsStoreType := cfg.PersistenceType
	if settingsStoreType == "file" {
		settingsStoreType = "memory"
	}
	settingsStore, err := mfa.NewSettingsStore(settingsStoreType, storeCfg)
	if err != nil {
		slog.Error("Failed to create settings store", "error", err)
		os.Exit(1)
	}
	settingsService := mfa.NewSettingsService(settingsStore)

	seedDefaultSettings(ctx, settingsService)

	var ledger mfa.VerificationLedger
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		ledger = mfa.NewRedisVerificationLedger(client)
		slog.Info("Using Redis verification ledger", "addr", cfg.RedisAddr)
	} else {
		ledger = mfa.NewInMemoryVerificationLedger()
		slog.Info("Using in-memory verification ledger")
	}

	manager := notification.NewDeliveryManager()
	if cfg.TwilioEnabled {
		var twilioCfg notification.TwilioConfig
		if err := cleanenv.ReadEnv(&twilioCfg); err != nil {
			slog.Error("Failed to load Twilio config", "error", err)
			os.Exit(1)
		}
		manager.RegisterNotifier(notification.SMSChannel, notification.NewSMSNotifier(twilioCfg))
	} else {
		slog.Info("Twilio disabled, SMS delivery is mocked")
		manager.RegisterNotifier(notification.SMSChannel, &notification.MockNotifier{})
	}

	if cfg.SmtpEnabled {
		var smtpCfg notification.SMTPConfig
		if err := cleanenv.ReadEnv(&smtpCfg); err != nil {
			slog.Error("Failed to load SMTP config", "error", err)
			os.Exit(1)
		}
		emailNotifier, err := notification.NewEmailNotifier(smtpCfg)
		if err != nil {
			slog.Error("Failed to create email notifier", "error", err)
			os.Exit(1)
		}
		manager.RegisterNotifier(notification.EmailChannel, emailNotifier)
	} else {
		slog.Info("SMTP disabled, email delivery is mocked")
		manager.RegisterNotifier(notification.EmailChannel, &notification.MockNotifier{})
	}

	providers := []mfa.Provider{
		mfa.NewTotpProvider(),
		mfa.NewSmsProvider(manager.CodeSender(notification.SMSChannel)),
		mfa.NewEmailProvider(manager.CodeSender(notification.EmailChannel)),
	}
	mfaService := mfa.NewMfaService(settingsService, configStore, ledger, providers)

	handle := api.NewHandle(mfaService, settingsService, api.NewHmacJwtService(cfg.JwtSecret))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/api/2fa", handle.Routes())

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Starting simple-mfa", "addr", addr, "persistence", cfg.PersistenceType)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// seedDefaultSettings enables both providers system-wide when no system
// settings exist yet, so a fresh instance is usable immediately.
func seedDefaultSettings(ctx context.Context, settingsService *mfa.SettingsService) {
	existing, err := settingsService.GetSettings(ctx, uuid.Nil, true)
	if err != nil {
		slog.Error("Failed to read system settings", "error", err)
		return
	}
	if existing != nil {
		return
	}

	err = settingsService.SaveSystemSettings(ctx, mfa.Settings{
		Providers: []mfa.ProviderConfig{
			{ProviderType: mfa.ProviderTypeTOTP, Enabled: true, Issuer: "simple-mfa"},
			{ProviderType: mfa.ProviderTypeSMS, Enabled: true, CodeLifetimeSeconds: 120},
			{ProviderType: mfa.ProviderTypeEmail, Enabled: true, CodeLifetimeSeconds: 120},
		},
		MaxVerificationFailures: 3,
	})
	if err != nil {
		slog.Error("Failed to seed default settings", "error", err)
	}
}
