package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aginhq/agin-login/pkg/idp"
)

type Config struct {
	Port          int    `env:"IDP_PORT" env-default:"4000"`
	JwtSecret     string `env:"IDP_JWT_SECRET" env-default:"dev-secret-change-in-production"`
	Issuer        string `env:"IDP_ISSUER" env-default:"agin-idp"`
	RpID          string `env:"IDP_RP_ID" env-default:"localhost"`
	RpName        string `env:"IDP_RP_NAME" env-default:"Agin"`
	DatabaseURL   string `env:"IDP_DATABASE_URL" env-default:""`
	SecureCookies bool   `env:"IDP_SECURE_COOKIES" env-default:"false"`
	SeedUsername  string `env:"IDP_SEED_USERNAME" env-default:"admin"`
	SeedPassword  string `env:"IDP_SEED_PASSWORD" env-default:"password123"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed reading configuration", "error", err)
		os.Exit(-1)
	}

	repo, seed := buildRepository(config)
	service := idp.NewLoginService(repo, idp.WithRelyingParty(config.RpID, config.RpName))
	tokens := idp.NewTokenService(config.JwtSecret, config.Issuer)

	if seed {
		seedAccount(service, config)
	}

	var handleOpts []idp.HandleOption
	if config.SecureCookies {
		handleOpts = append(handleOpts, idp.WithSecureCookies())
	}
	handle := idp.NewHandle(service, tokens, handleOpts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Mount("/", handle.Routes())

	addr := fmt.Sprintf(":%d", config.Port)
	slog.Info("Identity provider listening", "addr", addr, "storage", storageName(config))
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(-1)
	}
}

// buildRepository picks PostgreSQL when a database URL is configured and
// falls back to in-memory storage otherwise. Only in-memory storage gets a
// seeded account.
func buildRepository(config Config) (idp.AccountRepository, bool) {
	if config.DatabaseURL == "" {
		slog.Info("No database configured, using in-memory storage (data is lost on restart)")
		return idp.NewInMemAccountRepository(), true
	}

	pool, err := pgxpool.New(context.Background(), config.DatabaseURL)
	if err != nil {
		slog.Error("Failed creating dbpool", "error", err)
		os.Exit(-1)
	}
	return idp.NewPostgresAccountRepository(pool), false
}

func seedAccount(service *idp.LoginService, config Config) {
	account, err := service.CreateAccount(context.Background(), config.SeedUsername, config.SeedPassword)
	if err != nil {
		slog.Error("Failed seeding account", "error", err)
		os.Exit(-1)
	}
	secret, err := service.SetupTotp(context.Background(), account.ID)
	if err != nil {
		slog.Error("Failed enrolling one-time codes for seed account", "error", err)
		os.Exit(-1)
	}
	codes, err := service.GenerateRecoveryCodes(context.Background(), account.ID, 4)
	if err != nil {
		slog.Error("Failed enrolling recovery codes for seed account", "error", err)
		os.Exit(-1)
	}

	slog.Info("Seeded demo account")
	slog.Info("  Username: " + config.SeedUsername)
	slog.Info("  Password: " + config.SeedPassword)
	slog.Info("  TOTP secret: " + secret)
	for _, code := range codes {
		slog.Info("  Recovery code: " + code)
	}
}

func storageName(config Config) string {
	if config.DatabaseURL == "" {
		return "inmem"
	}
	return "postgres"
}
