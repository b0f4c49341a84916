package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/sau-dev/something-about-us/pkg/authsession"
	"github.com/sau-dev/something-about-us/pkg/database"
	"github.com/sau-dev/something-about-us/pkg/idp"
	"github.com/sau-dev/something-about-us/pkg/jwks"
	jwksapi "github.com/sau-dev/something-about-us/pkg/jwks/api"
	"github.com/sau-dev/something-about-us/pkg/loginflow"
	loginflowapi "github.com/sau-dev/something-about-us/pkg/loginflow/api"
	"github.com/sau-dev/something-about-us/pkg/oauth"
	"github.com/sau-dev/something-about-us/pkg/user"
	"github.com/sau-dev/something-about-us/pkg/wellknown"
)

type ServerConfig struct {
	Host            string `env:"SERVER_HOST" env-default:"localhost"`
	Port            uint16 `env:"SERVER_PORT" env-default:"4000"`
	ShutdownTimeout string `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func (s ServerConfig) addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DbConfig struct {
	Host     string `env:"SAU_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"SAU_PG_PORT" env-default:"5432"`
	Database string `env:"SAU_PG_DATABASE" env-default:"sau_db"`
	User     string `env:"SAU_PG_USER" env-default:"sau"`
	Password string `env:"SAU_PG_PASSWORD" env-default:"pwd"`
}

func (d DbConfig) toDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Database)
}

type MemcachedConfig struct {
	Servers string `env:"MEMCACHED_SERVERS" env-default:"localhost:11211"`
}

type JwtConfig struct {
	Issuer         string `env:"JWT_ISSUER" env-default:"something-about-us"`
	Audience       string `env:"JWT_AUDIENCE" env-default:"sau-api"`
	Expiry         string `env:"JWT_EXPIRY" env-default:"1h"`
	KeysDir        string `env:"JWT_KEYS_DIR" env-default:"keys"`
	Kids           string `env:"JWT_KIDS"`
	CurrentKid     string `env:"JWT_CURRENT_KID"`
	SessionExpiry  string `env:"AUTH_SESSION_EXPIRY" env-default:"10m"`
	CookieSecure   bool   `env:"COOKIE_SECURE" env-default:"true"`
	CookieHttpOnly bool   `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSameSite string `env:"COOKIE_SAME_SITE" env-default:"lax"`
}

type GithubConfig struct {
	ClientID     string `env:"GITHUB_CLIENT_ID"`
	ClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	AuthURL      string `env:"GITHUB_AUTH_URL" env-default:"https://github.com/login/oauth/authorize"`
	TokenURL     string `env:"GITHUB_TOKEN_URL" env-default:"https://github.com/login/oauth/access_token"`
	ResourceURL  string `env:"GITHUB_RESOURCE_URL" env-default:"https://api.github.com"`
	RedirectURL  string `env:"GITHUB_REDIRECT_URL" env-default:"http://localhost:4000/api/v1/oauth/github/callback"`
	Timeout      string `env:"GITHUB_HTTP_TIMEOUT" env-default:"30s"`
}

type Config struct {
	ServerConfig    ServerConfig
	DbConfig        DbConfig
	MemcachedConfig MemcachedConfig
	JwtConfig       JwtConfig
	GithubConfig    GithubConfig
}

func parseDuration(name, value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Error("Invalid duration", "name", name, "value", value, "error", err)
		os.Exit(-1)
	}
	return d
}

// parseKids splits the comma-separated kid list and always includes the
// current kid, so a minimal deployment only sets JWT_CURRENT_KID.
func parseKids(cfg JwtConfig) (uuid.UUID, []uuid.UUID, error) {
	currentKid, err := uuid.Parse(cfg.CurrentKid)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid JWT_CURRENT_KID %q: %w", cfg.CurrentKid, err)
	}

	kids := []uuid.UUID{currentKid}
	seen := map[uuid.UUID]bool{currentKid: true}
	for _, raw := range strings.Split(cfg.Kids, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		kid, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("invalid kid %q in JWT_KIDS: %w", raw, err)
		}
		if !seen[kid] {
			kids = append(kids, kid)
			seen[kid] = true
		}
	}
	return currentKid, kids, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Error loading .env file")
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed reading config", "error", err)
		os.Exit(-1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbURL := config.DbConfig.toDatabaseURL()
	if err := database.RunMigrations(dbURL); err != nil {
		slog.Error("Failed running migrations", "db", config.DbConfig.Database, "error", err)
		os.Exit(-1)
	}
	pool, err := database.NewPool(ctx, dbURL)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", config.DbConfig.Database,
			"host", config.DbConfig.Host, "port", config.DbConfig.Port, "error", err)
		os.Exit(-1)
	}
	defer pool.Close()

	// Session store
	sessions := authsession.NewMemcacheSessionRepository(
		strings.Split(config.MemcachedConfig.Servers, ",")...)
	if err := sessions.Ping(); err != nil {
		slog.Error("Failed reaching memcached", "servers", config.MemcachedConfig.Servers, "error", err)
		os.Exit(-1)
	}

	// Signing keys
	currentKid, kids, err := parseKids(config.JwtConfig)
	if err != nil {
		slog.Error("Invalid signing key configuration", "error", err)
		os.Exit(-1)
	}
	keyRepository, err := jwks.NewFileKeyRepository(config.JwtConfig.KeysDir)
	if err != nil {
		slog.Error("Failed opening key directory", "dir", config.JwtConfig.KeysDir, "error", err)
		os.Exit(-1)
	}
	keys, err := keyRepository.LoadOrCreate(kids)
	if err != nil {
		slog.Error("Failed loading signing keys", "error", err)
		os.Exit(-1)
	}
	issuer, err := jwks.NewIssuer(config.JwtConfig.Issuer, config.JwtConfig.Audience,
		parseDuration("JWT_EXPIRY", config.JwtConfig.Expiry), keys)
	if err != nil {
		slog.Error("Failed creating token issuer", "error", err)
		os.Exit(-1)
	}
	jwtService := jwks.NewService(issuer, currentKid)

	// GitHub adapter
	githubProvider, err := oauth.NewGithubProvider(oauth.GithubConfig{
		ClientID:     config.GithubConfig.ClientID,
		ClientSecret: config.GithubConfig.ClientSecret,
		AuthURL:      config.GithubConfig.AuthURL,
		TokenURL:     config.GithubConfig.TokenURL,
		ResourceURL:  config.GithubConfig.ResourceURL,
		RedirectURL:  config.GithubConfig.RedirectURL,
		Timeout:      parseDuration("GITHUB_HTTP_TIMEOUT", config.GithubConfig.Timeout),
	})
	if err != nil {
		slog.Error("Failed creating github provider", "error", err)
		os.Exit(-1)
	}

	sessionTTL := parseDuration("AUTH_SESSION_EXPIRY", config.JwtConfig.SessionExpiry)
	flowService := loginflow.NewService(
		oauth.NewService(map[idp.Idp]oauth.Provider{idp.Github: githubProvider}),
		sessions,
		user.NewService(user.NewPostgresRepository(pool)),
		jwtService,
		sessionTTL,
	)
	cookieManager := authsession.NewCookieManager(authsession.CookiePolicy{
		TTL:      sessionTTL,
		Secure:   config.JwtConfig.CookieSecure,
		HttpOnly: config.JwtConfig.CookieHttpOnly,
		SameSite: config.JwtConfig.CookieSameSite,
	})

	wellknownHandler, err := wellknown.NewHandler()
	if err != nil {
		slog.Error("Failed loading openapi document", "error", err)
		os.Exit(-1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/api-doc/openapi.json", wellknownHandler.OpenAPI)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/heartbeat", wellknownHandler.Heartbeat)
		r.Mount("/oauth", loginflowapi.NewHandle(flowService, cookieManager).Routes())
		r.Mount("/jwks", jwksapi.NewHandle(jwtService).Routes())
	})

	server := &http.Server{
		Addr:    config.ServerConfig.addr(),
		Handler: r,
	}

	go func() {
		slog.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		parseDuration("SERVER_SHUTDOWN_TIMEOUT", config.ServerConfig.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
		os.Exit(-1)
	}
}
