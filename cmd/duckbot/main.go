package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	duckbot "github.com/dresos/duckbot"
	"github.com/dresos/duckbot/internal/auditlog"
	"github.com/dresos/duckbot/internal/auth"
	"github.com/dresos/duckbot/internal/blacklist"
	"github.com/dresos/duckbot/internal/logging"
	"github.com/dresos/duckbot/internal/version"
	"github.com/dresos/duckbot/internal/webclient"
	"github.com/dresos/duckbot/internal/welcome"
	"github.com/dresos/duckbot/moderation"
	"github.com/dresos/duckbot/search"

	// Register built-in guard filters so they can be loaded from config.
	_ "github.com/dresos/duckbot/internal/guards/ipquery"
)

func main() {
	cfg := loadConfig()

	store, err := newBlacklistStore(cfg.Blacklist)
	if err != nil {
		log.Fatalf("Failed to open blacklist store: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()
	log.Printf("Blacklist store ready: backend=%s", backendName(cfg.Blacklist))

	chain, err := duckbot.LoadFilters(*cfg)
	if err != nil {
		log.Fatalf("Failed to load guard filters: %v", err)
	}
	log.Printf("Guard filters loaded: %d filter(s)", chain.Len())

	welcomePath := cfg.WelcomeStorePath
	if welcomePath == "" {
		welcomePath = "welcome_store.json"
	}
	welcomeStore, err := welcome.NewStore(welcomePath)
	if err != nil {
		log.Fatalf("Failed to open welcome store: %v", err)
	}

	client := webclient.New(retryPolicy(cfg.Search), searchTimeout(cfg.Search))
	backend := search.NewDuckDuckGo(client, cfg.Search.Endpoint)
	searchSvc := search.NewService(chain, backend)

	audit, err := newAuditWriter(cfg.Audit)
	if err != nil {
		log.Fatalf("Failed to open audit log: %v", err)
	}
	if audit != nil {
		defer func() {
			_ = audit.Close()
		}()
	}

	gate := auth.NewGate(store, newRecorder(audit))
	executor := moderation.NewExecutor(gate, cfg.WarnThreshold)
	bot := duckbot.New(*cfg, store, gate, executor, searchSvc, welcomeStore)

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		log.Fatal("BOT_TOKEN not set")
	}

	var corsOrigins []string
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsOrigins = splitAndTrim(origins)
	}

	r := newRouter(bot, store, audit, token, corsOrigins)

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down gracefully…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("DuckBot %s listening on %s", version.Short(), addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Fatalf("Server error: %v", err) //nolint:gocritic
	}
	log.Println("Server stopped.")
}

// loadConfig reads DUCKBOT_CONFIG when set and falls back to env vars for
// the required fields.
func loadConfig() *duckbot.Config {
	var cfg *duckbot.Config
	if cfgPath := os.Getenv("DUCKBOT_CONFIG"); cfgPath != "" {
		loaded, err := duckbot.LoadConfig(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	} else {
		cfg = &duckbot.Config{}
	}

	if raw := os.Getenv("OWNER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Fatalf("Invalid OWNER_ID: %v", err)
		}
		cfg.OwnerID = id
	}

	if err := duckbot.ValidateConfig(*cfg); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func newBlacklistStore(cfg duckbot.BlacklistConfig) (blacklist.Store, error) {
	switch cfg.Backend {
	case duckbot.BackendSQLite:
		return blacklist.NewSQLiteStore(cfg.DSN)
	case duckbot.BackendPostgres:
		return blacklist.NewPostgresStore(cfg.DSN)
	case duckbot.BackendRedis:
		return blacklist.NewRedisStore(cfg.DSN)
	default:
		return blacklist.NewMemory(), nil
	}
}

func newAuditWriter(cfg duckbot.AuditConfig) (*auditlog.SQLWriter, error) {
	switch cfg.Backend {
	case duckbot.AuditSQLite:
		return auditlog.NewSQLiteWriter(cfg.DSN)
	case duckbot.AuditPostgres:
		return auditlog.NewPostgresWriter(cfg.DSN)
	default:
		return nil, nil
	}
}

// newRecorder prefers the persistent audit log and falls back to the
// structured log.
func newRecorder(audit *auditlog.SQLWriter) auth.Recorder {
	if audit != nil {
		return audit
	}
	return auth.LogRecorder{}
}

func backendName(cfg duckbot.BlacklistConfig) string {
	if cfg.Backend == "" {
		return string(duckbot.BackendMemory)
	}
	return string(cfg.Backend)
}

func retryPolicy(cfg duckbot.SearchConfig) webclient.RetryPolicy {
	policy := webclient.DefaultRetryPolicy()
	if cfg.Retry.Attempts > 0 {
		policy.MaxAttempts = cfg.Retry.Attempts
	}
	if cfg.Retry.BackoffBase != "" {
		if d, err := time.ParseDuration(cfg.Retry.BackoffBase); err == nil {
			policy.BaseDelay = d
		}
	}
	return policy
}

func searchTimeout(cfg duckbot.SearchConfig) time.Duration {
	if cfg.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// newRouter builds the HTTP router: health and metrics endpoints, the
// update webhook, and the token-protected admin API. The audit route is only
// mounted when a persistent audit log is configured.
func newRouter(bot *duckbot.Bot, store blacklist.Store, audit *auditlog.SQLWriter, token string, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware)
	r.Use(corsMiddleware(corsOrigins...))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(token))
		r.Post("/v1/updates", handleUpdate(bot))
		r.Post("/v1/joins", handleJoin(bot))
		r.Route("/admin/blacklist", func(r chi.Router) {
			r.Get("/", handleBlacklistList(store))
			r.Post("/{id}", handleBlacklistAdd(store))
			r.Delete("/{id}", handleBlacklistRemove(store))
		})
		if audit != nil {
			r.Get("/admin/audit", handleAuditRecent(audit))
		}
	})

	return r
}
