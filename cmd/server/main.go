package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/yukikurage/habit-tracker-api/internal/cache"
	"github.com/yukikurage/habit-tracker-api/internal/config"
	"github.com/yukikurage/habit-tracker-api/internal/database"
	"github.com/yukikurage/habit-tracker-api/internal/handlers"
	"github.com/yukikurage/habit-tracker-api/internal/logger"
	"github.com/yukikurage/habit-tracker-api/internal/metrics"
	"github.com/yukikurage/habit-tracker-api/internal/middleware"
	"github.com/yukikurage/habit-tracker-api/internal/repository"
	"github.com/yukikurage/habit-tracker-api/internal/services"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
	"github.com/yukikurage/habit-tracker-api/internal/worker/dayroll"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.Connect(cfg, zlog)
	if err != nil {
		zlog.Fatal("database_connect_failed", zap.Error(err))
	}
	defer database.Close(db)

	// Run migrations
	if err := database.Migrate(db, zlog); err != nil {
		zlog.Fatal("database_migration_failed", zap.Error(err))
	}

	// Streak cache
	var streakCache cache.Cache = cache.Noop{}
	if cfg.CacheEnabled {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr(), cfg.RedisPassword, zlog)
		if err != nil {
			zlog.Warn("cache_disabled", zap.Error(err))
		} else {
			streakCache = rc
		}
	}
	defer streakCache.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	store, err := newSessionStore(cfg)
	if err != nil {
		zlog.Fatal("session_store_failed", zap.Error(err))
	}

	// Services
	clock := utils.Clock(utils.SystemClock)
	repos := repository.NewRepositories(db)
	ledger := services.NewLedgerService(repos, streakCache, collector, clock, zlog)
	ledger.SetStreakTTL(cfg.CacheTTL)

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  rate.Limit(cfg.RateLimitRPS),
		Burst: cfg.RateLimitBurst,
	}, zlog)
	defer limiter.Stop()

	router, err := handlers.NewRouter(handlers.RouterConfig{
		Log:            zlog,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		SessionStore:   store,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimiter:    limiter,
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		Clock:  clock,
		Auth:   services.NewAuthService(repos.Users, zlog),
		Users:  services.NewUserService(repos.Users, zlog),
		Habits: services.NewHabitService(repos, streakCache, clock, zlog),
		Ledger: ledger,
		Sync:   services.NewSyncService(repos, repository.NewTxRunner(db), streakCache, collector, clock, zlog),
	})
	if err != nil {
		zlog.Fatal("router_setup_failed", zap.Error(err))
	}

	// Daily initialization sweep
	go dayroll.NewRoller(ledger, zlog).Start(ctx, cfg.DayRollInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server_starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server_shutdown_failed", zap.Error(err))
	}
}

// newSessionStore builds the session backend selected by SESSION_STORE.
func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		rs, err := redisStore.NewStore(
			10,                        // Redis pool size
			"tcp",                     // network type
			cfg.RedisAddr(),           // Redis address from config
			"",                        // username (empty for default user)
			cfg.RedisPassword,         // password (empty = no password)
			[]byte(cfg.SessionSecret), // authentication key
		)
		if err != nil {
			return nil, err
		}
		store = rs
	default:
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	}

	// Configure session options based on environment
	isProduction := cfg.GinMode == gin.ReleaseMode
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction, // true in production (HTTPS), false in development
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}
