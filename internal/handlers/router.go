package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/habit-tracker-api/internal/constants"
	"github.com/yukikurage/habit-tracker-api/internal/metrics"
	"github.com/yukikurage/habit-tracker-api/internal/middleware"
	"github.com/yukikurage/habit-tracker-api/internal/services"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
	"go.uber.org/zap"
)

// RouterConfig carries everything the HTTP layer is built from.
type RouterConfig struct {
	Log            *zap.Logger
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	SessionStore   sessions.Store
	CORSOrigins    []string
	RateLimiter    *middleware.RateLimiter
	Ping           Pinger
	Clock          utils.Clock

	Auth   *services.AuthService
	Users  *services.UserService
	Habits *services.HabitService
	Ledger *services.LedgerService
	Sync   *services.SyncService
}

// NewRouter wires middleware and routes onto a new gin engine.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = utils.SystemClock
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLogger(cfg.Log, cfg.Metrics),
		middleware.Recovery(cfg.Log),
	)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", constants.HeaderRequestID},
			ExposeHeaders:    []string{constants.HeaderRequestID, "X-Total-Count"},
			AllowCredentials: true,
		}))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}
	r.Use(sessions.Sessions(constants.SessionCookieName, cfg.SessionStore))

	userHandler := NewUserHandler(cfg.Auth, cfg.Users, cfg.Log)
	habitHandler := NewHabitHandler(cfg.Habits, cfg.Log)
	ledgerHandler := NewLedgerHandler(cfg.Ledger, cfg.Log)
	syncHandler := NewSyncHandler(cfg.Sync, cfg.Log)
	healthHandler := NewHealthHandler(cfg.Ping, cfg.Clock, cfg.Log)

	r.GET("/health", healthHandler.Health)
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	// Users and auth
	r.GET("/users", userHandler.ListUsers)
	r.POST("/users", userHandler.Signup)
	r.PUT("/users/:id", userHandler.UpdateUser)
	r.POST("/login", userHandler.Login)
	r.POST("/logout", userHandler.Logout)
	r.GET("/me", middleware.RequireAuth(), userHandler.GetCurrentUser)

	// Habits
	r.GET("/habits", habitHandler.ListHabits)
	r.POST("/habits", habitHandler.CreateHabit)
	r.GET("/habits/completed", ledgerHandler.CompletedHabits)
	r.GET("/habits/:id", habitHandler.GetHabit)
	r.PUT("/habits/:id", habitHandler.UpdateHabit)
	r.DELETE("/habits/:id", habitHandler.DeleteHabit)
	r.POST("/habits/:id/complete", ledgerHandler.Complete)
	r.POST("/habits/:id/uncomplete", ledgerHandler.Uncomplete)

	// Completion ledger
	r.GET("/habits-for-day", ledgerHandler.HabitsForDay)
	r.POST("/initialize-habit-completions", ledgerHandler.InitializeCompletions)
	r.GET("/habits-completions/most-recent-date", ledgerHandler.MostRecentDate)
	r.GET("/habit-streaks", ledgerHandler.HabitStreaks)
	r.GET("/completion-percentage", ledgerHandler.CompletionPercentage)
	r.GET("/completion-percentages", ledgerHandler.CompletionPercentages)

	// Replica sync
	syncGroup := r.Group("/sync")
	syncGroup.Use(middleware.RequireAuth())
	{
		syncGroup.GET("/snapshot", syncHandler.Snapshot)
		syncGroup.POST("/push", syncHandler.Push)
	}

	return r, nil
}
