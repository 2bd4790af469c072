package httpapi

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"vanban_gateway/internal/config"
	"vanban_gateway/internal/gate"
	"vanban_gateway/internal/provider"
	"vanban_gateway/internal/quota"
	"vanban_gateway/internal/storage"
	"vanban_gateway/internal/usage"
	"vanban_gateway/internal/utils"

	mw "vanban_gateway/internal/middleware"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	DB          *storage.DB
	Plans       *storage.PlanRepository
	Usage       *storage.UsageRepository
	Subscribers *storage.SubscriberRepository
	Gate        *gate.Gate
	Aggregator  *usage.Aggregator
	Cache       usage.Cache
	Gemini      *provider.Client
	Redis       *redis.Client
	Logger      *utils.Logger
}

// NewRouter creates an HTTP router with all dependencies wired up. The one
// storage handle built here is passed into every component explicitly; there
// is no process-wide singleton.
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logger := utils.NewLogger("gateway")

	planRepo := db.NewPlanRepository()
	usageRepo := db.NewUsageRepository()
	subscriberRepo := db.NewSubscriberRepository()

	// Optional reporting cache; the dashboards read straight from the ledger
	// when no Redis is configured.
	var reportCache usage.Cache = usage.NewNoopCache()
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		reportCache = usage.NewRedisCache(redisClient, cfg.UsageTTL)
		logger.Info("reporting cache enabled", "addr", cfg.Redis.Address)
	}

	evaluator := quota.NewEvaluator(planRepo, usageRepo)
	admissionGate := gate.New(evaluator, usageRepo)
	aggregator := usage.NewAggregator(planRepo, usageRepo, subscriberRepo, reportCache, logger)
	gemini := provider.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.RequestTimeout)

	deps := &Dependencies{
		DB:          db,
		Plans:       planRepo,
		Usage:       usageRepo,
		Subscribers: subscriberRepo,
		Gate:        admissionGate,
		Aggregator:  aggregator,
		Cache:       reportCache,
		Gemini:      gemini,
		Redis:       redisClient,
		Logger:      logger,
	}

	mux := NewMux(cfg, deps)
	return mux, deps, nil
}

// NewMux builds the route table over already-constructed dependencies.
// Split from NewRouter so tests can wire stub dependencies.
func NewMux(cfg *config.Config, deps *Dependencies) *http.ServeMux {
	mux := http.NewServeMux()

	aiHandler := NewAIHandler(deps.Gate, deps.Gemini, deps.Plans, deps.Cache, deps.Logger)
	usageHandler := NewUsageHandler(deps.Aggregator)
	plansHandler := NewPlansHandler(deps.Plans)
	adminHandler := NewAdminHandler(deps.Aggregator, deps.Plans, deps.Subscribers, deps.Logger)
	authHandler := NewAuthHandler(deps.Subscribers, cfg.JWTSecret, deps.Logger)

	keyAuth := mw.APIKeyMiddleware(deps.Subscribers)
	adminAuth := mw.AdminJWTMiddleware(cfg.JWTSecret, deps.Subscribers)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(r.Context()); err != nil {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("GET /api/auth/me", keyAuth(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /api/auth/regenerate-key", keyAuth(http.HandlerFunc(authHandler.RegenerateKey)))
	mux.HandleFunc("GET /api/plans", plansHandler.List)

	mux.Handle("POST /api/ai/generate", keyAuth(http.HandlerFunc(aiHandler.Generate)))
	mux.Handle("POST /api/ai/extract", keyAuth(http.HandlerFunc(aiHandler.Extract)))
	mux.Handle("POST /api/ai/read-text", keyAuth(http.HandlerFunc(aiHandler.ReadText)))

	mux.Handle("GET /api/usage/summary", keyAuth(http.HandlerFunc(usageHandler.Summary)))
	mux.Handle("GET /api/usage/daily", keyAuth(http.HandlerFunc(usageHandler.Daily)))

	mux.Handle("GET /api/admin/stats", adminAuth(http.HandlerFunc(adminHandler.Stats)))
	mux.Handle("GET /api/admin/users", adminAuth(http.HandlerFunc(adminHandler.ListUsers)))
	mux.Handle("GET /api/admin/users/{id}/usage", adminAuth(http.HandlerFunc(adminHandler.UserUsage)))
	mux.Handle("PUT /api/admin/users/{id}/active", adminAuth(http.HandlerFunc(adminHandler.SetUserActive)))
	mux.Handle("PUT /api/admin/plans", adminAuth(http.HandlerFunc(adminHandler.UpsertPlan)))
	mux.Handle("PUT /api/admin/subscribers/plan", adminAuth(http.HandlerFunc(adminHandler.UpdateSubscriberPlan)))

	return mux
}
