package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/payment"
	"app/internal/provider"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New builds the full HTTP handler and returns the connection pool so the
// caller owns its lifetime.
func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initialized")

	// In a development environment, ensure SSL is disabled for local
	// testing. In production the connection string carries its own SSL
	// settings.
	dsn := cfg.DBConnectionString
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open DB connection pool")
		return nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	validate := validator.New(validator.WithRequiredStructEnabled())

	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, time.Duration(cfg.ProviderTimeoutSec)*time.Second)
	gateway := payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)

	userRepo := repository.NewUserRepo(pool)
	capRepo := repository.NewCapabilityRepo(pool)
	planRepo := repository.NewPlanRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)
	auditRepo := repository.NewAuditRepo(pool)

	entitlementSvc := service.NewEntitlementService(userRepo, capRepo, planRepo, logger)
	lifecycleSvc := service.NewLifecycleService(userRepo, logger)
	verificationSvc := service.NewVerificationService(entitlementSvc, usageRepo, auditRepo, providerClient, logger)
	catalogSvc := service.NewCatalogService(capRepo, planRepo, logger)
	usageSvc := service.NewUsageService(userRepo, usageRepo, auditRepo, logger)
	paymentSvc := service.NewPaymentService(paymentRepo, planRepo, userRepo, lifecycleSvc, gateway, logger)

	verificationHandler := handler.NewVerificationHandler(verificationSvc, validate, logger)
	catalogHandler := handler.NewCatalogHandler(catalogSvc, logger)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, validate, logger)
	usageHandler := handler.NewUsageHandler(usageSvc, logger)
	adminHandler := handler.NewAdminHandler(catalogSvc, lifecycleSvc, entitlementSvc, validate, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	apiV1 := chi.NewRouter()

	// Public catalog
	catalogHandler.RegisterRoutes(apiV1)

	// Authenticated user surface
	apiV1.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		verificationHandler.RegisterRoutes(r)
		paymentHandler.RegisterRoutes(r)
		usageHandler.RegisterRoutes(r)
	})

	// Admin surface
	apiV1.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.AdminOnly)
		adminHandler.RegisterRoutes(r)
	})

	root := chi.NewRouter()
	root.Mount("/v1", apiV1)
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(c.Handler(root)), pool, nil
}
