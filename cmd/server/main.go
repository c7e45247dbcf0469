// CloudMigrate Pro API server

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloudmigrate/internal/auth"
	"cloudmigrate/internal/billing"
	"cloudmigrate/internal/cache"
	"cloudmigrate/internal/config"
	"cloudmigrate/internal/db"
	"cloudmigrate/internal/handlers"
	"cloudmigrate/internal/logging"
	"cloudmigrate/internal/middleware"
	"cloudmigrate/internal/msp"
	"cloudmigrate/internal/plans"
	"cloudmigrate/internal/usage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logging.Init()
	defer logging.Sync()
	log := logging.L()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database startup failed", zap.Error(err))
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	overviewCache := cache.New(ctx)
	defer overviewCache.Close()

	planConfig := plans.LoadConfig()
	stripeSvc := billing.NewStripeService(cfg.StripeSecretKey, planConfig)
	if !stripeSvc.IsConfigured() {
		log.Warn("stripe is not configured, billing endpoints will fail")
	}

	handler := &handlers.Handler{
		Database:   database,
		Auth:       auth.NewService(database.DB),
		JWT:        auth.NewJWTService(cfg.JWTSecret, "cloudmigrate"),
		Cookies:    auth.DefaultCookieConfig(),
		Ledger:     usage.NewLedger(database.DB),
		Stripe:     stripeSvc,
		Reconciler: billing.NewReconciler(database.DB),
		MSP:        msp.NewService(database.DB),
		Cache:      overviewCache,
		AppBaseURL: cfg.AppBaseURL,
	}

	router := handler.NewRouter(handlers.RouterOptions{
		GeneralLimiter: middleware.NewGeneralRateLimiter(),
		AuthLimiter:    middleware.NewAuthRateLimiter(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
