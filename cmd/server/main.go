package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/cache"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/config"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/epayco"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/handler"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/payu"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/repository"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/service"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/logger"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/metrics"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.LoadConfig()
	appLogger := logger.NewLogger("payment-service")
	appMetrics := metrics.NewMetrics("payment_service")

	// Database connection
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	appLogger.Info("Successfully connected to database")

	// Initialize repositories
	paymentRepo := repository.NewPaymentRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Gateway clients
	payuProfile := payu.Profile{
		APIURL:     cfg.PayU.APIURL,
		APIKey:     cfg.PayU.APIKey,
		APILogin:   cfg.PayU.APILogin,
		MerchantID: cfg.PayU.MerchantID,
		AccountID:  cfg.PayU.AccountID,
		Test:       cfg.PayU.Test,
	}
	payuClient := payu.NewClient(payuProfile, cfg.PayU.ConnectTimeout, cfg.PayU.ReadTimeout)
	requestBuilder := payu.NewRequestBuilder(payuProfile)
	verifier := epayco.NewVerifier(cfg.Epayco.PrivateKey)

	// Payment event publisher (optional broker)
	var events service.EventPublisher = &service.LogPublisher{Logger: appLogger}
	if cfg.Rabbit.URL != "" {
		publisher, err := service.NewRabbitPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			appLogger.WithError(err).Warn("RabbitMQ unavailable, falling back to log publisher")
		} else {
			defer publisher.Close()
			events = publisher
		}
	}

	// Payment status cache (optional)
	var statusCache cache.StatusCache = cache.NoopStatusCache{}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		statusCache = cache.NewRedisStatusCache(redisClient, cfg.Redis.TTL, appLogger)
	}

	// Initialize services
	reconciler := service.NewReconciler(paymentRepo, orderRepo, verifier, payuClient, events, statusCache, appMetrics, appLogger)
	paymentService := service.NewPaymentService(paymentRepo, requestBuilder, payuClient, reconciler, statusCache, appMetrics, appLogger)

	// HTTP routes
	mux := http.NewServeMux()
	paymentHandler := handler.NewPaymentHandler(paymentService, cfg.Server.FrontendStatusURL, appLogger)
	paymentHandler.Register(mux)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	chain := logger.HTTPMiddleware(appLogger)(appMetrics.HTTPMiddleware(handler.AuthMiddleware(mux)))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      chain,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		appLogger.Infof("Payment service listening on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Forced shutdown")
	}
	appLogger.Info("Server stopped")
}
