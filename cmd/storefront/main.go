package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mealkart/storefront/internal/checkout"
	"github.com/mealkart/storefront/internal/coupon"
	"github.com/mealkart/storefront/internal/gateway"
	"github.com/mealkart/storefront/internal/payment"
	"github.com/mealkart/storefront/internal/rest"
	"github.com/mealkart/storefront/internal/store"
)

type Config struct {
	HTTPPort        string
	BackendBaseURL  string
	RedisAddr       string
	RequestTimeout  time.Duration
	CheckoutTimeout time.Duration
	CouponRefresh   time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		BackendBaseURL:  getEnv("BACKEND_BASE_URL", "http://localhost:9090"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT_SECONDS", 15),
		CheckoutTimeout: getEnvDuration("CHECKOUT_TIMEOUT_SECONDS", 300),
		CouponRefresh:   getEnvDuration("COUPON_REFRESH_SECONDS", 300),
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}

func main() {
	cfg := loadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	backend := gateway.NewClient(cfg.BackendBaseURL, logger)

	cartStore := store.New(backend, logger)
	couponEngine := coupon.NewEngine(backend, coupon.NewRedisCache(redisClient), logger)

	callbackWidget := payment.NewCallbackWidget()
	paymentAdapter := payment.NewAdapter(callbackWidget, logger)
	orchestrator := checkout.New(cartStore, backend, paymentAdapter, logger)

	// Warm the local cart before taking traffic; an unauthenticated
	// session simply starts empty.
	warmCtx, warmCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := cartStore.Refresh(warmCtx, nil); err != nil {
		logger.Warn("initial cart refresh failed", zap.Error(err))
	}
	warmCancel()

	refresherCtx, stopRefresher := context.WithCancel(context.Background())
	defer stopRefresher()
	go coupon.NewRefresher(couponEngine, cfg.CouponRefresh, logger).Run(refresherCtx)

	router := rest.NewRouter(
		rest.NewCartHandler(cartStore, logger, cfg.RequestTimeout),
		rest.NewCouponHandler(couponEngine, cartStore, logger, cfg.RequestTimeout),
		rest.NewCheckoutHandler(orchestrator, callbackWidget, logger, cfg.CheckoutTimeout),
	)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// Write timeout must outlive the checkout route, which blocks on
		// the buyer finishing the payment modal.
		WriteTimeout: cfg.CheckoutTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("storefront starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
