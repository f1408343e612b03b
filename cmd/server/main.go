package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/papegu/senegal-livres/internal/app"
	"github.com/papegu/senegal-livres/internal/config"
	"github.com/papegu/senegal-livres/internal/database"
	"github.com/papegu/senegal-livres/internal/handler"
	"github.com/papegu/senegal-livres/internal/middleware"
	"github.com/papegu/senegal-livres/internal/router"
)

func main() {
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.Build(cfg, db)
	if a.Consumer != nil {
		go func() {
			if err := a.Consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("fulfillment-consumer: stopped: %v", err)
			}
		}()
	}
	// Re-drive anything a previous process validated but never fulfilled.
	go func() {
		if _, err := a.Sweeper.Sweep(ctx, 0); err != nil {
			log.Printf("sweep: %v", err)
		}
	}()

	// Redis is optional: without it the limiter passes everything through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis: unavailable, rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	h := router.Handlers{
		Health:       handler.Health(db),
		Checkout:     &handler.CheckoutHandler{Checkout: a.Checkout},
		Webhook:      &handler.WebhookHandler{Reconciler: a.Reconciler},
		Transactions: &handler.TransactionHandler{Transactions: a.Transactions},
		Purchases:    &handler.PurchaseHandler{Purchases: a.Purchases},
		Cart:         &handler.CartHandler{Cart: a.Cart},
		Admin:        &handler.AdminHandler{Reconciler: a.Reconciler},
	}
	if sb, ok := a.Sandbox(); ok {
		h.Sandbox = &handler.SandboxHandler{
			Transactions:  a.Transactions,
			Sandbox:       sb,
			Reconciler:    a.Reconciler,
			Money:         a.Money,
			PublicBaseURL: cfg.PublicBaseURL,
		}
		log.Printf("sandbox payments enabled")
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	router.RegisterRoutes(e, h, cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, methods=%v)", addr, cfg.Env, a.Providers.Methods())
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	a.Drain()
}
