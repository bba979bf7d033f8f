package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mkovalev/webstore/internal/cart"
	"github.com/mkovalev/webstore/internal/catalog"
	"github.com/mkovalev/webstore/internal/checkout"
	"github.com/mkovalev/webstore/internal/config"
	"github.com/mkovalev/webstore/internal/handlers"
	"github.com/mkovalev/webstore/internal/logging"
	"github.com/mkovalev/webstore/internal/mykafka"
	"github.com/mkovalev/webstore/internal/order"
	"github.com/mkovalev/webstore/internal/schema"
	"github.com/mkovalev/webstore/internal/service/token"
	"github.com/mkovalev/webstore/internal/session"
	httpserver "github.com/mkovalev/webstore/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	// Resolved once here; everything downstream gets a typed value instead
	// of probing the schema per request.
	caps := schema.Resolve(db)
	logger.Info("schema capabilities resolved",
		"has_processing_status", caps.HasProcessingStatus,
		"has_stock_column", caps.HasStockColumn,
	)

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	var events mykafka.Publisher = mykafka.Noop{}
	var producer *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
		events = producer
	}

	reader := &catalog.Reader{DB: db}
	carts := &cart.Store{DB: db, Catalog: reader, Caps: caps}
	tokens := &token.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}
	sessions := session.NewStore()

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), logging.Middleware(logger))

	deps := httpserver.Deps{
		DB:              db,
		Sessions:        sessions,
		Tokens:          tokens,
		AuthHandler:     &handlers.AuthHandler{DB: db, Tokens: tokens, Carts: carts, Sessions: sessions, Events: events},
		ProductHandler:  &handlers.ProductHandler{DB: db, Catalog: reader, Events: events},
		CartHandler:     &handlers.CartHandler{Store: carts, Catalog: reader, Events: events},
		CheckoutHandler: &handlers.CheckoutHandler{Service: &checkout.Service{DB: db}, Store: carts, Events: events},
		OrderHandler:    &handlers.OrderHandler{DB: db, Machine: &order.Machine{DB: db, Caps: caps}, Events: events},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
