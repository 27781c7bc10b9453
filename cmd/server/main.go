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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/marcelprats/TFM/internal/config"
	"github.com/marcelprats/TFM/internal/es"
	"github.com/marcelprats/TFM/internal/handlers"
	carthandler "github.com/marcelprats/TFM/internal/handlers/cart"
	"github.com/marcelprats/TFM/internal/logging"
	"github.com/marcelprats/TFM/internal/middleware"
	"github.com/marcelprats/TFM/internal/mykafka"
	"github.com/marcelprats/TFM/internal/owner"
	cartsvc "github.com/marcelprats/TFM/internal/service/cart"
	"github.com/marcelprats/TFM/internal/service/checkout"
	"github.com/marcelprats/TFM/internal/service/orders"
	httpserver "github.com/marcelprats/TFM/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)
	resolver := owner.DefaultResolver()

	var producer *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	} else {
		logger.Warn("KAFKA_ADDRESS not set, event publishing disabled")
	}

	var searchHandler *handlers.SearchHandler
	if configuration.ES_URL != "" {
		client, err := es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
		searchHandler = &handlers.SearchHandler{ES: client, Index: "productes"}
	} else {
		logger.Warn("ES_URL not set, search disabled")
		searchHandler = &handlers.SearchHandler{Index: "productes"}
	}

	e := echo.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID(), middleware.RequestLogger(logger))

	deps := httpserver.Deps{
		DB: db,
		AuthHandler: &handlers.AuthHandler{
			DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret,
			Producer: producer, Resolver: resolver,
		},
		ProductHandler: &handlers.ProductHandler{
			DB: db, Producer: producer, ES: searchHandler.ES, ESIndex: "productes",
			JWTSecret: jwtSecret, Resolver: resolver,
		},
		BotigaHandler: &handlers.BotigaHandler{DB: db, JWTSecret: jwtSecret, Resolver: resolver},
		OrderHandler: &handlers.OrderHandler{
			Svc: &orders.Service{DB: db}, Producer: producer,
			JWTSecret: jwtSecret, Resolver: resolver,
		},
		SearchHandler: searchHandler,
		CartHandler: &carthandler.CartHandler{
			Svc: &cartsvc.Service{DB: db}, Engine: &checkout.Engine{DB: db},
			Producer: producer, JWTSecret: jwtSecret, Resolver: resolver,
		},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
