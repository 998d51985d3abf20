package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/purr4furr/purr-backend/internal/app"
	"github.com/purr4furr/purr-backend/internal/auth"
	"github.com/purr4furr/purr-backend/internal/cache"
	"github.com/purr4furr/purr-backend/internal/config"
	"github.com/purr4furr/purr-backend/internal/db"
	"github.com/purr4furr/purr-backend/internal/logger"
	"github.com/purr4furr/purr-backend/internal/repository"
	"github.com/purr4furr/purr-backend/internal/server"
	"github.com/purr4furr/purr-backend/internal/service/dating"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Probe optional schema surfaces once; services degrade around gaps
	caps := db.Probe(database, log)

	appCtx := app.New(database, redisCache, log)
	datingSvc := dating.NewService(appCtx, caps)

	tokens := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	authSvc := auth.NewService(repository.NewProfileRepository(database), tokens, log)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	srv := server.New(datingSvc, authSvc, tokens, log, server.Options{
		FeedLimit: cfg.Dating.FeedLimit,
	})

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting HTTP server", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}
