package main

import (
	"context"

	"pledgeboard/internal/auction/application"
	authttp "pledgeboard/internal/auction/infra/http"
	"pledgeboard/internal/auction/infra/repository/postgres"
	aucws "pledgeboard/internal/auction/infra/websocket"
	"pledgeboard/internal/payments"
	"pledgeboard/internal/shared/config"
	"pledgeboard/internal/shared/db"
	"pledgeboard/internal/shared/db/migrations"
	"pledgeboard/internal/shared/httpserver"
	"pledgeboard/internal/shared/logger"
	sharedws "pledgeboard/internal/shared/websocket"

	"go.uber.org/zap"
)

func main() {
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting pledgeboard engine...")

	cfg := config.Load()

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(cfg); err != nil {
		log.Fatal("Database migration failed", zap.Error(err))
	}
	log.Info("Database migrations completed successfully.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.GetPostgresDBPool(ctx, cfg)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := payments.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	store := postgres.NewStore(pool)

	hub := sharedws.NewHub()
	broadcaster := aucws.NewHubBroadcaster(hub)

	service := application.NewAuctionService(store, broadcaster, cfg.LeaderboardSize)
	processor := payments.NewProcessor(store, payments.NewRedisDeduper(redisClient, 0))

	server := httpserver.NewServer()

	wsHandler := aucws.NewAuctionWSHandler(service, hub)
	wsHandler.Register(server.App())
	go hub.Run(ctx)
	go wsHandler.ListenForMessages(ctx)

	authttp.NewHandler(service, processor).Register(server.App())

	if err := server.Start(cfg.HTTPAddr); err != nil {
		log.Fatal("HTTP server failed", zap.Error(err))
	}
}
