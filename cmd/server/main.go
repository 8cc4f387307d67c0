// Package main provides the API server entry point for the kleo backend.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kleo-network/kleo-backend/internal/api"
	"github.com/kleo-network/kleo-backend/internal/auth"
	"github.com/kleo-network/kleo-backend/internal/config"
	"github.com/kleo-network/kleo-backend/internal/logging"
	"github.com/kleo-network/kleo-backend/internal/service"
	"github.com/kleo-network/kleo-backend/internal/storage"
)

func main() {
	fmt.Println("Kleo Backend API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	userRepo := storage.NewUserRepository(postgres)
	historyRepo := storage.NewHistoryRepository(clickhouse)
	cacheService := storage.NewCacheService(redis, cfg.Leaderboard.CacheTTL)

	// Initialize services
	logger.Info("Initializing services...")

	detector := service.NewReferralDetector(cfg.Rewards.LandingPage, cfg.Rewards.ReferralParam)
	ledger := service.NewRewardLedger(userRepo, cfg.Rewards.ReferralBonus)
	dispatcher := service.NewDispatcher(cfg.Worker.BaseURL, cfg.Worker.Timeout)
	minter := service.NewMintTrigger(userRepo, historyRepo, cfg.Mint)
	rankService := service.NewRankService(userRepo, cacheService)
	pipeline := service.NewHistoryPipeline(userRepo, historyRepo, detector, ledger, dispatcher, minter)
	chartService := service.NewChartService(cfg.Upload.Endpoint, cfg.Upload.APIKey, cfg.Upload.Timeout)
	tokenIssuer := auth.NewTokenIssuer(cfg.Auth.Secret)

	logger.Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
		LeaderboardLimit: cfg.Leaderboard.DefaultLimit,
		FreeTierRPS:      cfg.RateLimit.FreeTierRPS,
		PremiumTierRPS:   cfg.RateLimit.PremiumTierRPS,
	}

	server := api.NewServer(serverConfig, userRepo, rankService, ledger, pipeline, chartService, tokenIssuer)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
