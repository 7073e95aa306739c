package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taxilink/internal/config"
	"taxilink/internal/handlers/realtime"
	"taxilink/internal/handlers/shared"
	"taxilink/internal/middleware"
	mongorepo "taxilink/internal/repositories/mongodb"
	"taxilink/internal/services"
	"taxilink/pkg/cache"
	"taxilink/pkg/database"
	"taxilink/pkg/logger"
	"taxilink/pkg/websocket"
	"taxilink/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	mongodb, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer mongodb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(ctx, mongodb.Database); err != nil {
		cancel()
		log.WithError(err).Fatal("Failed to ensure indexes")
	}
	cancel()

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	cacheService := services.NewCacheService(redisCache)

	rideRepo := mongorepo.NewRideRequestRepository(mongodb.Database)
	taxiRepo := mongorepo.NewTaxiRepository(mongodb.Database, cacheService)
	chatRepo := mongorepo.NewChatRepository(mongodb.Database, cacheService)

	wsHandler := websocket.NewHandler(websocket.Options{
		ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout:  cfg.WebSocket.HandshakeTimeout,
		EnableCompression: cfg.WebSocket.EnableCompression,
		AllowedOrigins:    cfg.WebSocket.AllowedOrigins,
	})

	rideService := services.NewRideService(rideRepo, taxiRepo, wsHandler, log)
	taxiService := services.NewTaxiService(taxiRepo, wsHandler, log)
	chatService := services.NewChatService(chatRepo, rideRepo, taxiRepo, wsHandler, log, cfg.Security.ChatEncryptionKey)

	realtime.NewGateway(wsHandler, chatService, taxiService, log)

	rideHandler := shared.NewRideHandler(rideService, log)
	chatHandler := shared.NewChatHandler(chatService, log)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))
	router.Use(middleware.LoggingMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": cfg.App.Version,
		})
	})

	api := router.Group("/api/v1")
	routes.SetupRideRoutes(api, rideHandler, cfg.Security.JWTSecret)
	routes.SetupChatRoutes(api, chatHandler, cfg.Security.JWTSecret)
	routes.SetupWebSocketRoutes(router, wsHandler, cfg.WebSocket.Path, cfg.Security.JWTSecret)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"addr":        server.Addr,
			"environment": cfg.App.Environment,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Forced shutdown")
	}

	log.Info("Server stopped")
}
