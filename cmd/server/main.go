package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/recipebox/internal/api"
	"github.com/wuwenbin0122/recipebox/internal/audit"
	"github.com/wuwenbin0122/recipebox/internal/auth"
	"github.com/wuwenbin0122/recipebox/internal/db"
	"github.com/wuwenbin0122/recipebox/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to build: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	gin.SetMode(cfg.GinMode)
	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		sugar.Fatalf("postgres: failed to connect: %v", err)
	}
	defer postgres.Close()

	if err := postgres.Ping(ctx); err != nil {
		sugar.Fatalf("postgres: ping failed: %v", err)
	}
	if err := postgres.EnsureSchema(ctx); err != nil {
		sugar.Fatalf("postgres: ensure schema: %v", err)
	}

	var bindings auth.Bindings = auth.NewMemoryBindings()
	if cfg.Redis.Addr != "" {
		var redisClient *redis.Client
		redisClient, err = db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			sugar.Fatalf("redis: failed to connect: %v", err)
		}
		defer redisClient.Close()
		bindings = auth.NewRedisBindings(redisClient)
		sugar.Infof("sessions: bindings stored in redis at %s", cfg.Redis.Addr)
	} else {
		sugar.Infof("sessions: REDIS_ADDR not set, bindings kept in memory")
	}

	var recorder audit.Recorder = audit.Nop{}
	if cfg.Mongo.URI != "" {
		mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			sugar.Fatalf("mongo: failed to connect: %v", err)
		}
		defer func() {
			if err := mongoStore.Close(context.Background()); err != nil {
				sugar.Warnf("mongo: close error: %v", err)
			}
		}()

		if err := mongoStore.EnsureCollections(ctx); err != nil {
			sugar.Fatalf("mongo: ensure collections: %v", err)
		}
		recorder = audit.NewMongoRecorder(mongoStore.AuthEvents)
	}

	sessions := auth.NewSessionManager(bindings, cfg.Session.MaxAge)
	handler := api.NewHandler(postgres, auth.NewHasher(cfg.BcryptCost), sessions, recorder, sugar)
	router := setupRouter(cfg, logger, handler, postgres)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infof("server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("server crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnf("graceful shutdown failed: %v", err)
	}

	sugar.Info("server stopped cleanly")
}

func setupRouter(cfg *utils.Config, logger *zap.Logger, handler *api.Handler, postgres *db.Postgres) *gin.Engine {
	router := gin.New()
	router.Use(api.RequestLogger(logger), gin.Recovery())
	router.Use(auth.CookieSessions(cfg.Session))

	router.GET("/health", api.HealthHandler(postgres))
	handler.RegisterRoutes(router)

	return router
}
