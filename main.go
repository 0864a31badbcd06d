package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cartela-live/backend/config"
	"github.com/cartela-live/backend/controllers"
	"github.com/cartela-live/backend/game"
	"github.com/cartela-live/backend/monitoring"
	"github.com/cartela-live/backend/routes"
	"github.com/cartela-live/backend/services"
	"github.com/cartela-live/backend/storage"
	"github.com/cartela-live/backend/utils/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.Env).Sugar()
	defer log.Sync()

	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	store := storage.NewStore(db)
	ledger := storage.NewLedger(db)
	registry := game.NewRegistry(store, ledger, log)
	hub := services.NewHub(registry, store, log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.AllowOrigin},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))

	api := controllers.NewAPI(registry, hub, store, log)
	routes.SetupRoutes(r, api)

	r.GET("/ws", services.WebSocketHandler(hub, store, log))
	r.GET("/metrics", monitoring.Handler())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
	hub.Shutdown()
	registry.Shutdown()
}
