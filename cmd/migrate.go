package main

import (
	"github.com/cartela-live/backend/config"
	"github.com/cartela-live/backend/utils/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("config: %v", err)
	}
	if _, err := config.SetupDatabase(cfg); err != nil {
		logger.Log.Fatalf("migration failed: %v", err)
	}
	logger.Log.Info("database migration completed")
}
