package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds process configuration sourced from the environment.
type Config struct {
	Env         string `validate:"required,oneof=development local staging production"`
	Port        string `validate:"required,numeric"`
	DatabaseURL string `validate:"required"`
	AllowOrigin string
}

// Load reads .env (when present), applies defaults and validates the result.
func Load() (*Config, error) {
	// A missing .env is fine, plain environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getenv("APP_ENV", "development"),
		Port:        getenv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AllowOrigin: getenv("ALLOW_ORIGIN", "*"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
