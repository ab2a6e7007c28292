package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// CLI is the questplay client configuration.
type CLI struct {
	APIBase   string     `env:"QUEST_API" envDefault:"http://localhost:8080"`
	TokenFile string     `env:"QUEST_TOKEN_FILE" envDefault:".questplay-tokens.json"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"WARN"`
	// Fallback position for location tasks when the terminal has no
	// way to read a real one; unset means prompt for coordinates.
	Lat *float64 `env:"QUEST_LAT"`
	Lng *float64 `env:"QUEST_LNG"`
}

func LoadCLI() (*CLI, error) {
	cfg, err := env.ParseAs[CLI]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

// DevServer configures the local platform stand-in.
type DevServer struct {
	HTTPAddr  string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath    string     `env:"DB_PATH" envDefault:"data/devserver.db"`
	JWTSecret string     `env:"JWT_SECRET" envDefault:"dev-only-secret"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

func LoadDevServer() (*DevServer, error) {
	cfg, err := env.ParseAs[DevServer]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
