// Package config loads environment-based configuration for the listora CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration.
type Config struct {
	// APIBaseURL is the platform API the CLI authenticates against.
	APIBaseURL string `env:"LISTORA_API_URL" envDefault:"https://api.listora.dev"`

	// CredentialsFile is the path of the on-disk credential store. Defaults
	// to ~/.listora/credentials.db.
	CredentialsFile string `env:"LISTORA_CREDENTIALS_FILE"`

	// StoreSecret, when set, encrypts the credential store at rest.
	StoreSecret string `env:"LISTORA_STORE_SECRET"`

	// Environment controls log verbosity/format defaults.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads configuration from the environment, first loading a .env file
// if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.CredentialsFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.CredentialsFile = filepath.Join(home, ".listora", "credentials.db")
	}

	return cfg, nil
}
