package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// clientConfig is read from STOREFRONT_* variables, after an optional .env.
type clientConfig struct {
	ServerURL   string `envconfig:"SERVER_URL"`
	AdminPIN    string `envconfig:"ADMIN_PIN"`
	AdminHeader string `envconfig:"ADMIN_HEADER" default:"x-admin-pin"`
	CacheDir    string `envconfig:"CACHE_DIR" default:".storefront"`
	Debug       bool   `envconfig:"DEBUG"`
}

func loadClientConfig() (*clientConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	var cfg clientConfig
	if err := envconfig.Process("STOREFRONT", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
