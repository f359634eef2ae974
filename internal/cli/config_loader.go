package cli

import (
	"errors"
	"os"

	"mailbridge/internal/config"
	"mailbridge/internal/secrets"
)

const (
	tokenSourceEnv     = "env"
	tokenSourceConfig  = "config"
	tokenSourceKeyring = "keyring"
)

// loadedConfig is the effective configuration plus where the API token came from.
type loadedConfig struct {
	config.Config
	TokenSource string
}

func loadConfig() (loadedConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return loadedConfig{Config: cfg}, err
	}
	lc := loadedConfig{Config: cfg}

	if _, ok := os.LookupEnv("MAILBRIDGE_AUTH_TOKEN"); ok && cfg.Auth.Token != "" {
		lc.TokenSource = tokenSourceEnv
		return lc, nil
	}

	if cfg.Auth.Token != "" {
		lc.TokenSource = tokenSourceConfig
		return lc, nil
	}

	token, err := secrets.GetToken()
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return lc, nil
		}
		return lc, err
	}

	lc.Auth.Token = token
	lc.TokenSource = tokenSourceKeyring
	return lc, nil
}
