package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alphabot-ai/newsroom/internal/client"
)

// CLIConfig holds the CLI client configuration persisted to disk.
type CLIConfig struct {
	BaseURL    string    `json:"base_url"`
	Username   string    `json:"username"`
	PublicKey  string    `json:"public_key,omitempty"`
	PrivateKey string    `json:"private_key,omitempty"`
	Token      string    `json:"token,omitempty"`
	TokenExp   time.Time `json:"token_expires,omitempty"`
}

var errNotInitialized = errors.New("not registered - run 'newsroom register --username <name>'")

func cliConfigPath() string {
	if dir := os.Getenv("NEWSROOM_HOME"); dir != "" {
		return filepath.Join(dir, "config.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".newsroom", "config.json")
}

func loadCLIConfig() (CLIConfig, error) {
	data, err := os.ReadFile(cliConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		return CLIConfig{}, errNotInitialized
	}
	if err != nil {
		return CLIConfig{}, err
	}
	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parse %s: %w", cliConfigPath(), err)
	}
	return cfg, nil
}

func saveCLIConfig(cfg CLIConfig) error {
	path := cliConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	return os.WriteFile(path, data, 0600)
}

func (cfg CLIConfig) credentials() (*client.Credentials, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, errors.New("no key stored - log in with --password")
	}
	return client.CredentialsFromKeys(cfg.Username, cfg.PublicKey, cfg.PrivateKey)
}

func loadAuthenticatedClient() (*client.Client, error) {
	cfg, err := loadCLIConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, errors.New("not authenticated - run 'newsroom login'")
	}
	if !cfg.TokenExp.IsZero() && time.Now().After(cfg.TokenExp) {
		return nil, errors.New("token expired - run 'newsroom login'")
	}
	c := client.New(cfg.BaseURL)
	c.Token = cfg.Token
	c.TokenExp = cfg.TokenExp
	return c, nil
}

func loadClient() (*client.Client, error) {
	if c, err := loadAuthenticatedClient(); err == nil {
		return c, nil
	}
	cfg, err := loadCLIConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.BaseURL), nil
}
