// Package config loads application configuration from a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EmbeddingConfig configures the embedding model endpoint.
type EmbeddingConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
}

// ChatConfig configures the answer-generation model endpoint.
type ChatConfig struct {
	Provider  string `yaml:"provider"` // openai | gemini
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
}

// ChunkerConfig configures document splitting.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// ChromemStoreConfig configures the embedded persistent store.
type ChromemStoreConfig struct {
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// RedisStoreConfig configures the Redis store backend.
type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Type       string              `yaml:"type"` // memory | chromem | redis
	Collection string              `yaml:"collection"`
	Chromem    *ChromemStoreConfig `yaml:"chromem,omitempty"`
	Redis      *RedisStoreConfig   `yaml:"redis,omitempty"`
}

// AppConfig is the root application configuration.
type AppConfig struct {
	Embedding       EmbeddingConfig `yaml:"embedding"`
	Chat            ChatConfig      `yaml:"chat"`
	Chunker         ChunkerConfig   `yaml:"chunker"`
	Store           StoreConfig     `yaml:"store"`
	TopK            int             `yaml:"top_k"`
	CallTimeoutSecs int             `yaml:"call_timeout_secs"`
}

// Load reads a config from path. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then
// ~/.config/docsdoctor/config.yaml, then falls back to defaults.
func LoadDefault() (*AppConfig, error) {
	if _, err := os.Stat("config.yaml"); err == nil {
		return Load("config.yaml")
	}
	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".config", "docsdoctor", "config.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return Load(userPath)
		}
	}
	return Default(), nil
}

// EmbeddingAPIKey resolves the embedding API key from the environment.
func (c *AppConfig) EmbeddingAPIKey() string {
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// ChatAPIKey resolves the chat API key from the environment.
func (c *AppConfig) ChatAPIKey() string {
	return os.Getenv(c.Chat.APIKeyEnv)
}

// Default returns the default configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "EMBEDDING_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Chat.Provider == "" {
		cfg.Chat.Provider = "openai"
	}
	if cfg.Chat.APIKeyEnv == "" {
		cfg.Chat.APIKeyEnv = "API_KEY"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4o-mini"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 200
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "docsdoctor"
	}
	if cfg.Store.Type == "chromem" {
		if cfg.Store.Chromem == nil {
			cfg.Store.Chromem = &ChromemStoreConfig{}
		}
		if cfg.Store.Chromem.Path == "" {
			cfg.Store.Chromem.Path = "./data/index"
		}
	}
	if cfg.Store.Type == "redis" {
		if cfg.Store.Redis == nil {
			cfg.Store.Redis = &RedisStoreConfig{}
		}
		if cfg.Store.Redis.Addr == "" {
			cfg.Store.Redis.Addr = "localhost:6379"
		}
	}
	if cfg.TopK == 0 {
		cfg.TopK = 3
	}
	if cfg.CallTimeoutSecs == 0 {
		cfg.CallTimeoutSecs = 120
	}
}
