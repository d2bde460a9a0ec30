// Package config loads rankit's application configuration.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// rankit.yaml (current directory or $HOME/.config/rankit), and RANKIT_*
// environment variables. Nested keys map onto variables with dots replaced by
// underscores, so embedding.host is RANKIT_EMBEDDING_HOST.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/rankit/ai"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "RANKIT"

	// FileName is the base name of the optional configuration file.
	FileName = "rankit"
)

// Config is the complete application configuration.
type Config struct {
	DataDir   string          `mapstructure:"data-dir"`
	InMemory  bool            `mapstructure:"in-memory"`
	UploadDir string          `mapstructure:"upload-dir"`
	LogLevel  string          `mapstructure:"log-level"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Extract   ExtractConfig   `mapstructure:"extract"`
}

// EmbeddingConfig locates the OpenAI-compatible embedding service.
type EmbeddingConfig struct {
	Host  string `mapstructure:"host"`
	Model string `mapstructure:"model"`
	Token string `mapstructure:"token"`
}

// PipelineConfig tunes job processing.
type PipelineConfig struct {
	PoolSize        int           `mapstructure:"pool-size"` // 0 picks a default from the CPU count
	EmbedRetries    int           `mapstructure:"embed-retries"`
	RetryDelay      time.Duration `mapstructure:"retry-delay"`
	DetailedScoring bool          `mapstructure:"detailed-scoring"`
	MinTextLength   int           `mapstructure:"min-text-length"`
}

// ExtractConfig names external extraction tools.
type ExtractConfig struct {
	Pdftotext string `mapstructure:"pdftotext"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data-dir", "./rankit-data")
	v.SetDefault("in-memory", false)
	v.SetDefault("upload-dir", "./rankit-uploads")
	v.SetDefault("log-level", "info")
	v.SetDefault("embedding.host", ai.DefaultEmbeddingHost)
	v.SetDefault("embedding.model", ai.DefaultEmbeddingModel)
	v.SetDefault("embedding.token", ai.DefaultToken)
	v.SetDefault("pipeline.pool-size", 0)
	v.SetDefault("pipeline.embed-retries", 3)
	v.SetDefault("pipeline.retry-delay", time.Second)
	v.SetDefault("pipeline.detailed-scoring", false)
	v.SetDefault("pipeline.min-text-length", 50)
	v.SetDefault("extract.pdftotext", "pdftotext")
}

// Load reads the configuration. An explicit file must exist; without one the
// default search locations are tried and a missing file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return errors.New("config: data-dir is required unless in-memory is set")
	}
	if c.UploadDir == "" {
		return errors.New("config: upload-dir is required")
	}
	if c.Pipeline.EmbedRetries < 1 {
		return fmt.Errorf("config: pipeline.embed-retries must be at least 1, got %d", c.Pipeline.EmbedRetries)
	}
	if c.Pipeline.PoolSize < 0 {
		return fmt.Errorf("config: pipeline.pool-size cannot be negative, got %d", c.Pipeline.PoolSize)
	}
	return c.AI().Validate()
}

// AI returns the embedding service configuration.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithToken(c.Embedding.Token),
	)
}
