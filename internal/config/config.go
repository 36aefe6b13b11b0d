// Package config loads application configuration from a YAML file with
// environment variable overrides for deploy-time settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// OpenAIConfig selects the models used for embeddings and completions.
// The API key always comes from the OPENAI_API_KEY environment variable.
type OpenAIConfig struct {
	EmbeddingModel  string `yaml:"embedding_model"`
	CompletionModel string `yaml:"completion_model"`
}

// QdrantConfig contains connection details for the Qdrant vector store.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// IngestionConfig configures the startup ingestion pass.
type IngestionConfig struct {
	DataDir     string `yaml:"data_dir"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// GenerationConfig configures the question generation scheduler.
// InitialDelay and Interval are Go duration strings ("5m", "24h").
type GenerationConfig struct {
	InitialDelay string `yaml:"initial_delay"`
	Interval     string `yaml:"interval"`
	SampleSize   int    `yaml:"sample_size"`
	Episodes     []int  `yaml:"episodes"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	Generation GenerationConfig `yaml:"generation"`
}

// Load reads a config from the given path. A missing file yields defaults;
// environment overrides apply either way.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// InitialDelayDuration parses the scheduler's initial delay.
func (g GenerationConfig) InitialDelayDuration() (time.Duration, error) {
	return parseDuration(g.InitialDelay, "generation.initial_delay")
}

// IntervalDuration parses the scheduler's recurring interval.
func (g GenerationConfig) IntervalDuration() (time.Duration, error) {
	return parseDuration(g.Interval, "generation.interval")
}

func parseDuration(raw, field string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", field, raw)
	}
	return d, nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{Port: 8080},
		OpenAI: OpenAIConfig{
			EmbeddingModel:  "text-embedding-3-small",
			CompletionModel: "gpt-4o",
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "transcripts",
		},
		Ingestion: IngestionConfig{
			DataDir:     "data",
			BatchSize:   100,
			Concurrency: 4,
		},
		Generation: GenerationConfig{
			InitialDelay: "5m",
			Interval:     "24h",
			SampleSize:   5,
		},
	}
}

func applyDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = def.OpenAI.EmbeddingModel
	}
	if cfg.OpenAI.CompletionModel == "" {
		cfg.OpenAI.CompletionModel = def.OpenAI.CompletionModel
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = def.Qdrant.Host
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = def.Qdrant.Port
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = def.Qdrant.Collection
	}
	if cfg.Ingestion.DataDir == "" {
		cfg.Ingestion.DataDir = def.Ingestion.DataDir
	}
	if cfg.Ingestion.BatchSize <= 0 {
		cfg.Ingestion.BatchSize = def.Ingestion.BatchSize
	}
	if cfg.Ingestion.Concurrency <= 0 {
		cfg.Ingestion.Concurrency = def.Ingestion.Concurrency
	}
	if cfg.Generation.InitialDelay == "" {
		cfg.Generation.InitialDelay = def.Generation.InitialDelay
	}
	if cfg.Generation.Interval == "" {
		cfg.Generation.Interval = def.Generation.Interval
	}
	if cfg.Generation.SampleSize <= 0 {
		cfg.Generation.SampleSize = def.Generation.SampleSize
	}
}

// applyEnvOverrides lets deploy environments override file settings without
// editing the YAML. Only connection-level settings are overridable.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Qdrant.Port = port
		}
	}
	if v := os.Getenv("QDRANT_COLLECTION"); v != "" {
		cfg.Qdrant.Collection = v
	}
	if v := os.Getenv("TRANSCRIPTS_DIR"); v != "" {
		cfg.Ingestion.DataDir = v
	}
}
