// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names accepted by AI.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Duration wraps time.Duration so YAML values can be written as "5m".
type Duration time.Duration

// UnmarshalYAML parses values like "30s" or "5m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Postgres configures the relational and vector stores. The vector
// store gets its own pool; when VectorURL is empty it shares URL.
type Postgres struct {
	URL        string `yaml:"url" validate:"required"`
	VectorURL  string `yaml:"vector_url"`
	Dimensions int    `yaml:"dimensions" validate:"gt=0"`
	IndexLists int    `yaml:"index_lists" validate:"gt=0"`
}

// Neo4j configures the graph store connection.
type Neo4j struct {
	URI      string `yaml:"uri" validate:"required"`
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required"`
}

// Journal configures the durable job journal. An empty Dir selects the
// in-memory journal, which does not survive a restart.
type Journal struct {
	Dir       string   `yaml:"dir"`
	Retention Duration `yaml:"retention"`
}

// AI selects and configures the model provider.
type AI struct {
	Provider           string `yaml:"provider" validate:"oneof=openai gemini"`
	Host               string `yaml:"host" validate:"required"`
	TranscriberHost    string `yaml:"transcriber_host"`
	APIKey             string `yaml:"api_key"`
	EmbeddingModel     string `yaml:"embedding_model" validate:"required"`
	ExtractorModel     string `yaml:"extractor_model" validate:"required"`
	TranscriptionModel string `yaml:"transcription_model"`
	MaxTextLength      int    `yaml:"max_text_length" validate:"gt=0"`
}

// Pipeline configures ingestion concurrency and chunking.
type Pipeline struct {
	DocumentWorkers  int `yaml:"document_workers" validate:"gt=0"`
	EmbeddingWorkers int `yaml:"embedding_workers" validate:"gt=0"`
	ChunkSize        int `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap     int `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	EmbedCacheSize   int `yaml:"embed_cache_size" validate:"gt=0"`
}

// Sweep configures the reconciliation sweeper.
type Sweep struct {
	Interval    Duration `yaml:"interval"`
	BatchSize   int      `yaml:"batch_size" validate:"gt=0"`
	MaxAttempts int      `yaml:"max_attempts" validate:"gt=0"`
}

// Config is the full runtime configuration.
type Config struct {
	Postgres Postgres `yaml:"postgres"`
	Neo4j    Neo4j    `yaml:"neo4j"`
	Journal  Journal  `yaml:"journal"`
	AI       AI       `yaml:"ai"`
	Pipeline Pipeline `yaml:"pipeline"`
	Sweep    Sweep    `yaml:"sweep"`
}

var validate = validator.New()

// Default returns a Config with every tunable at its default. Store
// endpoints and credentials have no defaults and must come from the
// file or the environment.
func Default() *Config {
	return &Config{
		Postgres: Postgres{
			Dimensions: 768,
			IndexLists: 100,
		},
		Journal: Journal{
			Retention: Duration(7 * 24 * time.Hour),
		},
		AI: AI{
			Provider:           ProviderOpenAI,
			Host:               "http://localhost:11434/v1",
			EmbeddingModel:     "nomic-embed-text",
			ExtractorModel:     "qwen2.5:3b",
			TranscriptionModel: "whisper-1",
			MaxTextLength:      8000,
		},
		Pipeline: Pipeline{
			DocumentWorkers:  5,
			EmbeddingWorkers: 8,
			ChunkSize:        1000,
			ChunkOverlap:     200,
			EmbedCacheSize:   4096,
		},
		Sweep: Sweep{
			Interval:    Duration(5 * time.Minute),
			BatchSize:   50,
			MaxAttempts: 5,
		},
	}
}

// Load builds the configuration in three layers: defaults, then the
// YAML file at path (skipped when path is empty), then WEAVIT_*
// environment variables. A .env file in the working directory is
// loaded into the environment first when present. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	// Missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays WEAVIT_* environment variables onto cfg.
func applyEnv(cfg *Config) error {
	setString(&cfg.Postgres.URL, "WEAVIT_POSTGRES_URL")
	setString(&cfg.Postgres.VectorURL, "WEAVIT_VECTOR_URL")
	if err := setInt(&cfg.Postgres.Dimensions, "WEAVIT_VECTOR_DIMENSIONS"); err != nil {
		return err
	}

	setString(&cfg.Neo4j.URI, "WEAVIT_NEO4J_URI")
	setString(&cfg.Neo4j.Username, "WEAVIT_NEO4J_USER")
	setString(&cfg.Neo4j.Password, "WEAVIT_NEO4J_PASSWORD")

	setString(&cfg.Journal.Dir, "WEAVIT_JOURNAL_DIR")
	if err := setDuration(&cfg.Journal.Retention, "WEAVIT_JOURNAL_RETENTION"); err != nil {
		return err
	}

	setString(&cfg.AI.Provider, "WEAVIT_AI_PROVIDER")
	setString(&cfg.AI.Host, "WEAVIT_AI_HOST")
	setString(&cfg.AI.TranscriberHost, "WEAVIT_AI_TRANSCRIBER_HOST")
	setString(&cfg.AI.APIKey, "WEAVIT_AI_API_KEY")
	setString(&cfg.AI.EmbeddingModel, "WEAVIT_AI_EMBEDDING_MODEL")
	setString(&cfg.AI.ExtractorModel, "WEAVIT_AI_EXTRACTOR_MODEL")
	setString(&cfg.AI.TranscriptionModel, "WEAVIT_AI_TRANSCRIPTION_MODEL")

	if err := setInt(&cfg.Pipeline.DocumentWorkers, "WEAVIT_DOCUMENT_WORKERS"); err != nil {
		return err
	}
	if err := setInt(&cfg.Pipeline.EmbeddingWorkers, "WEAVIT_EMBEDDING_WORKERS"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Sweep.Interval, "WEAVIT_SWEEP_INTERVAL"); err != nil {
		return err
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = Duration(d)
	return nil
}
