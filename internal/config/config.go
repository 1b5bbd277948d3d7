package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Engine     EngineConfig
	Ollama     OllamaConfig
	OpenAI     OpenAIConfig
	Generation GenerationConfig
	Embedding  EmbeddingConfig
	Retrieval  RetrievalConfig
	Catalog    CatalogConfig
	Answer     AnswerConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	MaxConns int
	AskRate  float64
	AskBurst int
	APIToken string
}

type EngineConfig struct {
	Backend string // "ollama" or "openai"
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
	AutoPull   bool
}

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string
}

type GenerationConfig struct {
	Temperature      float64
	Timeout          time.Duration
	MaxContextTokens int
}

type EmbeddingConfig struct {
	BatchSize    int
	BatchDelay   time.Duration
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

type RetrievalConfig struct {
	TopK    int
	Backend string // "memory" or "sqlite"
}

type CatalogConfig struct {
	Manifest             string // path to a YAML manifest; empty uses the built-in one
	DataDir              string
	Sentinel             string
	CertificationDefault string
}

type AnswerConfig struct {
	RenderHTML bool
}

type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     5000,
			MaxConns: 64,
			AskRate:  5,
			AskBurst: 10,
		},
		Engine: EngineConfig{Backend: "ollama"},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.2:latest",
			EmbedModel: "mxbai-embed-large",
			AutoPull:   true,
		},
		OpenAI: OpenAIConfig{
			BaseURL:    "https://api.openai.com/v1",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Generation: GenerationConfig{
			Temperature:      0.7,
			Timeout:          120 * time.Second,
			MaxContextTokens: 4000,
		},
		Embedding: EmbeddingConfig{
			BatchSize:    5,
			BatchDelay:   time.Second,
			Timeout:      60 * time.Second,
			RetryBackoff: 500 * time.Millisecond,
		},
		Retrieval: RetrievalConfig{TopK: 2, Backend: "memory"},
		Catalog: CatalogConfig{
			DataDir:              ".",
			Sentinel:             "Non spécifié",
			CertificationDefault: "non disponible",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from the TOML file at
// $XDG_CONFIG_HOME/artisan/config.toml, then applies ARTISAN_* environment
// overrides. A missing file is not an error.
func Load() (Config, error) {
	return loadFromPath(ConfigPath())
}

func loadFromPath(path string) (Config, error) {
	b, err := newFileBackend(path)
	if err != nil {
		return Config{}, err
	}
	return loadWith(b)
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	var problems []string
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Engine.Backend {
	case "ollama", "openai":
	default:
		problems = append(problems, fmt.Sprintf("engine.backend %q must be ollama or openai", c.Engine.Backend))
	}
	switch c.Retrieval.Backend {
	case "memory", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("retrieval.backend %q must be memory or sqlite", c.Retrieval.Backend))
	}
	if c.Retrieval.TopK < 1 {
		problems = append(problems, "retrieval.top_k must be at least 1")
	}
	if c.Embedding.BatchSize < 1 {
		problems = append(problems, "embedding.batch_size must be at least 1")
	}
	if c.Embedding.MaxRetries < 0 {
		problems = append(problems, "embedding.max_retries must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ChatModel returns the generation model of the selected backend.
func (c Config) ChatModel() string {
	if c.Engine.Backend == "openai" {
		return c.OpenAI.ChatModel
	}
	return c.Ollama.ChatModel
}

// EmbedModel returns the embedding model of the selected backend.
func (c Config) EmbedModel() string {
	if c.Engine.Backend == "openai" {
		return c.OpenAI.EmbedModel
	}
	return c.Ollama.EmbedModel
}

// AutoPull reports whether missing models should be downloaded. Only
// Ollama can pull.
func (c Config) AutoPull() bool {
	return c.Engine.Backend == "ollama" && c.Ollama.AutoPull
}

// LogLevel returns the slog level for log.level.
func (c Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q must be debug, info, warn or error", s)
	}
	return l, nil
}
