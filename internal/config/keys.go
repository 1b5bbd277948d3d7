package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// Secrets are read from the environment only.
var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "ARTISAN_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "ARTISAN_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "ARTISAN_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "server.ask_rate", typ: kFloat, env: "ARTISAN_SERVER_ASK_RATE",
		apply:   func(cfg *Config, v any) { cfg.Server.AskRate = v.(float64) },
		extract: func(cfg Config) any { return cfg.Server.AskRate },
	},
	{
		key: "server.ask_burst", typ: kInt, env: "ARTISAN_SERVER_ASK_BURST",
		apply:   func(cfg *Config, v any) { cfg.Server.AskBurst = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.AskBurst },
	},
	{
		key: "server.api_token", typ: kString, env: "ARTISAN_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "engine.backend", typ: kString, env: "ARTISAN_ENGINE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Engine.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Backend },
	},
	{
		key: "ollama.base_url", typ: kString, env: "ARTISAN_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "ARTISAN_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "ARTISAN_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "ollama.auto_pull", typ: kBool, env: "ARTISAN_OLLAMA_AUTO_PULL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.AutoPull = v.(bool) },
		extract: func(cfg Config) any { return cfg.Ollama.AutoPull },
	},
	{
		key: "openai.base_url", typ: kString, env: "ARTISAN_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.api_key", typ: kString, env: "ARTISAN_OPENAI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.chat_model", typ: kString, env: "ARTISAN_OPENAI_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.ChatModel },
	},
	{
		key: "openai.embed_model", typ: kString, env: "ARTISAN_OPENAI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.EmbedModel },
	},
	{
		key: "generation.temperature", typ: kFloat, env: "ARTISAN_GENERATION_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Generation.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Generation.Temperature },
	},
	{
		key: "generation.timeout", typ: kDuration, env: "ARTISAN_GENERATION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Generation.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Generation.Timeout },
	},
	{
		key: "generation.max_context_tokens", typ: kInt, env: "ARTISAN_GENERATION_MAX_CONTEXT_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Generation.MaxContextTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.MaxContextTokens },
	},
	{
		key: "embedding.batch_size", typ: kInt, env: "ARTISAN_EMBEDDING_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Embedding.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.BatchSize },
	},
	{
		key: "embedding.batch_delay", typ: kDuration, env: "ARTISAN_EMBEDDING_BATCH_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Embedding.BatchDelay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Embedding.BatchDelay },
	},
	{
		key: "embedding.timeout", typ: kDuration, env: "ARTISAN_EMBEDDING_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Embedding.Timeout },
	},
	{
		key: "embedding.max_retries", typ: kInt, env: "ARTISAN_EMBEDDING_MAX_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.Embedding.MaxRetries = v.(int) },
		extract: func(cfg Config) any { return cfg.Embedding.MaxRetries },
	},
	{
		key: "embedding.retry_backoff", typ: kDuration, env: "ARTISAN_EMBEDDING_RETRY_BACKOFF",
		apply:   func(cfg *Config, v any) { cfg.Embedding.RetryBackoff = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Embedding.RetryBackoff },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "ARTISAN_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.backend", typ: kString, env: "ARTISAN_RETRIEVAL_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Retrieval.Backend },
	},
	{
		key: "catalog.manifest", typ: kString, env: "ARTISAN_CATALOG_MANIFEST",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Manifest = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Manifest },
	},
	{
		key: "catalog.data_dir", typ: kString, env: "ARTISAN_CATALOG_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Catalog.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.DataDir },
	},
	{
		key: "catalog.sentinel", typ: kString, env: "ARTISAN_CATALOG_SENTINEL",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Sentinel = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Sentinel },
	},
	{
		key: "catalog.certification_default", typ: kString, env: "ARTISAN_CATALOG_CERTIFICATION_DEFAULT",
		apply:   func(cfg *Config, v any) { cfg.Catalog.CertificationDefault = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.CertificationDefault },
	},
	{
		key: "answer.render_html", typ: kBool, env: "ARTISAN_ANSWER_RENDER_HTML",
		apply:   func(cfg *Config, v any) { cfg.Answer.RenderHTML = v.(bool) },
		extract: func(cfg Config) any { return cfg.Answer.RenderHTML },
	},
	{
		key: "log.level", typ: kString, env: "ARTISAN_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "ARTISAN_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts raw text to the Go type of the key.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		default:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			parsed, err := parseValue(s.typ, v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				continue
			}
			s.apply(cfg, parsed)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
