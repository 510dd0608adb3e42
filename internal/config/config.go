package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	NATS       NATSConfig
	Auth       AuthConfig
	Extraction ExtractionConfig
	Inference  InferenceConfig
	Pipeline   PipelineConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrateOnStart bool
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL     string
	Enabled bool
}

type AuthConfig struct {
	TokenSecret string
}

// ExtractionConfig points at the external entity-extraction service.
type ExtractionConfig struct {
	BaseURL string
	Timeout time.Duration
}

// InferenceConfig points at the external language-model service and carries
// the fallback policy applied when a reply is missing or unparseable.
type InferenceConfig struct {
	BaseURL             string
	Timeout             time.Duration
	DefaultConfidence   int
	DefaultSeverity     string
	DefaultPriority     string
	ElevatedSeverity    string
	BiasElevationCutoff float64
}

// PipelineConfig tunes the context compressor and memory manager.
type PipelineConfig struct {
	TokenBudget         int
	RecentTurns         int
	CompactionThreshold int
	ShortTermTTLSec     int
	SimilarFindings     int
	SimilarityThreshold float64
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Enabled   bool
	MaxReqs   int
	WindowSec int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrateOnStart: k.Bool("db.migrate.on.start"),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL:     k.String("nats.url"),
			Enabled: k.Bool("nats.enabled"),
		},
		Auth: AuthConfig{
			TokenSecret: k.String("auth.token.secret"),
		},
		Extraction: ExtractionConfig{
			BaseURL: k.String("extraction.base.url"),
			Timeout: k.Duration("extraction.timeout"),
		},
		Inference: InferenceConfig{
			BaseURL:             k.String("inference.base.url"),
			Timeout:             k.Duration("inference.timeout"),
			DefaultConfidence:   k.Int("inference.default.confidence"),
			DefaultSeverity:     k.String("inference.default.severity"),
			DefaultPriority:     k.String("inference.default.priority"),
			ElevatedSeverity:    k.String("inference.elevated.severity"),
			BiasElevationCutoff: k.Float64("inference.bias.cutoff"),
		},
		Pipeline: PipelineConfig{
			TokenBudget:         k.Int("pipeline.token.budget"),
			RecentTurns:         k.Int("pipeline.recent.turns"),
			CompactionThreshold: k.Int("pipeline.compaction.threshold"),
			ShortTermTTLSec:     k.Int("pipeline.shortterm.ttl.sec"),
			SimilarFindings:     k.Int("pipeline.similar.findings"),
			SimilarityThreshold: k.Float64("pipeline.similarity.threshold"),
		},
		CORS: CORSConfig{
			AllowedOrigins: k.Strings("cors.allowed.origins"),
		},
		RateLimit: RateLimitConfig{
			Enabled:   k.Bool("ratelimit.enabled"),
			MaxReqs:   k.Int("ratelimit.max.reqs"),
			WindowSec: k.Int("ratelimit.window.sec"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "meditwin"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "meditwin"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Extraction.BaseURL == "" {
		cfg.Extraction.BaseURL = "http://localhost:8081"
	}
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 10 * time.Second
	}
	if cfg.Inference.BaseURL == "" {
		cfg.Inference.BaseURL = "http://localhost:8082"
	}
	if cfg.Inference.Timeout == 0 {
		cfg.Inference.Timeout = 30 * time.Second
	}
	if cfg.Inference.DefaultConfidence == 0 {
		cfg.Inference.DefaultConfidence = 75
	}
	if cfg.Inference.DefaultSeverity == "" {
		cfg.Inference.DefaultSeverity = "Moderate"
	}
	if cfg.Inference.DefaultPriority == "" {
		cfg.Inference.DefaultPriority = "Medium"
	}
	if cfg.Inference.ElevatedSeverity == "" {
		cfg.Inference.ElevatedSeverity = "Concerning"
	}
	if cfg.Inference.BiasElevationCutoff == 0 {
		cfg.Inference.BiasElevationCutoff = -0.3
	}
	if cfg.Pipeline.TokenBudget == 0 {
		cfg.Pipeline.TokenBudget = 300
	}
	if cfg.Pipeline.RecentTurns == 0 {
		cfg.Pipeline.RecentTurns = 6
	}
	if cfg.Pipeline.CompactionThreshold == 0 {
		cfg.Pipeline.CompactionThreshold = 10
	}
	if cfg.Pipeline.ShortTermTTLSec == 0 {
		cfg.Pipeline.ShortTermTTLSec = 3600
	}
	if cfg.Pipeline.SimilarFindings == 0 {
		cfg.Pipeline.SimilarFindings = 3
	}
	if cfg.Pipeline.SimilarityThreshold == 0 {
		cfg.Pipeline.SimilarityThreshold = 0.7
	}
	if cfg.RateLimit.MaxReqs == 0 {
		cfg.RateLimit.MaxReqs = 30
	}
	if cfg.RateLimit.WindowSec == 0 {
		cfg.RateLimit.WindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
