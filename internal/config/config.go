package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type WebConfig struct {
	Port         int           `yaml:"port"`
	APIKey       string        `yaml:"api_key"`
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	WebhookToken string        `yaml:"webhook_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PBXConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SyncInterval time.Duration `yaml:"sync_interval"`
	SyncMaxPages int           `yaml:"sync_max_pages"`
	PollMaxPages int           `yaml:"poll_max_pages"`
}

type ASRConfig struct {
	BaseURL  string        `yaml:"base_url"` // OpenAI-compatible Whisper server
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Language string        `yaml:"language"` // empty = auto-detect
	Timeout  time.Duration `yaml:"timeout"`
}

type LLMConfig struct {
	Provider        string        `yaml:"provider"` // openai | gemini
	OpenAIKey       string        `yaml:"openai_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"` // vLLM/Ollama/OpenAI endpoint
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	Model           string        `yaml:"model"`
	Timeout         time.Duration `yaml:"timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent inference calls
	ContextTokens   int           `yaml:"context_tokens"`   // transcript token budget
}

type ProcessingConfig struct {
	AutoProcess       bool          `yaml:"auto_process"`
	ProcessInternal   bool          `yaml:"process_internal"`
	TempDir           string        `yaml:"temp_dir"`
	RecordingPages    int           `yaml:"recording_pages"` // pages searched when resolving a recording
	QueueMaxRetries   int           `yaml:"queue_max_retries"`
	ProcessedCacheTTL time.Duration `yaml:"processed_cache_ttl"`
}

type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Web        WebConfig        `yaml:"web"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	PBX        PBXConfig        `yaml:"pbx"`
	ASR        ASRConfig        `yaml:"asr"`
	LLM        LLMConfig        `yaml:"llm"`
	Processing ProcessingConfig `yaml:"processing"`
	Notify     NotifyConfig     `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.SessionTTL <= 0 {
		cfg.Web.SessionTTL = 30 * time.Minute
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.PBX.Timeout <= 0 {
		cfg.PBX.Timeout = 30 * time.Second
	}
	if cfg.PBX.PollInterval <= 0 {
		cfg.PBX.PollInterval = time.Minute
	}
	if cfg.PBX.SyncInterval <= 0 {
		cfg.PBX.SyncInterval = 5 * time.Minute
	}
	if cfg.PBX.SyncMaxPages <= 0 {
		cfg.PBX.SyncMaxPages = 600
	}
	if cfg.PBX.PollMaxPages <= 0 {
		cfg.PBX.PollMaxPages = 1
	}
	if cfg.ASR.Model == "" {
		cfg.ASR.Model = "whisper-1"
	}
	if cfg.ASR.Timeout <= 0 {
		cfg.ASR.Timeout = 5 * time.Minute
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = 5 * time.Minute
	}
	if cfg.LLM.ConcurrentLimit <= 0 {
		cfg.LLM.ConcurrentLimit = 3
	}
	if cfg.LLM.ContextTokens <= 0 {
		cfg.LLM.ContextTokens = 12000
	}
	if cfg.Processing.TempDir == "" {
		cfg.Processing.TempDir = os.TempDir()
	}
	if cfg.Processing.RecordingPages <= 0 {
		cfg.Processing.RecordingPages = 20
	}
	if cfg.Processing.QueueMaxRetries <= 0 {
		cfg.Processing.QueueMaxRetries = 3
	}
	if cfg.Processing.ProcessedCacheTTL <= 0 {
		cfg.Processing.ProcessedCacheTTL = 24 * time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.PBX.BaseURL == "" {
		return nil, errors.New("pbx.base_url is required")
	}
	if cfg.Web.APIKey == "" {
		return nil, errors.New("web.api_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
