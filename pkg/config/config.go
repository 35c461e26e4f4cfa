package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	KB        KBConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
	Download  DownloadConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type LLMConfig struct {
	APIBase            string
	APIKey             string
	IntakeModel        string
	GenerateModel      string
	Temperature        float32
	MaxTokens          int
	TimeoutSec         int
	GenerateTimeoutSec int
	// GenerateTimeoutMs wins over GenerateTimeoutSec when set (LLM_GENERATE_TIMEOUT_MS).
	GenerateTimeoutMs int
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c LLMConfig) GenerateTimeout() time.Duration {
	if c.GenerateTimeoutMs > 0 {
		return time.Duration(c.GenerateTimeoutMs) * time.Millisecond
	}
	return time.Duration(c.GenerateTimeoutSec) * time.Second
}

type KBConfig struct {
	Source   string
	Dir      string
	S3Bucket string
	S3Prefix string
	S3Region string
	Limit    int
}

type CacheConfig struct {
	Enabled bool
	TTLSec  int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuditConfig struct {
	Enabled bool
	Path    string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type DownloadConfig struct {
	MockAllow bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	// .env is optional; real environment variables still apply without it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/service-agreement")

	v.SetEnvPrefix("AGREEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.KB.Source {
	case "dir":
	case "s3":
		if c.KB.S3Bucket == "" {
			return fmt.Errorf("kb.s3Bucket is required when kb.source is s3")
		}
	default:
		return fmt.Errorf("unknown kb.source %q", c.KB.Source)
	}
	if c.KB.Limit <= 0 {
		return fmt.Errorf("kb.limit must be positive, got %d", c.KB.Limit)
	}
	if c.LLM.TimeoutSec <= 0 || c.LLM.GenerateTimeout() <= 0 {
		return fmt.Errorf("llm timeouts must be positive")
	}
	return nil
}

// bindLegacyEnv keeps the environment names used by earlier deployments working.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"llm.apiBase":           {"AGREEMENT_LLM_APIBASE", "LLM_API_BASE"},
		"llm.apiKey":            {"AGREEMENT_LLM_APIKEY", "LLM_API_KEY"},
		"llm.intakeModel":       {"AGREEMENT_LLM_INTAKEMODEL", "LLM_INTAKE_MODEL"},
		"llm.generateModel":     {"AGREEMENT_LLM_GENERATEMODEL", "LLM_GENERATE_MODEL"},
		"llm.generateTimeoutMs": {"AGREEMENT_LLM_GENERATETIMEOUTMS", "LLM_GENERATE_TIMEOUT_MS"},
		"download.mockAllow":    {"AGREEMENT_DOWNLOAD_MOCKALLOW", "MOCK_ALLOW_DOWNLOAD"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 150)
	v.SetDefault("server.bodyLimit", 2097152)

	v.SetDefault("llm.apiBase", "https://api.openai.com")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.intakeModel", "gpt-5-mini")
	v.SetDefault("llm.generateModel", "gpt-5.1-2025-11-13")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.maxTokens", 0)
	v.SetDefault("llm.timeoutSec", 60)
	v.SetDefault("llm.generateTimeoutSec", 120)
	v.SetDefault("llm.generateTimeoutMs", 0)

	v.SetDefault("kb.source", "dir")
	v.SetDefault("kb.dir", "./data/kb")
	v.SetDefault("kb.s3Bucket", "")
	v.SetDefault("kb.s3Prefix", "kb/")
	v.SetDefault("kb.s3Region", "us-east-1")
	v.SetDefault("kb.limit", 4)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttlSec", 3600)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.path", "./data/runs.db")

	v.SetDefault("rateLimit.requestsPerMinute", 30)

	v.SetDefault("download.mockAllow", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
