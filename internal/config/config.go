// Package config provides YAML-based configuration loading for scribed.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level scribed configuration, loaded from scribed.yaml.
type Config struct {
	Environment string       `yaml:"environment"`
	LogLevel    string       `yaml:"log_level"`
	DB          DBConfig     `yaml:"db"`
	Server      ServerConfig `yaml:"server"`
	Worker      WorkerConfig `yaml:"worker"`
	Audio       AudioConfig  `yaml:"audio"`
	Speech      SpeechConfig `yaml:"speech"`
	TextGen     TextConfig   `yaml:"textgen"`
	Notify      NotifyConfig `yaml:"notify"`
}

// DBConfig holds connection settings for the job store.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ServerConfig holds settings for the HTTP front door.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// WorkerConfig holds scheduling and concurrency settings for the batch worker.
type WorkerConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	Schedule         string        `yaml:"schedule"` // optional 5-field cron expression
	JobConcurrency   int           `yaml:"job_concurrency"`
	ChunkConcurrency int           `yaml:"chunk_concurrency"`
	MaxRetries       int           `yaml:"max_retries"`
}

// AudioConfig holds chunk-splitting parameters.
type AudioConfig struct {
	MaxChunkBytes   int           `yaml:"max_chunk_bytes"`
	Overlap         time.Duration `yaml:"overlap"`
	MinChunkSeconds time.Duration `yaml:"min_chunk_duration"`
	BytesPerSecond  int           `yaml:"bytes_per_second"`
}

// SpeechConfig holds settings for the speech-to-text service.
type SpeechConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// TextConfig holds settings for the text-generation service.
type TextConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// NotifyConfig holds optional notification targets for terminal job states.
type NotifyConfig struct {
	SlackWebhookURL  string `yaml:"slack_webhook_url"`
	DiscordBotToken  string `yaml:"discord_bot_token"`
	DiscordChannelID string `yaml:"discord_channel_id"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with all defaults applied and env overrides read,
// for running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "local"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Path == "" {
		c.DB.Path = "scribed.db"
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.Database == "" {
		c.DB.Database = "scribed"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 60 * time.Second
	}
	if c.Worker.JobConcurrency == 0 {
		c.Worker.JobConcurrency = 3
	}
	if c.Worker.ChunkConcurrency == 0 {
		c.Worker.ChunkConcurrency = 5
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Audio.MaxChunkBytes == 0 {
		c.Audio.MaxChunkBytes = 24 << 20
	}
	if c.Audio.Overlap == 0 {
		c.Audio.Overlap = 3 * time.Second
	}
	if c.Audio.MinChunkSeconds == 0 {
		c.Audio.MinChunkSeconds = 30 * time.Second
	}
	if c.Audio.BytesPerSecond == 0 {
		c.Audio.BytesPerSecond = 32000
	}
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = "https://api.openai.com/v1"
	}
	if c.Speech.Model == "" {
		c.Speech.Model = "whisper-1"
	}
	if c.TextGen.BaseURL == "" {
		c.TextGen.BaseURL = "https://api.openai.com/v1"
	}
	if c.TextGen.Model == "" {
		c.TextGen.Model = "gpt-4o-mini"
	}
}

// applyEnv overrides secrets from the environment so they can be kept out of
// the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SCRIBED_SPEECH_API_KEY"); v != "" {
		c.Speech.APIKey = v
	}
	if v := os.Getenv("SCRIBED_TEXTGEN_API_KEY"); v != "" {
		c.TextGen.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.Speech.APIKey == "" {
			c.Speech.APIKey = v
		}
		if c.TextGen.APIKey == "" {
			c.TextGen.APIKey = v
		}
	}
	if v := os.Getenv("SCRIBED_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("SCRIBED_SLACK_WEBHOOK_URL"); v != "" {
		c.Notify.SlackWebhookURL = v
	}
	if v := os.Getenv("SCRIBED_DISCORD_BOT_TOKEN"); v != "" {
		c.Notify.DiscordBotToken = v
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: unsupported db driver %q", c.DB.Driver)
	}
	if c.Worker.JobConcurrency < 1 {
		return fmt.Errorf("config: job_concurrency must be at least 1")
	}
	if c.Worker.ChunkConcurrency < 1 {
		return fmt.Errorf("config: chunk_concurrency must be at least 1")
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must not be negative")
	}
	if c.Audio.MaxChunkBytes < 1 {
		return fmt.Errorf("config: max_chunk_bytes must be positive")
	}
	if c.Notify.DiscordBotToken != "" && c.Notify.DiscordChannelID == "" {
		return fmt.Errorf("config: discord_channel_id is required when discord_bot_token is set")
	}
	return nil
}
