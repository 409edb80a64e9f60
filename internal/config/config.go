package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. DISHQA_INFERENCE_MODEL.
const EnvPrefix = "DISHQA"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Inference InferenceConfig `mapstructure:"inference"`
	Staging   StagingConfig   `mapstructure:"staging"`
	UI        UIConfig        `mapstructure:"ui"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	Mode              string        `mapstructure:"mode"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// InferenceConfig describes the Ollama-compatible vision endpoint.
type InferenceConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	PreferIPv4    bool          `mapstructure:"prefer_ipv4"`
}

type StagingConfig struct {
	Dir string `mapstructure:"dir"`
}

type UIConfig struct {
	Title            string `mapstructure:"title"`
	ShowErrorDetails bool   `mapstructure:"show_error_details"`
}

// Load reads configuration from an optional YAML file and the environment.
// A .env file in the working directory is loaded first when present. When path
// is empty, ./configs/config.yaml and ./config.yaml are tried and a missing file
// is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_upload_bytes", 10<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("inference.base_url", "http://localhost:11434")
	v.SetDefault("inference.model", "llama3.2-vision")
	v.SetDefault("inference.timeout", 180*time.Second)
	v.SetDefault("inference.max_concurrent", 1)
	v.SetDefault("inference.prefer_ipv4", false)

	v.SetDefault("staging.dir", filepath.Join(os.TempDir(), "dish-advisor"))

	v.SetDefault("ui.title", "Nutritional Advisor")
	v.SetDefault("ui.show_error_details", false)
}

func (c *Config) normalize() {
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Server.Mode = strings.ToLower(strings.TrimSpace(c.Server.Mode))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Inference.BaseURL = strings.TrimRight(strings.TrimSpace(c.Inference.BaseURL), "/")
	c.Inference.Model = strings.TrimSpace(c.Inference.Model)
	c.Staging.Dir = strings.TrimSpace(c.Staging.Dir)

	if c.Inference.MaxConcurrent < 1 {
		c.Inference.MaxConcurrent = 1
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	if c.Inference.BaseURL == "" {
		return errors.New("inference.base_url is required")
	}
	if !strings.HasPrefix(c.Inference.BaseURL, "http://") && !strings.HasPrefix(c.Inference.BaseURL, "https://") {
		return fmt.Errorf("inference.base_url must be an http(s) URL, got %q", c.Inference.BaseURL)
	}
	if c.Inference.Model == "" {
		return errors.New("inference.model is required")
	}
	if c.Inference.Timeout < 0 {
		return fmt.Errorf("inference.timeout must not be negative, got %s", c.Inference.Timeout)
	}

	if c.Staging.Dir == "" {
		return errors.New("staging.dir is required")
	}
	return nil
}
