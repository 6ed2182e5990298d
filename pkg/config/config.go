package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend  BackendConfig
	Identity IdentityConfig
	Chat     ChatConfig
	Upload   UploadConfig
	Server   ServerConfig
	Breaker  BreakerConfig
	Logging  LoggingConfig
}

type BackendConfig struct {
	BaseURL    string
	TimeoutSec int
}

type IdentityConfig struct {
	Email string
}

type ChatConfig struct {
	DefaultStrategy string
	Greeting        string
	MaxQueryLength  int
}

type UploadConfig struct {
	SuccessResetMs    int
	AllowedExtensions []string
	MaxFileSize       int
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	Development    bool
}

type BreakerConfig struct {
	Enabled          bool
	FailureThreshold uint32
	SuccessThreshold uint32
	OpenTimeoutSec   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads config.yaml from the usual search paths, or from path when it
// is non-empty. Environment variables prefixed with KBCONSOLE_ override both.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.kbconsole")
	}

	v.SetEnvPrefix("KBCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend.baseURL %q", c.Backend.BaseURL)
	}
	if strings.TrimSpace(c.Identity.Email) == "" {
		return errors.New("identity.email is required")
	}
	if c.Upload.SuccessResetMs < 0 {
		return fmt.Errorf("upload.successResetMs must not be negative, got %d", c.Upload.SuccessResetMs)
	}
	return nil
}

func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c UploadConfig) SuccessReset() time.Duration {
	return time.Duration(c.SuccessResetMs) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.baseURL", "https://knowledge-capture.onrender.com")
	v.SetDefault("backend.timeoutSec", 120)

	v.SetDefault("identity.email", "varun@example.com")

	v.SetDefault("chat.defaultStrategy", "vector")
	v.SetDefault("chat.greeting", "Hello! Ask me anything about your documents.")
	v.SetDefault("chat.maxQueryLength", 5000)

	v.SetDefault("upload.successResetMs", 3000)
	v.SetDefault("upload.allowedExtensions", []string{".pdf", ".md", ".txt"})
	v.SetDefault("upload.maxFileSize", 50*1024*1024)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 180)
	v.SetDefault("server.bodyLimit", 52428800)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:5173"})
	v.SetDefault("server.rateLimitRPS", 5)
	v.SetDefault("server.rateLimitBurst", 20)
	v.SetDefault("server.development", true)

	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.failureThreshold", 5)
	v.SetDefault("breaker.successThreshold", 1)
	v.SetDefault("breaker.openTimeoutSec", 15)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputPath", "stderr")
	v.SetDefault("logging.maxSizeMB", 10)
	v.SetDefault("logging.maxBackups", 5)
	v.SetDefault("logging.maxAgeDays", 30)
}
