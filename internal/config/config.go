package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	LogLevel     string        `mapstructure:"log_level"`
	StaticPath   string        `mapstructure:"static_path"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Secret       string        `mapstructure:"secret"`

	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Registry RegistryConfig `mapstructure:"registry"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Signal   SignalConfig   `mapstructure:"signal"`
	RTC      RTCConfig      `mapstructure:"rtc"`
}

// AuthConfig controls where the connection identity comes from.
// With TrustHeader set, an authenticating proxy in front of the server
// supplies the user id in UserHeader.
type AuthConfig struct {
	TrustHeader bool   `mapstructure:"trust_header"`
	UserHeader  string `mapstructure:"user_header"`
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MinConns int    `mapstructure:"min_conns"`
	MaxConns int    `mapstructure:"max_conns"`
}

type RegistryConfig struct {
	Cache      bool `mapstructure:"cache"`
	MaxRetries int  `mapstructure:"max_retries"`
}

type ChatConfig struct {
	HistoryLimit      int     `mapstructure:"history_limit"`
	RelayOnStoreError bool    `mapstructure:"relay_on_store_error"`
	RateLimit         float64 `mapstructure:"rate_limit"`
	RateBurst         int     `mapstructure:"rate_burst"`
}

type SignalConfig struct {
	ReportRejections bool `mapstructure:"report_rejections"`
	SendBuffer       int  `mapstructure:"send_buffer"`
}

type RTCConfig struct {
	ICEServers []ICEServer `mapstructure:"ice_servers"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	// DefaultSecret signs development cookies only; release mode refuses it.
	DefaultSecret = "change-me"
	// MinSecretLen is the shortest session secret accepted in release mode.
	MinSecretLen = 32
)

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return load(fmt.Sprintf("config/config.%s.yaml", env))
}

func load(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("HUDDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("secret", DefaultSecret)

	v.SetDefault("auth.trust_header", false)
	v.SetDefault("auth.user_header", "X-User-ID")

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "huddle")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.name", "huddle")
	v.SetDefault("storage.postgres.sslmode", "prefer")
	v.SetDefault("storage.postgres.min_conns", 1)
	v.SetDefault("storage.postgres.max_conns", 10)

	v.SetDefault("registry.cache", true)
	v.SetDefault("registry.max_retries", 5)

	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("chat.relay_on_store_error", false)
	v.SetDefault("chat.rate_limit", 5.0)
	v.SetDefault("chat.rate_burst", 10)

	v.SetDefault("signal.report_rejections", true)
	v.SetDefault("signal.send_buffer", 32)

	v.SetDefault("rtc.ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("mode %q: want debug, release or test", c.Mode))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, errors.New("read_limit must be positive"))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("write_timeout must be positive"))
	}
	if c.Mode == "release" && (c.Secret == DefaultSecret || len(c.Secret) < MinSecretLen) {
		errs = append(errs, fmt.Errorf("secret: release mode needs HUDDLE_SECRET of at least %d bytes", MinSecretLen))
	}
	if c.Auth.TrustHeader && c.Auth.UserHeader == "" {
		errs = append(errs, errors.New("auth.user_header required when auth.trust_header is set"))
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.Name == "" {
			errs = append(errs, errors.New("storage.postgres host and name are required"))
		}
		if c.Storage.Postgres.MaxConns < c.Storage.Postgres.MinConns {
			errs = append(errs, errors.New("storage.postgres.max_conns below min_conns"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q: want %s or %s", c.Storage.Driver, DriverMemory, DriverPostgres))
	}
	if c.Registry.MaxRetries < 1 {
		errs = append(errs, errors.New("registry.max_retries must be at least 1"))
	}
	if c.Chat.HistoryLimit < 0 || c.Chat.HistoryLimit > 500 {
		errs = append(errs, fmt.Errorf("chat.history_limit %d out of range [0,500]", c.Chat.HistoryLimit))
	}
	if c.Chat.RateLimit <= 0 || c.Chat.RateBurst <= 0 {
		errs = append(errs, errors.New("chat.rate_limit and chat.rate_burst must be positive"))
	}
	if c.Signal.SendBuffer <= 0 {
		errs = append(errs, errors.New("signal.send_buffer must be positive"))
	}
	for i, s := range c.RTC.ICEServers {
		if len(s.URLs) == 0 {
			errs = append(errs, fmt.Errorf("rtc.ice_servers[%d]: urls required", i))
		}
	}
	return errors.Join(errs...)
}
