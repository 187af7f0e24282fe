package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	ServerName    string `mapstructure:"SERVER_NAME"`
	ListenAddr    string `mapstructure:"LISTEN_ADDR"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	DatabaseDriver string `mapstructure:"DB_DRIVER"`
	DatabasePath   string `mapstructure:"DB_PATH"`
	DatabaseDSN    string `mapstructure:"DB_DSN"`
	DatabaseDebug  bool   `mapstructure:"DB_DEBUG"`

	// VerifyPrefix names the TXT value and meta tag: "<prefix>-verify".
	VerifyPrefix       string        `mapstructure:"VERIFY_PREFIX"`
	VerifyProxyURL     string        `mapstructure:"VERIFY_PROXY_URL"`
	VerifyDNSServer    string        `mapstructure:"VERIFY_DNS_SERVER"`
	VerifyFetchTimeout time.Duration `mapstructure:"VERIFY_FETCH_TIMEOUT"`
	VerifyTotalTimeout time.Duration `mapstructure:"VERIFY_TOTAL_TIMEOUT"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_NAME", "Certiread")
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "certiread.db")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_DEBUG", false)

	v.SetDefault("VERIFY_PREFIX", "certiread")
	v.SetDefault("VERIFY_PROXY_URL", "")
	v.SetDefault("VERIFY_DNS_SERVER", "")
	v.SetDefault("VERIFY_FETCH_TIMEOUT", 15*time.Second)
	v.SetDefault("VERIFY_TOTAL_TIMEOUT", 60*time.Second)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// LoadConfig reads CERTIREAD_* environment variables, falling back to an
// optional .env file in the working directory.
func LoadConfig() (*Config, error) {
	return load(viper.New(), ".env")
}

func load(v *viper.Viper, envFile string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("CERTIREAD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		// Ignore err if .env doesn't exist
		_ = v.ReadInConfig()
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	config.PublicBaseURL = strings.TrimRight(config.PublicBaseURL, "/")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return errors.Errorf("unsupported DB_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDSN == "" {
		return errors.Errorf("DB_DSN is required for driver %s", c.DatabaseDriver)
	}
	if c.VerifyPrefix == "" {
		return errors.New("VERIFY_PREFIX must not be empty")
	}
	if c.VerifyFetchTimeout <= 0 || c.VerifyTotalTimeout <= 0 {
		return errors.New("verification timeouts must be positive")
	}
	if c.VerifyProxyURL != "" {
		u, err := url.Parse(c.VerifyProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Errorf("invalid VERIFY_PROXY_URL %q", c.VerifyProxyURL)
		}
	}
	return nil
}
