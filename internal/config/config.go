// Package config loads notifier settings from flags, environment, .env and config files.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Environment variables that must be present for the notifier to start.
const (
	EnvHeliusAPIKey      = "HELIUS_API_KEY"
	EnvHeliusHTTPURL     = "HELIUS_HTTP_URL"
	EnvHeliusWSSURL      = "HELIUS_WSS_URL"
	EnvDiscordWebhookURL = "DISCORD_WEBHOOK_URL"
	EnvPort              = "PORT"
)

// envPrefix applies to every optional setting, e.g. DLMM_LOG_LEVEL.
const envPrefix = "DLMM"

// ErrMissingRequired is returned when required settings are absent.
var ErrMissingRequired = errors.New("missing required environment variables")

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	HeliusAPIKey      string
	HeliusHTTPURL     string
	HeliusWSSURL      string
	DiscordWebhookURL string
	Port              int

	LogLevel       string
	MetricsEnabled bool

	Strategy       string
	Metadata       string
	MaxInFlight    int
	HandlerTimeout time.Duration

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64

	RPCTimeout    time.Duration
	RPCMaxRetries int

	DedupBackend string
	DedupTTL     time.Duration
	RedisAddr    string
	BoltPath     string

	StoreBackend  string
	PostgresDSN   string
	ClickhouseDSN string

	KafkaBrokers []string
	KafkaTopic   string
}

// requiredKeys maps viper keys of required settings to their environment names.
var requiredKeys = []struct {
	key string
	env string
}{
	{"helius-api-key", EnvHeliusAPIKey},
	{"helius-http-url", EnvHeliusHTTPURL},
	{"helius-wss-url", EnvHeliusWSSURL},
	{"discord-webhook-url", EnvDiscordWebhookURL},
}

// LoadDotEnv loads variables from the given .env files (default ".env").
// Missing files are ignored and variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load merges config file, environment variables, and flags into Config
// and validates the result.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, rk := range requiredKeys {
		if err := v.BindEnv(rk.key, rk.env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", rk.env, err)
		}
	}
	if err := v.BindEnv("port", EnvPort); err != nil {
		return Config{}, fmt.Errorf("bind env %s: %w", EnvPort, err)
	}

	v.SetDefault("port", 3000)
	v.SetDefault("log-level", "info")
	v.SetDefault("metrics", true)
	v.SetDefault("strategy", "scan")
	v.SetDefault("metadata", "das")
	v.SetDefault("max-in-flight", 0)
	v.SetDefault("handler-timeout", 2*time.Minute)
	v.SetDefault("retry-max-attempts", 10)
	v.SetDefault("retry-initial-delay", 5*time.Second)
	v.SetDefault("retry-max-delay", 2*time.Minute)
	v.SetDefault("retry-multiplier", 2.0)
	v.SetDefault("rpc-timeout", 30*time.Second)
	v.SetDefault("rpc-max-retries", 3)
	v.SetDefault("dedup", "none")
	v.SetDefault("dedup-ttl", 24*time.Hour)
	v.SetDefault("bolt-path", "./data/dedup.bolt")
	v.SetDefault("store", "none")
	v.SetDefault("kafka-topic", "dlmm.pool_creations")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("notifier")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		HeliusAPIKey:      strings.TrimSpace(v.GetString("helius-api-key")),
		HeliusHTTPURL:     strings.TrimSpace(v.GetString("helius-http-url")),
		HeliusWSSURL:      strings.TrimSpace(v.GetString("helius-wss-url")),
		DiscordWebhookURL: strings.TrimSpace(v.GetString("discord-webhook-url")),
		Port:              v.GetInt("port"),
		LogLevel:          v.GetString("log-level"),
		MetricsEnabled:    v.GetBool("metrics"),
		Strategy:          v.GetString("strategy"),
		Metadata:          v.GetString("metadata"),
		MaxInFlight:       v.GetInt("max-in-flight"),
		HandlerTimeout:    v.GetDuration("handler-timeout"),
		RetryMaxAttempts:  v.GetInt("retry-max-attempts"),
		RetryInitialDelay: v.GetDuration("retry-initial-delay"),
		RetryMaxDelay:     v.GetDuration("retry-max-delay"),
		RetryMultiplier:   v.GetFloat64("retry-multiplier"),
		RPCTimeout:        v.GetDuration("rpc-timeout"),
		RPCMaxRetries:     v.GetInt("rpc-max-retries"),
		DedupBackend:      v.GetString("dedup"),
		DedupTTL:          v.GetDuration("dedup-ttl"),
		RedisAddr:         v.GetString("redis-addr"),
		BoltPath:          v.GetString("bolt-path"),
		StoreBackend:      v.GetString("store"),
		PostgresDSN:       v.GetString("postgres-dsn"),
		ClickhouseDSN:     v.GetString("clickhouse-dsn"),
		KafkaBrokers:      getStringSlice(v, "kafka-brokers"),
		KafkaTopic:        v.GetString("kafka-topic"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing required setting in one error,
// followed by checks on optional backends.
func (c Config) Validate() error {
	values := map[string]string{
		EnvHeliusAPIKey:      c.HeliusAPIKey,
		EnvHeliusHTTPURL:     c.HeliusHTTPURL,
		EnvHeliusWSSURL:      c.HeliusWSSURL,
		EnvDiscordWebhookURL: c.DiscordWebhookURL,
	}
	var missing []string
	for _, rk := range requiredKeys {
		if values[rk.env] == "" {
			missing = append(missing, rk.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	switch c.StoreBackend {
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("store postgres requires postgres-dsn")
		}
	case "clickhouse":
		if c.ClickhouseDSN == "" {
			return errors.New("store clickhouse requires clickhouse-dsn")
		}
	case "none", "memory", "":
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}

	switch c.Metadata {
	case "das", "metaplex", "chain", "":
	default:
		return fmt.Errorf("unknown metadata source %q", c.Metadata)
	}

	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf("retry-max-attempts must not be negative, got %d", c.RetryMaxAttempts)
	}
	if c.RetryInitialDelay <= 0 {
		return fmt.Errorf("retry-initial-delay must be positive, got %v", c.RetryInitialDelay)
	}
	if c.RetryMaxDelay < c.RetryInitialDelay {
		return fmt.Errorf("retry-max-delay %v is below retry-initial-delay %v", c.RetryMaxDelay, c.RetryInitialDelay)
	}
	if !(c.RetryMultiplier >= 1) {
		return fmt.Errorf("retry-multiplier must be at least 1, got %v", c.RetryMultiplier)
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("kafka-brokers requires kafka-topic")
	}
	return nil
}

// HTTPEndpoint returns the RPC URL carrying the API key.
func (c Config) HTTPEndpoint() string {
	return withAPIKey(c.HeliusHTTPURL, c.HeliusAPIKey)
}

// WSEndpoint returns the subscription URL carrying the API key.
func (c Config) WSEndpoint() string {
	return withAPIKey(c.HeliusWSSURL, c.HeliusAPIKey)
}

// Addr returns the listen address of the health server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// withAPIKey appends api-key=key unless raw already carries one.
func withAPIKey(raw, key string) string {
	if key == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("api-key") != "" {
		return raw
	}
	q.Set("api-key", key)
	u.RawQuery = q.Encode()
	return u.String()
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	switch typed := v.Get(key).(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return cleanStrings(strings.Split(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
