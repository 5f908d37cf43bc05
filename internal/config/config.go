package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned by Load when no DeepSeek key is configured and
// clients are not allowed to bring their own.
var ErrMissingAPIKey = errors.New("DEEPSEEK_API_KEY is not set: add it to .streamlit/secrets.toml or the environment")

type Config struct {
	Port          string `validate:"required,numeric"`
	AllowedOrigin string `validate:"required"`
	// DeepSeek
	DeepSeekAPIKey  string
	DeepSeekBaseURL string `validate:"required,url"`
	Model           string `validate:"required"`
	// Must be positive: the chat request omits a zero temperature
	Temperature float32 `validate:"gt=0,lte=2"`
	// Lets the browser send its own key via X-DeepSeek-Api-Key
	AllowClientKey bool
	// Path of the secrets file that was read, empty when none was found
	SecretsFile string
	// Optional consultation script override
	ScriptFile string
	// Optional persistence
	DatabaseURL  string
	SnapshotFile string
	// Sessions
	SessionTTL     time.Duration
	MaxMessages    int `validate:"gte=0"`
	RequestTimeout time.Duration
	Logger         LoggerSettings `validate:"-"`
}

var defaults = map[string]any{
	"port":                 "8080",
	"allowed_origin":       "*",
	"deepseek_base_url":    "https://api.deepseek.com",
	"deepseek_model":       "deepseek-chat",
	"deepseek_temperature": 0.3,
	"allow_client_api_key": false,
	"session_ttl":          2 * time.Hour,
	"max_messages":         200,
	"request_timeout":      120 * time.Second,
	"log_level":            LogLevelInfo,
	"log_type":             LogTypeConsole,
	"log_max_size":         10,
	"log_max_backups":      3,
	"log_max_age":          28,
}

// flag name -> config key
var flagKeys = map[string]string{
	"port":             "port",
	"script":           "script_file",
	"log-level":        "log_level",
	"allow-client-key": "allow_client_api_key",
}

// BindFlags registers the command line flags understood by Load.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("port", "8080", "HTTP listen port")
	fs.String("secrets", "", "path to the TOML secrets file (default: search .streamlit/, ./ and config/ for secrets.toml)")
	fs.String("script", "", "path to a consultation script YAML overriding the built-in one")
	fs.String("log-level", LogLevelInfo, "log level (debug, info, warning, error)")
	fs.Bool("allow-client-key", false, "accept a DeepSeek key from the browser when none is configured")
}

// Load reads .env, the secrets file, the environment and flags (in increasing
// precedence). flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	secretsPath := os.Getenv("SECRETS_FILE")
	if flags != nil {
		if f := flags.Lookup("secrets"); f != nil && f.Changed {
			secretsPath = f.Value.String()
		}
	}
	v.SetConfigType("toml")
	if secretsPath != "" {
		v.SetConfigFile(secretsPath)
	} else {
		v.SetConfigName("secrets")
		v.AddConfigPath(".streamlit")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if secretsPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read secrets file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := Config{
		Port:            strings.TrimSpace(v.GetString("port")),
		AllowedOrigin:   v.GetString("allowed_origin"),
		DeepSeekAPIKey:  strings.TrimSpace(v.GetString("deepseek_api_key")),
		DeepSeekBaseURL: strings.TrimRight(v.GetString("deepseek_base_url"), "/"),
		Model:           v.GetString("deepseek_model"),
		Temperature:     float32(v.GetFloat64("deepseek_temperature")),
		AllowClientKey:  v.GetBool("allow_client_api_key"),
		SecretsFile:     v.ConfigFileUsed(),
		ScriptFile:      v.GetString("script_file"),
		DatabaseURL:     v.GetString("db_url"),
		SnapshotFile:    v.GetString("snapshot_file"),
		SessionTTL:      v.GetDuration("session_ttl"),
		MaxMessages:     v.GetInt("max_messages"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		Logger: LoggerSettings{
			LogLevel:   strings.ToLower(v.GetString("log_level")),
			LogType:    strings.ToLower(v.GetString("log_type")),
			FilePath:   v.GetString("log_file"),
			MaxSize:    v.GetInt("log_max_size"),
			MaxBackups: v.GetInt("log_max_backups"),
			MaxAge:     v.GetInt("log_max_age"),
		},
	}
	if _, err := os.Stat(cfg.SecretsFile); err != nil {
		cfg.SecretsFile = ""
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and the API key requirement.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid config: session_ttl must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid config: request_timeout must be positive")
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DeepSeekAPIKey == "" && !c.AllowClientKey {
		return ErrMissingAPIKey
	}
	return nil
}

// HasServerKey reports whether a DeepSeek key was configured on the server side.
func (c *Config) HasServerKey() bool {
	return c.DeepSeekAPIKey != ""
}
