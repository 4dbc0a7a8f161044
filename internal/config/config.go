package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix               = "MEMCARD"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabasePath     = "memcard-server.db"
	defaultLogLevel         = "info"
	defaultTokenTTLMinutes  = 60 * 24
	defaultPruneMinutes     = 10
	defaultAllowedOrigin    = "*"
	defaultStorePath        = "memcard.db"
	defaultStoreAccount     = "local"
	defaultReviewBatchLimit = 20
	defaultReviewMinimumDue = 10
)

var validate = newValidator()

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress          string   `config:"http.address" validate:"required"`
	AllowedOrigins       []string `config:"http.allowed_origins" validate:"min=1,dive,required"`
	DatabasePath         string   `config:"database.path" validate:"required"`
	LogLevel             string   `config:"log.level" validate:"oneof=debug info warn warning error"`
	SigningSecret        string   `config:"auth.signing_secret" validate:"required,min=16"`
	TokenTTLMinutes      int      `config:"token.ttl_minutes" validate:"min=1"`
	PruneIntervalMinutes int      `config:"token.prune_interval_minutes" validate:"min=1"`
}

// TokenTTL returns the lifetime of issued tokens.
func (c AppConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// PruneInterval returns how often expired revocations are dropped.
func (c AppConfig) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalMinutes) * time.Minute
}

// ClientConfig captures runtime configuration for the terminal client.
type ClientConfig struct {
	StorePath      string `config:"store.path" validate:"required"`
	Account        string `config:"store.account" validate:"required,max=190"`
	LogLevel       string `config:"log.level" validate:"oneof=debug info warn warning error"`
	RemoteURL      string `config:"remote.url" validate:"omitempty,url"`
	RemoteUsername string `config:"remote.username"`
	RemotePassword string `config:"remote.password"`
	BatchLimit     int    `config:"review.batch_limit" validate:"min=1"`
	MinimumDue     int    `config:"review.minimum_due" validate:"min=1,ltefield=BatchLimit"`
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{defaultAllowedOrigin})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("token.prune_interval_minutes", defaultPruneMinutes)
	configViper.SetDefault("store.path", defaultStorePath)
	configViper.SetDefault("store.account", defaultStoreAccount)
	configViper.SetDefault("review.batch_limit", defaultReviewBatchLimit)
	configViper.SetDefault("review.minimum_due", defaultReviewMinimumDue)
}

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load parses server configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          strings.TrimSpace(configViper.GetString("http.address")),
		AllowedOrigins:       configViper.GetStringSlice("http.allowed_origins"),
		DatabasePath:         strings.TrimSpace(configViper.GetString("database.path")),
		LogLevel:             strings.ToLower(strings.TrimSpace(configViper.GetString("log.level"))),
		SigningSecret:        configViper.GetString("auth.signing_secret"),
		TokenTTLMinutes:      configViper.GetInt("token.ttl_minutes"),
		PruneIntervalMinutes: configViper.GetInt("token.prune_interval_minutes"),
	}
	if err := validateStruct(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// LoadClient parses terminal client configuration from viper.
func LoadClient(configViper *viper.Viper) (ClientConfig, error) {
	cfg := ClientConfig{
		StorePath:      strings.TrimSpace(configViper.GetString("store.path")),
		Account:        strings.TrimSpace(configViper.GetString("store.account")),
		LogLevel:       strings.ToLower(strings.TrimSpace(configViper.GetString("log.level"))),
		RemoteURL:      strings.TrimRight(strings.TrimSpace(configViper.GetString("remote.url")), "/"),
		RemoteUsername: strings.TrimSpace(configViper.GetString("remote.username")),
		RemotePassword: configViper.GetString("remote.password"),
		BatchLimit:     configViper.GetInt("review.batch_limit"),
		MinimumDue:     configViper.GetInt("review.minimum_due"),
	}
	if err := validateStruct(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func newValidator() *validator.Validate {
	instance := validator.New()
	instance.RegisterTagNameFunc(func(field reflect.StructField) string {
		if key := field.Tag.Get("config"); key != "" {
			return key
		}
		return field.Name
	})
	return instance
}

func validateStruct(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		message := fmt.Sprintf("%s fails %s", fieldErr.Field(), fieldErr.Tag())
		if fieldErr.Param() != "" {
			message = fmt.Sprintf("%s=%s", message, fieldErr.Param())
		}
		messages = append(messages, message)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}
