// Package config resolves process configuration from defaults, an optional
// YAML file and WHISPERBRIDGE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Addr is the listen address of the HTTP and WebSocket surface.
	Addr string `mapstructure:"addr" validate:"required"`

	// ModelPath points at a ggml model file directly. When set it wins over
	// ModelVariant.
	ModelPath string `mapstructure:"model_path"`

	// ModelVariant names a manifest entry resolved inside DataDir.
	ModelVariant string `mapstructure:"model_variant"`

	// DataDir holds downloaded models and other managed state.
	DataDir string `mapstructure:"data_dir" validate:"required"`

	// Threads is the per-pass thread count. Zero lets the engine pick.
	Threads int `mapstructure:"threads" validate:"gte=0,lte=256"`

	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error"`

	// MaxBufferSeconds caps how much audio a streaming session may hold
	// before a flush is forced.
	MaxBufferSeconds int `mapstructure:"max_buffer_seconds" validate:"gte=1,lte=3600"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration. file may be empty, in which case
// whisperbridge.yaml is searched for in the working directory and under
// $HOME/.config/whisperbridge; a .env file in the working directory is
// honored either way.
func Load(file string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("addr", ":8080")
	v.SetDefault("model_path", "")
	v.SetDefault("model_variant", "base.en")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("threads", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("max_buffer_seconds", 300)

	v.SetEnvPrefix("WHISPERBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	} else {
		v.SetConfigName("whisperbridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/whisperbridge")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints plus the rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("config: field %s fails constraint %q", f.Field(), f.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.ModelPath == "" && c.ModelVariant == "" {
		return errors.New("config: either model_path or model_variant must be set")
	}
	return nil
}

// ModelsDir is where managed model files live.
func (c *Config) ModelsDir() string {
	return filepath.Join(c.DataDir, "models")
}
