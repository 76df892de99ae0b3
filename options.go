package shinara

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/shinara/shinara-go/internal/gateway"
)

// Options configures the SDK.
//
// The zero value is usable: New fills every empty field from
// DefaultOptions.
type Options struct {
	// BaseURL overrides the gateway host. Intended for tests and staging;
	// production builds leave it empty.
	BaseURL string `env:"SHINARA_BASE_URL"`

	// StorePath is the SQLite file holding attribution state.
	StorePath string `env:"SHINARA_STORE_PATH"`

	// HTTPTimeout bounds each gateway request. The SDK imposes no other
	// timeout and never retries.
	HTTPTimeout time.Duration `env:"SHINARA_HTTP_TIMEOUT"`

	// Logger receives SDK logs. Defaults to slog.Default().
	Logger *slog.Logger `env:"-"`
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		BaseURL:     gateway.DefaultBaseURL,
		StorePath:   "shinara.db",
		HTTPTimeout: 10 * time.Second,
	}
}

// OptionsFromEnv loads options from SHINARA_* environment variables on top
// of the defaults.
func OptionsFromEnv() (Options, error) {
	opts := DefaultOptions()
	if err := env.Parse(&opts); err != nil {
		return Options{}, fmt.Errorf("parse env: %w", err)
	}
	return opts, nil
}

// optionsFile is the YAML schema of an options file. Durations are
// strings ("5s") because yaml.v3 has no native time.Duration support.
type optionsFile struct {
	BaseURL     string `yaml:"base_url"`
	StorePath   string `yaml:"store_path"`
	HTTPTimeout string `yaml:"http_timeout"`
}

// OptionsFromFile loads options from a YAML file on top of the defaults.
// Absent keys keep their default values.
func OptionsFromFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read options file: %w", err)
	}

	var file optionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Options{}, fmt.Errorf("parse options file: %w", err)
	}

	opts := DefaultOptions()
	if file.BaseURL != "" {
		opts.BaseURL = file.BaseURL
	}
	if file.StorePath != "" {
		opts.StorePath = file.StorePath
	}
	if file.HTTPTimeout != "" {
		timeout, err := time.ParseDuration(file.HTTPTimeout)
		if err != nil {
			return Options{}, fmt.Errorf("parse options file: http_timeout: %w", err)
		}
		opts.HTTPTimeout = timeout
	}
	return opts, nil
}

// withDefaults fills empty fields from DefaultOptions.
func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.BaseURL == "" {
		o.BaseURL = defaults.BaseURL
	}
	if o.StorePath == "" {
		o.StorePath = defaults.StorePath
	}
	if o.HTTPTimeout == 0 {
		o.HTTPTimeout = defaults.HTTPTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
