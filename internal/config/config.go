package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the immutable run configuration handed to the orchestrator
// at startup. Nothing here is read from process-wide state afterwards.
type Config struct {
	Providers  []string         `mapstructure:"providers"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Timeouts   TimeoutsConfig   `mapstructure:"timeouts"`
	Dirs       DirsConfig       `mapstructure:"dirs"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	// HoldingsCaps overrides the per-profile holdings cap, keyed by
	// provider name; 0 keeps every row.
	HoldingsCaps map[string]int `mapstructure:"holdings_caps"`
}

// LimitsConfig bounds how much work a run performs per provider.
type LimitsConfig struct {
	FundsPerProvider int           `mapstructure:"funds_per_provider"`
	BatchSize        int           `mapstructure:"batch_size"`
	BatchDelay       time.Duration `mapstructure:"batch_delay"`
}

// TimeoutsConfig carries the per-operation deadlines. Every
// network-bound wait in the pipeline uses one of these; none of them
// escalates past the page it applies to.
type TimeoutsConfig struct {
	Page     time.Duration `mapstructure:"page"`
	Selector time.Duration `mapstructure:"selector"`
	Consent  time.Duration `mapstructure:"consent"`
	Download time.Duration `mapstructure:"download"`
}

// DirsConfig holds the output and download staging directories.
type DirsConfig struct {
	Output  string `mapstructure:"output"`
	Staging string `mapstructure:"staging"`
}

// ClassifierConfig configures the external language-model capability.
type ClassifierConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// MaxFragmentBytes is the input-size ceiling for HTML fragments
	// sent to the classifier.
	MaxFragmentBytes int           `mapstructure:"max_fragment_bytes"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// BrowserConfig configures the shared browser process.
type BrowserConfig struct {
	Headless bool   `mapstructure:"headless"`
	ProxyURL string `mapstructure:"proxy_url"`
}

// Load reads configuration from an optional config file and the
// environment and applies defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ETFHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so env-only values
	// need their keys registered up front.
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("browser.proxy_url", "")

	setDefaults(v)

	// Only a genuinely absent file is optional; a file that exists but
	// cannot be parsed must halt startup instead of being ignored.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers", []string{})

	v.SetDefault("limits.funds_per_provider", 2)
	v.SetDefault("limits.batch_size", 1)
	v.SetDefault("limits.batch_delay", "61s")

	v.SetDefault("timeouts.page", "90s")
	v.SetDefault("timeouts.selector", "60s")
	v.SetDefault("timeouts.consent", "7s")
	v.SetDefault("timeouts.download", "60s")

	v.SetDefault("dirs.output", "etf_data")
	v.SetDefault("dirs.staging", "downloads")

	v.SetDefault("classifier.model", "gemini-2.0-flash-lite")
	v.SetDefault("classifier.max_fragment_bytes", 200000)
	v.SetDefault("classifier.timeout", "60s")

	v.SetDefault("browser.headless", true)
}

func validate(cfg *Config) error {
	if cfg.Classifier.APIKey == "" {
		return fmt.Errorf("classifier.api_key is required (ETFHARVEST_CLASSIFIER_API_KEY)")
	}
	if cfg.Limits.FundsPerProvider <= 0 {
		return fmt.Errorf("limits.funds_per_provider must be positive")
	}
	if cfg.Limits.BatchSize <= 0 {
		return fmt.Errorf("limits.batch_size must be positive")
	}
	if cfg.Classifier.MaxFragmentBytes <= 0 {
		return fmt.Errorf("classifier.max_fragment_bytes must be positive")
	}
	return nil
}
