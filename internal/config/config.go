package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	NumVerify NumVerifyConfig `yaml:"numverify" mapstructure:"numverify"`
	Whapi     WhapiConfig     `yaml:"whapi" mapstructure:"whapi"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Decision  DecisionConfig  `yaml:"decision" mapstructure:"decision"`
	Learning  LearningConfig  `yaml:"learning" mapstructure:"learning"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NumVerifyConfig holds NumVerify (format check) API settings. An empty key
// is valid: the format check then degrades to a permissive default.
type NumVerifyConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// WhapiConfig holds Whapi.cloud (WhatsApp availability) API settings.
type WhapiConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ProvidersConfig tunes outbound provider call behavior.
type ProvidersConfig struct {
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PrimaryAttempts  int     `yaml:"primary_attempts" mapstructure:"primary_attempts"`
	FallbackAttempts int     `yaml:"fallback_attempts" mapstructure:"fallback_attempts"`
	RatePerSecond    float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst        int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// DecisionConfig configures the rule-based decision engine.
type DecisionConfig struct {
	PolicyFile string `yaml:"policy_file" mapstructure:"policy_file"`
}

// LearningConfig configures the background recorder.
type LearningConfig struct {
	QueueSize           int `yaml:"queue_size" mapstructure:"queue_size"`
	JobTimeoutSecs      int `yaml:"job_timeout_secs" mapstructure:"job_timeout_secs"`
	ShutdownTimeoutSecs int `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VALIDATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "validator.db")
	v.SetDefault("numverify.key", "")
	v.SetDefault("numverify.base_url", "http://apilayer.net/api")
	v.SetDefault("whapi.token", "")
	v.SetDefault("whapi.base_url", "https://gate.whapi.cloud")
	v.SetDefault("decision.policy_file", "")
	v.SetDefault("providers.timeout_secs", 10)
	v.SetDefault("providers.primary_attempts", 3)
	v.SetDefault("providers.fallback_attempts", 2)
	v.SetDefault("providers.rate_per_second", 5)
	v.SetDefault("providers.rate_burst", 10)
	v.SetDefault("learning.queue_size", 256)
	v.SetDefault("learning.job_timeout_secs", 5)
	v.SetDefault("learning.shutdown_timeout_secs", 10)
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
