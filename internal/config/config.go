// Package config loads and validates platform configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host     string `yaml:"host" json:"host" mapstructure:"host"`
	Port     int    `yaml:"port" json:"port" mapstructure:"port"`
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
}

// DatabaseConfig represents persistence configuration. Driver selects the
// gorm dialect; sqlite is the default and postgres is available for shared
// deployments.
type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
}

// AnomalyConfig represents isolation-forest hyperparameters. Seed is a fixed
// constant so runs on identical input are bit-reproducible.
type AnomalyConfig struct {
	Trees         int     `yaml:"trees" json:"trees" mapstructure:"trees"`
	SampleSize    int     `yaml:"sample_size" json:"sample_size" mapstructure:"sample_size"`
	Contamination float64 `yaml:"contamination" json:"contamination" mapstructure:"contamination"`
	Seed          int64   `yaml:"seed" json:"seed" mapstructure:"seed"`
}

// SchedulerConfig represents the autonomous pipeline scheduler.
type SchedulerConfig struct {
	Enabled            bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Interval           time.Duration `yaml:"interval" json:"interval" mapstructure:"interval"`
	RiskThresholdEmail float64       `yaml:"risk_threshold_email" json:"risk_threshold_email" mapstructure:"risk_threshold_email"`
}

// MailerConfig represents simulated-phishing dispatch settings. Mode
// "log_only" records deliveries without touching SMTP; "smtp" delivers
// over STARTTLS with the configured credentials.
type MailerConfig struct {
	Mode            string `yaml:"mode" json:"mode" mapstructure:"mode"`
	BaseURL         string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	RecipientDomain string `yaml:"recipient_domain" json:"recipient_domain" mapstructure:"recipient_domain"`
	SMTPHost        string `yaml:"smtp_host" json:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort        int    `yaml:"smtp_port" json:"smtp_port" mapstructure:"smtp_port"`
	SMTPEmail       string `yaml:"smtp_email" json:"smtp_email" mapstructure:"smtp_email"`
	SMTPPassword    string `yaml:"smtp_password" json:"smtp_password" mapstructure:"smtp_password"`
}

// MirrorConfig represents the optional best-effort external mirror.
// Backend is one of "none", "redis", "kafka".
type MirrorConfig struct {
	Backend      string   `yaml:"backend" json:"backend" mapstructure:"backend"`
	RedisAddr    string   `yaml:"redis_addr" json:"redis_addr" mapstructure:"redis_addr"`
	KafkaBrokers []string `yaml:"kafka_brokers" json:"kafka_brokers" mapstructure:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic" json:"kafka_topic" mapstructure:"kafka_topic"`
}

// TrainingConfig represents remediation page locations handed out with
// training decisions.
type TrainingConfig struct {
	MicroURL     string `yaml:"micro_url" json:"micro_url" mapstructure:"micro_url"`
	MandatoryURL string `yaml:"mandatory_url" json:"mandatory_url" mapstructure:"mandatory_url"`
}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" json:"database" mapstructure:"database"`
	Anomaly   AnomalyConfig   `yaml:"anomaly" json:"anomaly" mapstructure:"anomaly"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler" mapstructure:"scheduler"`
	Mailer    MailerConfig    `yaml:"mailer" json:"mailer" mapstructure:"mailer"`
	Mirror    MirrorConfig    `yaml:"mirror" json:"mirror" mapstructure:"mirror"`
	Training  TrainingConfig  `yaml:"training" json:"training" mapstructure:"training"`
}

// Load reads configuration from the given file (optional) with environment
// overrides under the SECURAWARE_ prefix, applies defaults, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("SECURAWARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/securaware.db")

	v.SetDefault("anomaly.trees", 100)
	v.SetDefault("anomaly.sample_size", 256)
	v.SetDefault("anomaly.contamination", 0.05)
	v.SetDefault("anomaly.seed", 42)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", 5*time.Minute)
	v.SetDefault("scheduler.risk_threshold_email", 0.6)

	v.SetDefault("mailer.mode", "log_only")
	v.SetDefault("mailer.base_url", "http://localhost:8000")
	v.SetDefault("mailer.recipient_domain", "company.com")
	v.SetDefault("mailer.smtp_host", "smtp.gmail.com")
	v.SetDefault("mailer.smtp_port", 587)
	v.SetDefault("mailer.smtp_email", "")
	v.SetDefault("mailer.smtp_password", "")

	v.SetDefault("mirror.backend", "none")
	v.SetDefault("mirror.redis_addr", "localhost:6379")
	v.SetDefault("mirror.kafka_brokers", []string{"localhost:9092"})
	v.SetDefault("mirror.kafka_topic", "securaware.state_transitions")

	v.SetDefault("training.micro_url", "https://example.com/micro-training-placeholder")
	v.SetDefault("training.mandatory_url", "https://example.com/mandatory-training-placeholder")
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	switch cfg.Mirror.Backend {
	case "none", "redis", "kafka":
	default:
		return fmt.Errorf("unsupported mirror backend %q", cfg.Mirror.Backend)
	}
	switch cfg.Mailer.Mode {
	case "log_only", "smtp":
	default:
		return fmt.Errorf("unsupported mailer mode %q", cfg.Mailer.Mode)
	}
	if cfg.Anomaly.Trees <= 0 {
		return fmt.Errorf("anomaly.trees must be positive, got %d", cfg.Anomaly.Trees)
	}
	if cfg.Anomaly.Contamination <= 0 || cfg.Anomaly.Contamination >= 0.5 {
		return fmt.Errorf("anomaly.contamination must be in (0, 0.5), got %f", cfg.Anomaly.Contamination)
	}
	if cfg.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if cfg.Scheduler.RiskThresholdEmail < 0 || cfg.Scheduler.RiskThresholdEmail > 1 {
		return fmt.Errorf("scheduler.risk_threshold_email must be in [0,1]")
	}
	return nil
}
