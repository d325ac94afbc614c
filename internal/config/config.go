package config

import (
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sources   SourcesConfig   `yaml:"sources"`
	Routing   RoutingConfig   `yaml:"routing"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + strconv.Itoa(d.Port) + "/" + d.Name + "?sslmode=disable"
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`

	// When LogFile is set, logs are written there with rotation instead of
	// stdout.
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
}

// SourcesConfig describes the external collaborators the compiler and
// readiness probe talk to.
type SourcesConfig struct {
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Repository RepositoryConfig `yaml:"repository"`
	ModelHost  ModelHostConfig  `yaml:"model_host"`
}

// KnowledgeConfig points at the Knowledge Store (top-K lookups by free-text
// query over categorized collections).
type KnowledgeConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	TopK    int           `yaml:"top_k"`
}

// RepositoryConfig points at the Repository Host (file and tree lookups).
type RepositoryConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ModelHostConfig points at the local model host used for the
// Model-Availability lookups and the self-hosted liveness probe.
type ModelHostConfig struct {
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
}

type RoutingConfig struct {
	ProbeInterval      time.Duration `yaml:"probe_interval"`
	ProbeTimeout       time.Duration `yaml:"probe_timeout"`
	UnhealthyThreshold float64       `yaml:"unhealthy_threshold"`
	MaxFallbacks       int           `yaml:"max_fallbacks"`
	DecisionLogSize    int           `yaml:"decision_log_size"`
	Policy             PolicyConfig  `yaml:"policy"`
}

// PolicyConfig controls the optional tier-admission policy gate. With no
// bundle configured the gate is inactive and routing is unconstrained.
type PolicyConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "loom",
			User:            "loom",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addresses: []string{"localhost:6379"},
			DB:        0,
			PoolSize:  50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:      "info",
			LogFormat:     "json",
			MetricsPort:   9090,
			LogMaxSizeMB:  50,
			LogMaxBackups: 3,
			LogMaxAgeDays: 14,
		},
		Sources: SourcesConfig{
			Knowledge: KnowledgeConfig{
				BaseURL: "http://atelier-knowledge:8200",
				Timeout: 5 * time.Second,
				TopK:    5,
			},
			Repository: RepositoryConfig{
				BaseURL: "http://atelier-repohost:8300",
				Timeout: 5 * time.Second,
			},
			ModelHost: ModelHostConfig{
				Host:    "http://localhost:11434",
				Timeout: 5 * time.Second,
			},
		},
		Routing: RoutingConfig{
			ProbeInterval:      60 * time.Second,
			ProbeTimeout:       5 * time.Second,
			UnhealthyThreshold: 0.3,
			MaxFallbacks:       3,
			DecisionLogSize:    1024,
			Policy: PolicyConfig{
				Enabled:           false,
				BundlePath:        "/etc/loom/policies",
				EvaluationTimeout: 100 * time.Millisecond,
			},
		},
	}
}
