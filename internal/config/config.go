package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cartridge/landlord/internal/agent"
	"github.com/cartridge/landlord/internal/network"
)

// Config holds all trainer configuration
type Config struct {
	// Learner
	ReplayCapacity  int     `mapstructure:"replay_capacity"`
	BatchSize       int     `mapstructure:"batch_size"`
	Gamma           float64 `mapstructure:"gamma"`
	EpsilonHigh     float64 `mapstructure:"epsilon_high"`
	EpsilonLow      float64 `mapstructure:"epsilon_low"`
	EpsilonDecay    float64 `mapstructure:"epsilon_decay"`
	TargetSyncEvery int     `mapstructure:"target_sync_every"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	Filters         int     `mapstructure:"filters"`
	Hidden          int     `mapstructure:"hidden"`

	// Episode management
	Episodes    int    `mapstructure:"episodes"`
	ReportEvery int    `mapstructure:"report_every"`
	Seed        int64  `mapstructure:"seed"`
	Opponent    string `mapstructure:"opponent"`

	// Persistence
	CheckpointDir string `mapstructure:"checkpoint_dir"`
	CheckpointDSN string `mapstructure:"checkpoint_dsn"`
	HistoryPath   string `mapstructure:"history_path"`

	// Events and status
	NATSURL     string        `mapstructure:"nats_url"`
	NATSSubject string        `mapstructure:"nats_subject"`
	StatusAddr  string        `mapstructure:"status_addr"`
	StallAfter  time.Duration `mapstructure:"stall_after"`

	// Evaluation
	EvaluateEpisodes int    `mapstructure:"evaluate_episodes"`
	Checkpoint       string `mapstructure:"checkpoint"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		ReplayCapacity:   100000,
		BatchSize:        32,
		Gamma:            0.9,
		EpsilonHigh:      0.5,
		EpsilonLow:       0.01,
		EpsilonDecay:     30000,
		TargetSyncEvery:  1000,
		LearningRate:     1e-4,
		Filters:          network.DefaultConfig().Filters,
		Hidden:           network.DefaultConfig().Hidden,
		Episodes:         100000,
		ReportEvery:      100,
		Seed:             0, // time based
		Opponent:         "heuristic",
		CheckpointDir:    "models",
		HistoryPath:      "", // outs/<tag>.parquet
		NATSSubject:      "landlord",
		StallAfter:       2 * time.Minute,
		EvaluateEpisodes: 1000,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.AgentConfig().Validate(); err != nil {
		return err
	}
	if c.Episodes < 0 {
		return fmt.Errorf("episodes must not be negative")
	}
	if c.ReportEvery <= 0 {
		return fmt.Errorf("report_every must be positive")
	}
	switch c.Opponent {
	case "heuristic", "random":
	default:
		return fmt.Errorf("opponent must be heuristic or random, got %q", c.Opponent)
	}
	if c.CheckpointDir == "" && c.CheckpointDSN == "" {
		return fmt.Errorf("checkpoint_dir or checkpoint_dsn is required")
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		return fmt.Errorf("nats_subject is required when nats_url is set")
	}
	if c.StallAfter <= 0 {
		return fmt.Errorf("stall_after must be positive")
	}
	if c.EvaluateEpisodes <= 0 {
		return fmt.Errorf("evaluate_episodes must be positive")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// AgentConfig extracts the learner hyper-parameters.
func (c *Config) AgentConfig() agent.Config {
	return agent.Config{
		ReplayCapacity:  c.ReplayCapacity,
		BatchSize:       c.BatchSize,
		Gamma:           c.Gamma,
		EpsilonHigh:     c.EpsilonHigh,
		EpsilonLow:      c.EpsilonLow,
		EpsilonDecay:    c.EpsilonDecay,
		TargetSyncEvery: c.TargetSyncEvery,
		LearningRate:    c.LearningRate,
		Network:         network.Config{Filters: c.Filters, Hidden: c.Hidden},
	}
}

// HistoryFile returns the report history location for a run tag.
func (c *Config) HistoryFile(tag string) string {
	if c.HistoryPath != "" {
		return strings.ReplaceAll(c.HistoryPath, "<tag>", tag)
	}
	return "outs/" + tag + ".parquet"
}

// SetDefaults registers every default with v so that env vars and config
// files can override keys that have no flag.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("replay_capacity", d.ReplayCapacity)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("gamma", d.Gamma)
	v.SetDefault("epsilon_high", d.EpsilonHigh)
	v.SetDefault("epsilon_low", d.EpsilonLow)
	v.SetDefault("epsilon_decay", d.EpsilonDecay)
	v.SetDefault("target_sync_every", d.TargetSyncEvery)
	v.SetDefault("learning_rate", d.LearningRate)
	v.SetDefault("filters", d.Filters)
	v.SetDefault("hidden", d.Hidden)
	v.SetDefault("episodes", d.Episodes)
	v.SetDefault("report_every", d.ReportEvery)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("opponent", d.Opponent)
	v.SetDefault("checkpoint_dir", d.CheckpointDir)
	v.SetDefault("checkpoint_dsn", d.CheckpointDSN)
	v.SetDefault("history_path", d.HistoryPath)
	v.SetDefault("nats_url", d.NATSURL)
	v.SetDefault("nats_subject", d.NATSSubject)
	v.SetDefault("status_addr", d.StatusAddr)
	v.SetDefault("stall_after", d.StallAfter)
	v.SetDefault("evaluate_episodes", d.EvaluateEpisodes)
	v.SetDefault("checkpoint", d.Checkpoint)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// Load reads the optional config file, environment (LANDLORD_*) and any
// flags already bound to v, then validates the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("LANDLORD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
