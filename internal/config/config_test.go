package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100000, cfg.ReplayCapacity)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 0.9, cfg.Gamma)
	assert.Equal(t, 1000, cfg.TargetSyncEvery)
	assert.Equal(t, 100, cfg.ReportEvery)

	ac := cfg.AgentConfig()
	assert.Equal(t, 64, ac.Network.Filters)
	assert.Equal(t, 128, ac.Network.Hidden)
	assert.Equal(t, 30000.0, ac.EpsilonDecay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"gamma above one", func(c *Config) { c.Gamma = 1.5 }},
		{"epsilon inverted", func(c *Config) { c.EpsilonLow = 0.9 }},
		{"zero report interval", func(c *Config) { c.ReportEvery = 0 }},
		{"unknown opponent", func(c *Config) { c.Opponent = "oracle" }},
		{"no checkpoint target", func(c *Config) { c.CheckpointDir = "" }},
		{"nats without subject", func(c *Config) { c.NATSURL = "nats://x"; c.NATSSubject = "" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"zero stall window", func(c *Config) { c.StallAfter = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestHistoryFile(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "outs/1019_1530.parquet", cfg.HistoryFile("1019_1530"))
	cfg.HistoryPath = "/data/<tag>-reports.parquet"
	assert.Equal(t, "/data/1019_1530-reports.parquet", cfg.HistoryFile("1019_1530"))
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "landlord.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 64\nopponent: random\nepisodes: 500\nstall_after: 45s\n"), 0o644))
	t.Setenv("LANDLORD_EPISODES", "700")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, "random", cfg.Opponent)
	assert.Equal(t, 700, cfg.Episodes)
	assert.Equal(t, 0.9, cfg.Gamma)
	assert.Equal(t, 45*time.Second, cfg.StallAfter)
}

func TestLoad_Invalid(t *testing.T) {
	v := viper.New()
	v.Set("gamma", 0)
	_, err := Load(v, "")
	assert.Error(t, err)

	_, err = Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
