package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "reideval.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadDefaults(t *testing.T) {

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Report.TopK)
	assert.Equal(t, 80, cfg.Report.Bins)
	assert.Equal(t, "yaml", cfg.Report.Format)
	assert.Equal(t, 128, cfg.Model.Width)
	assert.Equal(t, 256, cfg.Model.Height)
	assert.False(t, cfg.History.Enabled)
}

func TestLoadFromFile(t *testing.T) {

	path := writeConfig(t, `
data:
  labels: market/labels.txt
  features: market/feats.bin
  num_query: 3368
model:
  name: osnet_ain
  mean: [0.5, 0.5, 0.5]
report:
  top_k: 10
  format: json
history:
  enabled: true
  path: /tmp/runs.db
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "market/labels.txt", cfg.Data.Labels)
	assert.Equal(t, 3368, cfg.Data.NumQuery)
	assert.Equal(t, "osnet_ain", cfg.Model.Name)
	assert.Equal(t, [3]float64{0.5, 0.5, 0.5}, cfg.Model.Mean)
	assert.Equal(t, 10, cfg.Report.TopK)
	assert.Equal(t, "json", cfg.Report.Format)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched values keep their defaults
	assert.Equal(t, 80, cfg.Report.Bins)
	assert.Equal(t, "console", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {

	t.Setenv("REIDEVAL_NUM_QUERY", "12")
	t.Setenv("REIDEVAL_REPORT_BINS", "20")
	t.Setenv("REIDEVAL_LOG_LEVEL", "warn")

	path := writeConfig(t, "data:\n  num_query: 5\nreport:\n  bins: 40\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Data.NumQuery)
	assert.Equal(t, 20, cfg.Report.Bins)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "data: [not, a, map]\n"))
	require.Error(t, err)

	t.Setenv("REIDEVAL_NUM_QUERY", "many")

	_, err = Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {

	valid := func() *Config {
		cfg := Defaults()
		cfg.Data.Labels = "labels.txt"
		cfg.Data.Features = "feats.bin"
		cfg.Data.NumQuery = 10
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing labels", func(c *Config) { c.Data.Labels = "" }, "data.labels"},
		{"no features or items", func(c *Config) { c.Data.Features = "" }, "data.features"},
		{"zero queries", func(c *Config) { c.Data.NumQuery = 0 }, "num_query"},
		{"items without model", func(c *Config) {
			c.Data.Features = ""
			c.Data.Items = "items.txt"
		}, "model.file"},
		{"bad top k", func(c *Config) { c.Report.TopK = 0 }, "report.top_k"},
		{"bad report format", func(c *Config) { c.Report.Format = "xml" }, "report.format"},
		{"bad log format", func(c *Config) { c.Log.Format = "text" }, "log.format"},
		{"history without path", func(c *Config) {
			c.History.Enabled = true
			c.History.Path = ""
		}, "history.path"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}
