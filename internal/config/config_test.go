package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
quality:
  outlier_threshold: 4.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 4.5, cfg.Quality.OutlierThreshold)
	// untouched sections keep defaults
	assert.Equal(t, 7, cfg.Quality.OutlierWindow)
	assert.Equal(t, 2*time.Minute, cfg.Extract.Timeout)
	assert.Equal(t, []string{"BTC"}, cfg.Defaults.Tickers)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("CD_TEST_LEVEL", "debug")
	path := writeConfig(t, `
logging:
  level: ${CD_TEST_LEVEL:info}
app:
  env: ${CD_TEST_UNSET:staging}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "staging", cfg.App.Env)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"bad threshold", "quality:\n  outlier_threshold: 0\n"},
		{"bad stale run", "quality:\n  stale_run_length: 1\n"},
		{"bad provider budget", "extract:\n  providers:\n    x:\n      requests_per_sec: 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
