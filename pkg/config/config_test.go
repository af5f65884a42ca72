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

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(viper.New(), filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 3, cfg.NavMaxAttempts)
	assert.Equal(t, 1500*time.Millisecond, cfg.NavBaseDelay())
	assert.Equal(t, 25, cfg.SearchPageSize)
	assert.Equal(t, 2, cfg.MaxEmptyPages)
	assert.Equal(t, 3, cfg.MaxConsecutiveSkips)
	assert.Equal(t, 48*time.Hour, cfg.SeenTTL())
	assert.Empty(t, cfg.PostgresURL)

	lo, hi := cfg.PacingRange()
	assert.Equal(t, 2*time.Second, lo)
	assert.Equal(t, 3*time.Second, hi)
}

func TestLoad_FileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(file, []byte("SERVER_PORT=9090\nBROWSER_PROXIES=http://a:1, http://b:2\nPACING_MIN_MS=0\n"), 0o644))
	t.Setenv("NAV_MAX_ATTEMPTS", "5")

	cfg, err := load(viper.New(), file)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 5, cfg.NavMaxAttempts)
	assert.Equal(t, []string{"http://a:1", "http://b:2"}, cfg.Proxies())
	assert.Equal(t, 0, cfg.PacingMinMS)
	assert.Nil(t, cfg.UserAgents())
}
