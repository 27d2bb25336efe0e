package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.API.BaseURL = "https://crm.example.com"
	cfg.API.OrgID = "acme"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("defaults need api settings", func(t *testing.T) {
		err := Defaults().Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api.base_url")
	})

	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("org required", func(t *testing.T) {
		cfg := validConfig()
		cfg.API.OrgID = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-loopback bridge", func(t *testing.T) {
		cfg := validConfig()
		cfg.Bridge.ListenAddr = "0.0.0.0:17455"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "loopback")
	})

	t.Run("localhost is loopback", func(t *testing.T) {
		cfg := validConfig()
		cfg.Bridge.ListenAddr = "localhost:17455"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects zero cadence", func(t *testing.T) {
		cfg := validConfig()
		cfg.Refresh.FastSeconds = 0
		assert.Error(t, cfg.Validate())

		cfg = validConfig()
		cfg.Refresh.SlowMinutes = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestIntervals(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 5*time.Second, cfg.FastInterval())
	assert.Equal(t, 3*time.Minute, cfg.SlowInterval())
}

func TestCachePath(t *testing.T) {
	cfg := Defaults()
	cfg.Cache.Path = "/tmp/x.db"
	got, err := cfg.CachePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", got)

	cfg.Cache.Path = ""
	got, err = cfg.CachePath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, filepath.Join(".wacrm", "cache.db")))
}

// The commented template must parse and agree with Defaults() for every
// uncommented key.
func TestDefaultConfigTemplateMatchesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(DefaultConfigTemplate())))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	defaults := Defaults()
	assert.Equal(t, defaults.API.WindowDays, cfg.API.WindowDays)
	assert.Equal(t, defaults.Bridge.ListenAddr, cfg.Bridge.ListenAddr)
	assert.Equal(t, defaults.Refresh, cfg.Refresh)
	assert.Equal(t, defaults.UI, cfg.UI)
	assert.Equal(t, defaults.Debug, cfg.Debug)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".wacrm", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigTemplate(), string(data))
}
