package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readSaved(t *testing.T, path string) Config {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

func TestSaveAPI_UpdatesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# wacrm Configuration

# CRM backend connection
api:
  base_url: https://old.example.com
  org_id: old-org
  window_days: 60

refresh:
  fast_seconds: 9
`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	err := SaveAPI(path, APIConfig{
		BaseURL:    "https://new.example.com",
		OrgID:      "new-org",
		WindowDays: 45,
	})
	require.NoError(t, err)

	cfg := readSaved(t, path)
	assert.Equal(t, "https://new.example.com", cfg.API.BaseURL)
	assert.Equal(t, "new-org", cfg.API.OrgID)
	assert.Equal(t, 45, cfg.API.WindowDays)
	assert.Equal(t, 9, cfg.Refresh.FastSeconds, "other sections untouched")
}

func TestSaveAPI_PreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# top comment stays
api:
  # org comment stays
  org_id: old-org

# refresh comment stays
refresh:
  fast_seconds: 5
`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	require.NoError(t, SaveAPI(path, APIConfig{OrgID: "new-org", WindowDays: 30}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# top comment stays")
	assert.Contains(t, content, "# org comment stays")
	assert.Contains(t, content, "# refresh comment stays")
	assert.Contains(t, content, "new-org")
}

func TestSaveAPI_CreatesFileWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, SaveAPI(path, APIConfig{
		BaseURL:    "https://crm.example.com",
		OrgID:      "acme",
		WindowDays: 60,
	}))

	cfg := readSaved(t, path)
	assert.Equal(t, "acme", cfg.API.OrgID)
	assert.Equal(t, 60, cfg.API.WindowDays)
}

func TestSaveAPI_WindowDaysStaysNumeric(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SaveAPI(path, APIConfig{OrgID: "acme", WindowDays: 45}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "window_days: 45"),
		"expected unquoted int, got:\n%s", string(data))
}
