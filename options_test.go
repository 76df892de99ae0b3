package shinara

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("SHINARA_BASE_URL", "https://staging.example.com")
	t.Setenv("SHINARA_STORE_PATH", "/tmp/attribution.db")
	t.Setenv("SHINARA_HTTP_TIMEOUT", "5s")

	opts, err := OptionsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com", opts.BaseURL)
	assert.Equal(t, "/tmp/attribution.db", opts.StorePath)
	assert.Equal(t, 5*time.Second, opts.HTTPTimeout)
}

func TestOptionsFromEnv_DefaultsWhenUnset(t *testing.T) {
	opts, err := OptionsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions().BaseURL, opts.BaseURL)
	assert.Equal(t, "shinara.db", opts.StorePath)
}

func TestOptionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shinara.yaml")
	content := `
base_url: https://staging.example.com
store_path: /tmp/attribution.db
http_timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	opts, err := OptionsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com", opts.BaseURL)
	assert.Equal(t, "/tmp/attribution.db", opts.StorePath)
	assert.Equal(t, 5*time.Second, opts.HTTPTimeout)
}

func TestOptionsFromFile_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shinara.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_path: custom.db\n"), 0644))

	opts, err := OptionsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom.db", opts.StorePath)
	assert.Equal(t, DefaultOptions().BaseURL, opts.BaseURL)
}

func TestOptionsFromFile_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shinara.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_timeout: soon\n"), 0644))

	_, err := OptionsFromFile(path)
	require.Error(t, err)
}

func TestOptionsFromFile_Missing(t *testing.T) {
	_, err := OptionsFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, DefaultOptions().BaseURL, opts.BaseURL)
	assert.Equal(t, "shinara.db", opts.StorePath)
	assert.Equal(t, 10*time.Second, opts.HTTPTimeout)
	assert.NotNil(t, opts.Logger)

	custom := Options{BaseURL: "https://example.com"}.withDefaults()
	assert.Equal(t, "https://example.com", custom.BaseURL)
}
