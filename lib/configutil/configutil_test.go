package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string `json:"name"`
	Workers int    `json:"workers"`
	Nested  struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
	} `json:"nested"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(name, []byte(`{
		// comments are allowed
		"name": "base",
		"workers": 2,
		"nested": {"path": "data"},
	}`), 0666))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{"workers": 8}`), 0666))

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "base", cfg.Name)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, "data", cfg.Nested.Path)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWithDefaults(t *testing.T) {
	var cfg testConfig
	cfg.Workers = 3

	var defaults testConfig
	defaults.Name = "default"
	defaults.Workers = 4
	defaults.Nested.Path = "data"

	out, err := WithDefaults(cfg, defaults)
	require.NoError(t, err)
	require.Equal(t, "default", out.Name)
	require.Equal(t, 3, out.Workers)
	require.Equal(t, "data", out.Nested.Path)
}
