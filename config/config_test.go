package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/sharedref/errors"
	"github.com/wippyai/sharedref/handle"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sharedref.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_Load_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func Test_Load_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func Test_Load_File(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
log:
  level: debug
  format: json
handles:
  atomic: true
scenarios:
  dir: `+dir+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Log:       LogConfig{Level: "debug", Format: "json"},
		Handles:   HandlesConfig{Atomic: true},
		Scenarios: ScenariosConfig{Dir: dir},
	}, cfg)
}

func Test_Load_EnvOverridesFile(t *testing.T) { //nolint:paralleltest // t.Setenv
	path := writeConfig(t, "log:\n  level: debug\nhandles:\n  atomic: false\n")
	t.Setenv("SHAREDREF_LOG_LEVEL", "warn")
	t.Setenv("SHAREDREF_HANDLES_ATOMIC", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Handles.Atomic)
	assert.Equal(t, "console", cfg.Log.Format)
}

func Test_Load_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    errors.Kind
	}{
		{"bad level", "log:\n  level: loud\n", errors.KindInvalidInput},
		{"bad format", "log:\n  format: xml\n", errors.KindInvalidInput},
		{"missing dir", "scenarios:\n  dir: /does/not/exist\n", errors.KindNotFound},
		{"bad yaml", "log: [\n", errors.KindInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err), "%v", err)
		})
	}
}

func TestConfig_Logger(t *testing.T) {
	cfg := Default()
	logger, err := cfg.Logger(false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1), "debug disabled at info")

	logger, err = cfg.Logger(true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1), "verbose enables debug")

	cfg.Log.Format = "json"
	_, err = cfg.Logger(false)
	require.NoError(t, err)
}

func TestConfig_HandleOptions(t *testing.T) {
	cfg := Default()
	v := 1
	assert.Equal(t, handle.ModeUnsynchronized, handle.New(&v, cfg.HandleOptions()...).Mode())

	cfg.Handles.Atomic = true
	assert.Equal(t, handle.ModeAtomic, handle.New(&v, cfg.HandleOptions()...).Mode())
}

func TestConfig_YAML(t *testing.T) {
	cfg := Default()
	cfg.Handles.Atomic = true

	out, err := cfg.YAML()
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &back))
	assert.Equal(t, *cfg, back)
}
