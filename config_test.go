package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/42wim/wmix/report"
	"github.com/42wim/wmix/wmi"
)

// isolate runs the test in dir with an empty user config directory.
func isolate(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestParseConfigDefaults(t *testing.T) {
	isolate(t, t.TempDir())

	v, err := parseConfig("")
	require.Error(t, err)
	assert.IsType(t, viper.ConfigFileNotFoundError{}, err)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, wmi.DefaultNamespace, cfg.Namespace)
	assert.Equal(t, report.FormatText, cfg.Output)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, wmi.MultiThreaded, cfg.Threading)
	assert.Equal(t, wmi.BatchSize, cfg.BatchSize)
	assert.Equal(t, ":9182", cfg.Listen)
}

func TestParseConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "wmix.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
namespace: 'root\wmi'
output: json
log-level: debug
threading: apartment
batch-size: 25
`), 0o600))

	v, err := parseConfig(file)
	require.NoError(t, err)
	assert.Equal(t, file, v.ConfigFileUsed())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, `root\wmi`, cfg.Namespace)
	assert.Equal(t, report.FormatJSON, cfg.Output)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, wmi.ApartmentThreaded, cfg.Threading)
	assert.Equal(t, 25, cfg.BatchSize)
}

func TestParseConfigSearchPath(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wmix.yaml"), []byte("output: yaml\n"), 0o600))

	v, err := parseConfig("")
	require.NoError(t, err)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, report.FormatYAML, cfg.Output)
}

func TestParseConfigEnv(t *testing.T) {
	isolate(t, t.TempDir())
	t.Setenv("WMIX_OUTPUT", "table")
	t.Setenv("WMIX_BATCH_SIZE", "3")

	v, _ := parseConfig("")
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, report.FormatTable, cfg.Output)
	assert.Equal(t, 3, cfg.BatchSize)
}

func TestLoadConfigInvalid(t *testing.T) {
	for key, val := range map[string]string{
		"output":    "xml",
		"log-level": "loud",
		"threading": "fibers",
	} {
		v := viper.New()
		v.Set("output", "text")
		v.Set("log-level", "info")
		v.Set("threading", "mta")
		v.Set(key, val)

		_, err := loadConfig(v)
		assert.Error(t, err, key)
	}
}

func TestParseThreading(t *testing.T) {
	for in, want := range map[string]wmi.ThreadingModel{
		"":              wmi.MultiThreaded,
		"MTA":           wmi.MultiThreaded,
		"multithreaded": wmi.MultiThreaded,
		"sta":           wmi.ApartmentThreaded,
		"Apartment":     wmi.ApartmentThreaded,
	} {
		got, err := parseThreading(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
