package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "database:\n  dsn: " + filepath.Join(dir, "users.db") + "\n" +
		"cache:\n  backend: memory\n" +
		"log:\n  backend: slog\n  level: error\n"
	p := filepath.Join(dir, "usercache.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWarmEmptyDatabase(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "warm")
	require.NoError(t, err)
	assert.Contains(t, out, "Starting cache warming...")
	assert.Contains(t, out, "Cached user list with 0 users")
	assert.Contains(t, out, "Successfully warmed cache with 0 users")
}

func TestStatsJSON(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "stats", "--json")
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, float64(0), st["key_count"])
	assert.Equal(t, "memory", st["server_version"])
}

func TestStatsText(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "keys:               0")
	assert.Contains(t, out, "server version:     memory")
}

func TestBadConfigFails(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "stats")
	require.Error(t, err)
}
