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
	path := filepath.Join(t.TempDir(), "scout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitialize_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Initialize(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.False(t, cfg.Research.Autonomous())
	assert.Equal(t, 0.6, cfg.Research.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.Queue.MaxConcurrent)
	assert.Equal(t, 2*time.Second, cfg.Queue.PollInterval.Std())
	assert.Equal(t, 5, cfg.Crew.DefaultMaxIterations)
	assert.True(t, cfg.Crew.Parallel())
	assert.Equal(t, 1, cfg.Crew.IterationsForDepth("quick"))
	assert.Equal(t, 2, cfg.Crew.IterationsForDepth("medium"))
	assert.Equal(t, 4, cfg.Crew.IterationsForDepth("deep"))
	assert.Equal(t, 100, cfg.Sessions.MaxEvents)
	assert.True(t, cfg.MaskingEnabled())
}

func TestInitialize_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
research:
  autonomous_enabled: true
  confidence_threshold: 0.75
  session_cooldown: 10m
queue:
  max_concurrent: 4
  task_timeout: 90s
crew:
  parallel_specialists: false
  depth_iterations:
    deep: 6
`)

	cfg, err := Initialize(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset fields keep defaults")
	assert.True(t, cfg.Research.Autonomous())
	assert.Equal(t, 0.75, cfg.Research.ConfidenceThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Research.SessionCooldown.Std())
	assert.Equal(t, 4, cfg.Queue.MaxConcurrent)
	assert.Equal(t, 90*time.Second, cfg.Queue.TaskTimeout.Std())
	assert.Equal(t, 50, cfg.Queue.MaxQueueSize, "unset queue fields keep defaults")
	assert.False(t, cfg.Crew.Parallel())
	assert.Equal(t, 6, cfg.Crew.IterationsForDepth("deep"))
	assert.Equal(t, 1, cfg.Crew.IterationsForDepth("quick"), "unmentioned depth keys keep defaults")
}

func TestInitialize_EnvExpansion(t *testing.T) {
	t.Setenv("SCOUT_TEST_DB", "/tmp/scout-test.db")

	path := writeConfig(t, `
database:
  path: "{{.SCOUT_TEST_DB}}"
`)

	cfg, err := Initialize(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/scout-test.db", cfg.Database.Path)
}

func TestInitialize_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "queue: [not a mapping")

	_, err := Initialize(path)
	require.Error(t, err)

	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    time.Duration
		wantErr bool
	}{
		{name: "string form", yaml: "llm:\n  timeout: 30s", want: 30 * time.Second},
		{name: "minutes", yaml: "llm:\n  timeout: 5m", want: 5 * time.Minute},
		{name: "integer nanoseconds", yaml: "llm:\n  timeout: 1000000000", want: time.Second},
		{name: "garbage", yaml: "llm:\n  timeout: soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			cfg, err := Initialize(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.LLM.Timeout.Std())
		})
	}
}

func TestExpandEnv_PreservesDollarSigns(t *testing.T) {
	t.Setenv("SCOUT_TEST_VAL", "expanded")

	out := ExpandEnv([]byte(`pattern: "^secret.*$" # {{.SCOUT_TEST_VAL}}`))
	assert.Contains(t, string(out), "^secret.*$")
	assert.Contains(t, string(out), "expanded")
}
