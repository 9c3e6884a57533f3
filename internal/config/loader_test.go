package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func noFile(string) ([]byte, error) { return nil, fs.ErrNotExist }

func fileReader(path, contents string) func(string) ([]byte, error) {
	return func(p string) ([]byte, error) {
		if p != path {
			return nil, fs.ErrNotExist
		}
		return []byte(contents), nil
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, meta, err := Load(WithEnv(envMap(nil)), WithFileReader(noFile))
	require.NoError(t, err)

	assert.Equal(t, DefaultTasksRoot, cfg.TasksRoot)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 300*time.Second, cfg.Timeouts.Default)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Services["playwright"])
	assert.Equal(t, SourceDefault, meta.Source("tasks_root"))
	assert.Empty(t, meta.Path())
	assert.False(t, meta.LoadedAt().IsZero())
}

func TestLoadPrecedence(t *testing.T) {
	file := `
tasks_root: from-file
output_dir: out-file
concurrency: 2
timeouts:
  default: 45s
  services:
    github: 10m
services:
  github:
    eval_org: my-org
`
	env := envMap(map[string]string{
		EnvOutputDir:   "out-env",
		EnvConcurrency: "6",
	})
	concurrency := 8

	cfg, meta, err := Load(
		WithEnv(env),
		WithFileReader(fileReader(DefaultConfigFile, file)),
		WithOverrides(Overrides{Concurrency: &concurrency}),
	)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.TasksRoot)
	assert.Equal(t, "out-env", cfg.OutputDir)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Default)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Services["github"])
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Services["playwright"], "file entries merge onto defaults")
	assert.Equal(t, "my-org", cfg.ServiceSettings("github").EvalOrg)

	assert.Equal(t, SourceFile, meta.Source("tasks_root"))
	assert.Equal(t, SourceEnv, meta.Source("output_dir"))
	assert.Equal(t, SourceOverride, meta.Source("concurrency"))
	assert.Equal(t, SourceDefault, meta.Source("python"))
	assert.Equal(t, DefaultConfigFile, meta.Path())
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	_, _, err := Load(WithEnv(envMap(nil)), WithFileReader(noFile), WithConfigPath("missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, _, err = Load(WithEnv(envMap(map[string]string{EnvConfigPath: "also-missing.yaml"})), WithFileReader(noFile))
	require.Error(t, err)
}

func TestLoadRejectsBadInput(t *testing.T) {
	cases := map[string]struct {
		file string
		env  map[string]string
	}{
		"unknown field":        {file: "tasks_rot: x\n"},
		"malformed yaml":       {file: "tasks_root: [\n"},
		"negative concurrency": {file: "concurrency: -1\n"},
		"bad log level":        {file: "log_level: loud\n"},
		"unknown service":      {file: "services:\n  gitlab: {}\n"},
		"unknown timeout":      {file: "timeouts:\n  services:\n    gitlab: 1s\n"},
		"zero service timeout": {file: "timeouts:\n  services:\n    github: 0s\n"},
		"port out of range":    {file: "server:\n  port: 70000\n"},
		"bad exporter":         {file: "tracing:\n  exporter: jaeger\n"},
		"bad concurrency env":  {env: map[string]string{EnvConcurrency: "many"}},
		"bad port env":         {env: map[string]string{EnvServerPort: "http"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			reader := noFile
			if tc.file != "" {
				reader = fileReader(DefaultConfigFile, tc.file)
			}
			_, _, err := Load(WithEnv(envMap(tc.env)), WithFileReader(reader))
			assert.Error(t, err)
		})
	}
}

func TestValidateFillsZeroValues(t *testing.T) {
	cfg := Config{TasksRoot: " tasks "}
	require.NoError(t, Validate(&cfg))

	defaults := Default()
	assert.Equal(t, "tasks", cfg.TasksRoot)
	assert.Equal(t, defaults.OutputDir, cfg.OutputDir)
	assert.Equal(t, defaults.Concurrency, cfg.Concurrency)
	assert.Equal(t, defaults.Python, cfg.Python)
	assert.Equal(t, defaults.Timeouts.Default, cfg.Timeouts.Default)
	assert.Equal(t, defaults.Timeouts.KillGrace, cfg.Timeouts.KillGrace)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)

	assert.Error(t, Validate(&Config{}))
	assert.Error(t, Validate(nil))
}

func TestVerificationConfig(t *testing.T) {
	cfg := Default()
	cfg.Timeouts.Services["github"] = time.Minute
	run := cfg.Verification()

	assert.Equal(t, time.Minute, run.TimeoutFor("github"))
	assert.Equal(t, cfg.Timeouts.Default, run.TimeoutFor("notion"))
	assert.Equal(t, cfg.MaxOutputBytes, run.MaxOutputBytes)

	run.ServiceTimeouts["github"] = time.Hour
	assert.Equal(t, time.Minute, cfg.Timeouts.Services["github"], "runner config is a copy")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "taskbench.yaml")
	cfg := Default()
	cfg.TasksRoot = "/srv/tasks"
	cfg.Timeouts.Default = 2 * time.Minute
	cfg.Services = map[string]ServiceConfig{"filesystem": {TestRoot: "/tmp/fs"}}
	require.NoError(t, Save(cfg, path))

	loaded, meta, err := Load(WithEnv(envMap(nil)), WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, path, meta.Path())
	assert.Equal(t, "/srv/tasks", loaded.TasksRoot)
	assert.Equal(t, 2*time.Minute, loaded.Timeouts.Default)
	assert.Equal(t, "/tmp/fs", loaded.ServiceSettings("filesystem").TestRoot)
}
