package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taskbench/evaluation/services"
	"taskbench/internal/shared/logging"
)

// Environment variables read by Load.
const (
	EnvConfigPath  = "TASKBENCH_CONFIG"
	EnvTasksRoot   = "TASKBENCH_TASKS_ROOT"
	EnvOutputDir   = "TASKBENCH_OUTPUT_DIR"
	EnvConcurrency = "TASKBENCH_CONCURRENCY"
	EnvPython      = "TASKBENCH_PYTHON"
	EnvLogLevel    = "TASKBENCH_LOG_LEVEL"
	EnvServerPort  = "TASKBENCH_SERVER_PORT"
)

// Overrides conveys caller-specified values that should win over env/file sources.
type Overrides struct {
	TasksRoot   *string
	OutputDir   *string
	Concurrency *int
	Python      *string
	LogLevel    *string
	ServerPort  *int
}

// EnvLookup resolves the value for an environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Option customises the loader behaviour.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	overrides  Overrides
	configPath string
}

// WithEnv supplies a custom environment lookup implementation.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// WithOverrides applies caller overrides that take highest precedence.
func WithOverrides(overrides Overrides) Option {
	return func(o *loadOptions) {
		o.overrides = overrides
	}
}

// WithConfigPath forces the loader to read configuration from a specific
// file. A missing file is then an error.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithFileReader injects a custom reader, used primarily for tests.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(o *loadOptions) {
		o.readFile = reader
	}
}

// Load builds the configuration from defaults, then the YAML file, then
// TASKBENCH_* environment variables, then overrides, and validates the result.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.envLookup == nil {
		options.envLookup = DefaultEnvLookup
	}

	cfg := Default()
	meta := Metadata{sources: make(map[string]ValueSource), loadedAt: time.Now()}

	if err := applyFile(&cfg, &meta, options); err != nil {
		return Config{}, Metadata{}, err
	}
	if err := applyEnv(&cfg, &meta, options.envLookup); err != nil {
		return Config{}, Metadata{}, fmt.Errorf("apply environment overrides: %w", err)
	}
	applyOverrides(&cfg, &meta, options.overrides)

	if err := Validate(&cfg); err != nil {
		return Config{}, Metadata{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, meta, nil
}

func applyFile(cfg *Config, meta *Metadata, opts loadOptions) error {
	path := opts.configPath
	required := path != ""
	if !required {
		if value, ok := opts.envLookup(EnvConfigPath); ok && strings.TrimSpace(value) != "" {
			path = strings.TrimSpace(value)
			required = true
		} else {
			path = DefaultConfigFile
		}
	}

	data, err := opts.readFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	meta.path = path

	var present map[string]yaml.Node
	if err := yaml.Unmarshal(data, &present); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	for key := range present {
		meta.sources[key] = SourceFile
	}
	return nil
}

func applyEnv(cfg *Config, meta *Metadata, lookup EnvLookup) error {
	if value, ok := lookup(EnvTasksRoot); ok && value != "" {
		cfg.TasksRoot = value
		meta.sources["tasks_root"] = SourceEnv
	}
	if value, ok := lookup(EnvOutputDir); ok && value != "" {
		cfg.OutputDir = value
		meta.sources["output_dir"] = SourceEnv
	}
	if value, ok := lookup(EnvConcurrency); ok && value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s override %q: %w", EnvConcurrency, value, err)
		}
		cfg.Concurrency = n
		meta.sources["concurrency"] = SourceEnv
	}
	if value, ok := lookup(EnvPython); ok && value != "" {
		cfg.Python = value
		meta.sources["python"] = SourceEnv
	}
	if value, ok := lookup(EnvLogLevel); ok && value != "" {
		cfg.LogLevel = value
		meta.sources["log_level"] = SourceEnv
	}
	if value, ok := lookup(EnvServerPort); ok && value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s override %q: %w", EnvServerPort, value, err)
		}
		cfg.Server.Port = port
		meta.sources["server"] = SourceEnv
	}
	return nil
}

func applyOverrides(cfg *Config, meta *Metadata, overrides Overrides) {
	if overrides.TasksRoot != nil {
		cfg.TasksRoot = *overrides.TasksRoot
		meta.sources["tasks_root"] = SourceOverride
	}
	if overrides.OutputDir != nil {
		cfg.OutputDir = *overrides.OutputDir
		meta.sources["output_dir"] = SourceOverride
	}
	if overrides.Concurrency != nil {
		cfg.Concurrency = *overrides.Concurrency
		meta.sources["concurrency"] = SourceOverride
	}
	if overrides.Python != nil {
		cfg.Python = *overrides.Python
		meta.sources["python"] = SourceOverride
	}
	if overrides.LogLevel != nil {
		cfg.LogLevel = *overrides.LogLevel
		meta.sources["log_level"] = SourceOverride
	}
	if overrides.ServerPort != nil {
		cfg.Server.Port = *overrides.ServerPort
		meta.sources["server"] = SourceOverride
	}
}

// Validate fills zero values with defaults and rejects inconsistent settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	defaults := Default()

	cfg.TasksRoot = strings.TrimSpace(cfg.TasksRoot)
	if cfg.TasksRoot == "" {
		return fmt.Errorf("tasks_root is required")
	}
	cfg.OutputDir = strings.TrimSpace(cfg.OutputDir)
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaults.OutputDir
	}

	switch {
	case cfg.Concurrency < 0:
		return fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	case cfg.Concurrency == 0:
		cfg.Concurrency = defaults.Concurrency
	}
	if strings.TrimSpace(cfg.Python) == "" {
		cfg.Python = defaults.Python
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	switch {
	case cfg.MaxOutputBytes < 0:
		return fmt.Errorf("max_output_bytes must not be negative")
	case cfg.MaxOutputBytes == 0:
		cfg.MaxOutputBytes = defaults.MaxOutputBytes
	}

	if err := validateTimeouts(&cfg.Timeouts, defaults.Timeouts); err != nil {
		return err
	}
	for name := range cfg.Services {
		if !knownService(name) {
			return fmt.Errorf("services: unknown service %q", name)
		}
	}

	switch {
	case cfg.Server.Port == 0:
		cfg.Server.Port = defaults.Server.Port
	case cfg.Server.Port < 0 || cfg.Server.Port > 65535:
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}

	switch cfg.Tracing.Exporter {
	case "", "otlp", "zipkin":
	default:
		return fmt.Errorf("tracing.exporter must be otlp or zipkin, got %q", cfg.Tracing.Exporter)
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
	}
	return nil
}

func validateTimeouts(t *TimeoutConfig, defaults TimeoutConfig) error {
	switch {
	case t.Default < 0:
		return fmt.Errorf("timeouts.default must not be negative")
	case t.Default == 0:
		t.Default = defaults.Default
	}
	switch {
	case t.KillGrace < 0:
		return fmt.Errorf("timeouts.kill_grace must not be negative")
	case t.KillGrace == 0:
		t.KillGrace = defaults.KillGrace
	}
	for name, d := range t.Services {
		if !knownService(name) {
			return fmt.Errorf("timeouts.services: unknown service %q", name)
		}
		if d <= 0 {
			return fmt.Errorf("timeouts.services.%s must be positive", name)
		}
	}
	return nil
}

func knownService(name string) bool {
	for _, known := range services.Names() {
		if known == name {
			return true
		}
	}
	return false
}

// Save writes cfg as YAML, creating parent directories.
func Save(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
