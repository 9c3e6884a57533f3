package config

import (
	"time"

	"taskbench/evaluation/services"
	"taskbench/evaluation/verification"
	"taskbench/internal/observability"
)

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

const (
	DefaultConfigFile = "taskbench.yaml"
	DefaultTasksRoot  = "tasks"
	DefaultOutputDir  = "results"
	DefaultPython     = "python3"
	DefaultLogLevel   = "info"
	DefaultServerPort = 8089
)

// Config is the taskbench configuration document.
type Config struct {
	TasksRoot      string                      `yaml:"tasks_root" json:"tasks_root"`
	OutputDir      string                      `yaml:"output_dir" json:"output_dir"`
	Concurrency    int                         `yaml:"concurrency" json:"concurrency"`
	Python         string                      `yaml:"python" json:"python"`
	LogLevel       string                      `yaml:"log_level" json:"log_level"`
	MaxOutputBytes int                         `yaml:"max_output_bytes" json:"max_output_bytes"`
	Timeouts       TimeoutConfig               `yaml:"timeouts" json:"timeouts"`
	Services       map[string]ServiceConfig    `yaml:"services,omitempty" json:"services,omitempty"`
	Server         ServerConfig                `yaml:"server" json:"server"`
	Tracing        observability.TracingConfig `yaml:"tracing" json:"tracing"`
}

// TimeoutConfig bounds verification processes. Durations use Go syntax
// ("90s", "5m").
type TimeoutConfig struct {
	Default   time.Duration            `yaml:"default" json:"default"`
	KillGrace time.Duration            `yaml:"kill_grace" json:"kill_grace"`
	Services  map[string]time.Duration `yaml:"services,omitempty" json:"services,omitempty"`
}

// ServiceConfig holds per-service settings. Empty values fall back to the
// service's own environment variables.
type ServiceConfig struct {
	TestRoot      string `yaml:"test_root,omitempty" json:"test_root,omitempty"`
	BaseURL       string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	EvalOrg       string `yaml:"eval_org,omitempty" json:"eval_org,omitempty"`
	TranscriptDir string `yaml:"transcript_dir,omitempty" json:"transcript_dir,omitempty"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" json:"port"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	run := verification.DefaultConfig()
	timeouts := make(map[string]time.Duration, len(run.ServiceTimeouts))
	for name, d := range run.ServiceTimeouts {
		timeouts[name] = d
	}
	return Config{
		TasksRoot:      DefaultTasksRoot,
		OutputDir:      DefaultOutputDir,
		Concurrency:    run.Concurrency,
		Python:         DefaultPython,
		LogLevel:       DefaultLogLevel,
		MaxOutputBytes: run.MaxOutputBytes,
		Timeouts: TimeoutConfig{
			Default:   run.DefaultTimeout,
			KillGrace: run.KillGrace,
			Services:  timeouts,
		},
		Server: ServerConfig{
			Port:           DefaultServerPort,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// ServiceSettings returns the backend settings for service.
func (c Config) ServiceSettings(service string) services.Settings {
	sc := c.Services[service]
	return services.Settings{
		Python:        c.Python,
		TestRoot:      sc.TestRoot,
		TranscriptDir: sc.TranscriptDir,
		BaseURL:       sc.BaseURL,
		EvalOrg:       sc.EvalOrg,
	}
}

// Verification returns the runner limits.
func (c Config) Verification() verification.Config {
	timeouts := make(map[string]time.Duration, len(c.Timeouts.Services))
	for name, d := range c.Timeouts.Services {
		timeouts[name] = d
	}
	return verification.Config{
		DefaultTimeout:  c.Timeouts.Default,
		ServiceTimeouts: timeouts,
		KillGrace:       c.Timeouts.KillGrace,
		MaxOutputBytes:  c.MaxOutputBytes,
		Concurrency:     c.Concurrency,
	}
}

// Metadata contains provenance details for loaded configuration.
type Metadata struct {
	sources  map[string]ValueSource
	path     string
	loadedAt time.Time
}

// Source returns the origin for the given configuration field.
func (m Metadata) Source(field string) ValueSource {
	if src, ok := m.sources[field]; ok {
		return src
	}
	return SourceDefault
}

// Path is the configuration file that was read, if any.
func (m Metadata) Path() string { return m.path }

// LoadedAt returns the timestamp when the configuration was constructed.
func (m Metadata) LoadedAt() time.Time { return m.loadedAt }
