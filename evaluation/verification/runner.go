// Package verification runs a task's verification program as an isolated,
// time-bounded child process and reports how it ended.
package verification

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskbench/evaluation/services"
	"taskbench/evaluation/task_mgmt"
	"taskbench/internal/observability"
	"taskbench/internal/shared/logging"
)

const (
	DefaultTimeout        = 300 * time.Second
	DefaultBrowserTimeout = 90 * time.Second
	DefaultKillGrace      = 5 * time.Second
	DefaultMaxOutputBytes = 64 * 1024
	DefaultConcurrency    = 4
)

// Config bounds each verification process.
type Config struct {
	DefaultTimeout  time.Duration
	ServiceTimeouts map[string]time.Duration
	// KillGrace is how long Wait keeps draining output after the process
	// group was killed or the leader exited.
	KillGrace time.Duration
	// MaxOutputBytes caps each captured stream; the tail is kept.
	MaxOutputBytes int
	Concurrency    int
}

// DefaultConfig gives browser services a 90s budget and everything else 300s.
func DefaultConfig() Config {
	timeouts := make(map[string]time.Duration)
	for _, name := range services.Names() {
		if services.IsBrowser(name) {
			timeouts[name] = DefaultBrowserTimeout
		}
	}
	return Config{
		DefaultTimeout:  DefaultTimeout,
		ServiceTimeouts: timeouts,
		KillGrace:       DefaultKillGrace,
		MaxOutputBytes:  DefaultMaxOutputBytes,
		Concurrency:     DefaultConcurrency,
	}
}

// TimeoutFor returns the wall-clock budget for service.
func (c Config) TimeoutFor(service string) time.Duration {
	if t, ok := c.ServiceTimeouts[service]; ok && t > 0 {
		return t
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return DefaultTimeout
}

// Result is the outcome of one verification process that was started.
type Result struct {
	Task            task_mgmt.Task `json:"task"`
	Command         []string       `json:"command"`
	ExitCode        int            `json:"exit_code"`
	TimedOut        bool           `json:"timed_out"`
	Stdout          string         `json:"stdout"`
	Stderr          string         `json:"stderr"`
	StdoutTruncated bool           `json:"stdout_truncated,omitempty"`
	StderrTruncated bool           `json:"stderr_truncated,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	Duration        time.Duration  `json:"duration"`
}

// Passed reports a clean exit within the time budget.
func (r *Result) Passed() bool {
	return r != nil && r.ExitCode == 0 && !r.TimedOut
}

// Option customises a Runner.
type Option func(*Runner)

func WithLogger(logger logging.Logger) Option {
	return func(r *Runner) { r.logger = logging.OrNop(logger) }
}

// WithMetrics replaces the default collectors; nil disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithEnviron replaces os.Environ as the source of the ambient environment.
func WithEnviron(environ func() []string) Option {
	return func(r *Runner) {
		if environ != nil {
			r.environ = environ
		}
	}
}

// Runner executes verification programs. It is safe for concurrent use: the
// only state shared between calls is read-only configuration and the
// internally synchronised metrics.
type Runner struct {
	cfg      Config
	backends map[string]task_mgmt.Backend
	logger   logging.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	environ  func() []string
}

// NewRunner builds a runner dispatching tasks to backends by service name.
func NewRunner(cfg Config, backends []task_mgmt.Backend, opts ...Option) (*Runner, error) {
	r := &Runner{
		cfg:      cfg,
		backends: make(map[string]task_mgmt.Backend, len(backends)),
		logger:   logging.Nop(),
		metrics:  DefaultMetrics(),
		tracer:   otel.Tracer("taskbench/verification"),
		environ:  os.Environ,
	}
	for _, b := range backends {
		if b == nil {
			return nil, fmt.Errorf("nil backend")
		}
		if _, dup := r.backends[b.Service()]; dup {
			return nil, fmt.Errorf("duplicate backend for service %q", b.Service())
		}
		r.backends[b.Service()] = b
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the runner's limits.
func (r *Runner) Config() Config { return r.cfg }

// Run executes the task's verification program and waits for it.
//
// A process that started always yields a Result, including on timeout. A
// process that could not be started yields *SpawnError. Cancellation of ctx
// by the caller, or any other runner failure, yields *RunError.
func (r *Runner) Run(ctx context.Context, task task_mgmt.Task) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, observability.SpanVerify,
		trace.WithAttributes(observability.TaskAttrs(task.Service, task.Category, task.ID.String())...))
	defer span.End()

	r.metrics.started()
	defer r.metrics.done()
	res, err := r.run(ctx, task)
	kind := Classify(res, err)
	var elapsed time.Duration
	if res != nil {
		elapsed = res.Duration
	}
	r.metrics.finished(task.Service, kind, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("Verification %s/%s did not run: %v", task.Service, task.Key(), err)
		return nil, err
	}
	span.SetAttributes(observability.ResultAttrs(res.ExitCode, res.TimedOut, string(kind))...)
	r.logger.Info("Verification %s/%s finished: %s (exit %d) in %s",
		task.Service, task.Key(), kind, res.ExitCode, res.Duration.Round(time.Millisecond))
	return res, nil
}

func (r *Runner) run(ctx context.Context, task task_mgmt.Task) (*Result, error) {
	key := task.Key()
	backend, ok := r.backends[task.Service]
	if !ok {
		return nil, &RunError{TaskKey: key, Op: "dispatch", Err: fmt.Errorf("%w: %q", ErrUnknownService, task.Service)}
	}
	command, err := backend.VerificationCommand(task)
	if err != nil {
		return nil, &RunError{TaskKey: key, Op: "command", Err: err}
	}
	if command.Program == "" {
		return nil, &RunError{TaskKey: key, Op: "command", Err: errors.New("empty program")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &RunError{TaskKey: key, Op: "run", Err: err}
	}
	env := MergeEnvironment(r.environ(), backend.PrepareEnvironment(task))

	timeout := r.cfg.TimeoutFor(task.Service)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command.Program, command.Args...)
	cmd.Dir = command.Dir
	cmd.Env = env
	stdout := newTailBuffer(r.cfg.MaxOutputBytes)
	stderr := newTailBuffer(r.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureProcess(cmd)
	cmd.WaitDelay = r.cfg.KillGrace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultKillGrace
	}

	argv := command.Argv()
	r.logger.Debug("Running %s (timeout %s): %s", key, timeout, command)
	startedAt := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{TaskKey: key, Argv: argv, Err: err}
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(startedAt)
	// The check may exit cleanly and leave background children behind.
	reapProcessGroup(cmd)

	if waitErr != nil && ctx.Err() != nil {
		return nil, &RunError{TaskKey: key, Op: "run", Err: ctx.Err()}
	}

	res := &Result{
		Task:            task,
		Command:         argv,
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
		StartedAt:       startedAt,
		Duration:        elapsed,
	}
	if waitErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		r.logger.Warn("Verification %s timed out after %s; process group killed", key, timeout)
		return res, nil
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return nil, &RunError{TaskKey: key, Op: "wait", Err: waitErr}
	}
	res.ExitCode = cmd.ProcessState.ExitCode()
	return res, nil
}

// MergeEnvironment returns a new KEY=VALUE slice holding ambient with extra
// applied on top. Later ambient duplicates win over earlier ones, extra wins
// over both, and ambient itself is never modified.
func MergeEnvironment(ambient []string, extra map[string]string) []string {
	out := make([]string, 0, len(ambient)+len(extra))
	index := make(map[string]int, len(ambient)+len(extra))
	for _, kv := range ambient {
		k, _, _ := strings.Cut(kv, "=")
		if i, ok := index[k]; ok {
			out[i] = kv
			continue
		}
		index[k] = len(out)
		out = append(out, kv)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv := k + "=" + extra[k]
		if i, ok := index[k]; ok {
			out[i] = kv
			continue
		}
		index[k] = len(out)
		out = append(out, kv)
	}
	return out
}
