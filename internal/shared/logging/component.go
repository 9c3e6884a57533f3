package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogDirEnvVar names the directory that receives taskbench.log.
const LogDirEnvVar = "TASKBENCH_LOG_DIR"

const logFileName = "taskbench.log"

// sink serialises writes from every ComponentLogger sharing one writer.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *sink) write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.out, line)
}

var (
	defaultSinkOnce sync.Once
	defaultSink     *sink
)

// ComponentLogger writes lines of the form
//
//	2006-01-02 15:04:05 [LEVEL] [component] file.go:123 - message
type ComponentLogger struct {
	sink      *sink
	level     Level
	component string
}

// New builds a ComponentLogger writing to out.
func New(out io.Writer, component string, level Level) *ComponentLogger {
	if out == nil {
		out = io.Discard
	}
	return &ComponentLogger{sink: &sink{out: out}, level: level, component: component}
}

// NewComponentLogger returns a logger on the shared process sink: a file in
// $TASKBENCH_LOG_DIR when set, otherwise stderr.
func NewComponentLogger(component string) *ComponentLogger {
	defaultSinkOnce.Do(func() {
		defaultSink = &sink{out: openDefaultOutput()}
	})
	return &ComponentLogger{sink: defaultSink, level: LevelInfo, component: component}
}

// LogDirConfigured reports whether LogDirEnvVar points somewhere.
func LogDirConfigured() bool {
	return strings.TrimSpace(os.Getenv(LogDirEnvVar)) != ""
}

func openDefaultOutput() io.Writer {
	dir := strings.TrimSpace(os.Getenv(LogDirEnvVar))
	if dir == "" {
		return os.Stderr
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "taskbench: cannot create log dir %s: %v\n", dir, err)
		return os.Stderr
	}
	file, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "taskbench: cannot open log file: %v\n", err)
		return os.Stderr
	}
	return file
}

// WithComponent returns a copy sharing the sink but tagged with component.
func (l *ComponentLogger) WithComponent(component string) *ComponentLogger {
	clone := *l
	clone.component = component
	return &clone
}

// WithLevel returns a copy that filters below level.
func (l *ComponentLogger) WithLevel(level Level) *ComponentLogger {
	clone := *l
	clone.level = level
	return &clone
}

func (l *ComponentLogger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *ComponentLogger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *ComponentLogger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *ComponentLogger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

func (l *ComponentLogger) log(level Level, format string, args ...any) {
	if l == nil || level < l.level {
		return
	}
	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file, line = "???", 0
	}
	component := l.component
	if component == "" {
		component = "taskbench"
	}
	l.sink.write(fmt.Sprintf("%s [%s] [%s] %s:%d - %s\n",
		time.Now().Format("2006-01-02 15:04:05"), level, component, file, line, fmt.Sprintf(format, args...)))
}

// Named retags logger with component when it is a *ComponentLogger and
// returns it unchanged otherwise.
func Named(logger Logger, component string) Logger {
	if cl, ok := logger.(*ComponentLogger); ok && cl != nil {
		return cl.WithComponent(component)
	}
	return OrNop(logger)
}
