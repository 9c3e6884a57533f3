package async

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestRunConvertsPanic(t *testing.T) {
	logger := &recordingLogger{}
	err := Run(logger, "worker", func() error { panic("boom") })

	var perr *PanicError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "boom", perr.Value)
	assert.Equal(t, "panic [worker]: boom", perr.Error())
	assert.NotEmpty(t, perr.Stack)
	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "panic [worker]: boom")
}

func TestRunPassesThroughErrors(t *testing.T) {
	sentinel := errors.New("plain")
	assert.Same(t, sentinel, Run(nil, "", func() error { return sentinel }))
	assert.NoError(t, Run(nil, "", func() error { return nil }))
}

func TestGoRecovers(t *testing.T) {
	logger := &recordingLogger{}
	done := make(chan struct{})
	Go(logger, "bg", func() {
		defer close(done)
		panic("late")
	})
	<-done
	assert.Eventually(t, func() bool {
		logger.mu.Lock()
		defer logger.mu.Unlock()
		return len(logger.lines) == 1
	}, time.Second, 10*time.Millisecond)
}
