package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentLoggerFormatsAndFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "discovery", LevelInfo)

	logger.Debug("hidden %d", 1)
	logger.Warn("skipping %s", "task_1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] [discovery]")
	assert.Contains(t, out, "logger_test.go:")
	assert.True(t, strings.HasSuffix(out, "- skipping task_1\n"))
}

func TestWithComponentSharesSink(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, "a", LevelDebug)
	base.WithComponent("b").Info("hello")
	base.Info("world")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[b]")
	assert.Contains(t, lines[1], "[a]")
}

func TestOrNopHandlesTypedNil(t *testing.T) {
	var logger *ComponentLogger
	assert.NotPanics(t, func() { OrNop(logger).Error("boom") })
	assert.Equal(t, Nop(), OrNop(nil))
}

func TestTeeFlattensAndSkipsNil(t *testing.T) {
	var first, second bytes.Buffer
	var nilLogger *ComponentLogger
	a := New(&first, "a", LevelDebug)
	b := New(&second, "b", LevelDebug)

	logger := Tee(Tee(a, nilLogger), nil, b)
	logger.Error("x=%d", 7)

	assert.Contains(t, first.String(), "x=7")
	assert.Contains(t, second.String(), "x=7")
	assert.Equal(t, Nop(), Tee(nil, nilLogger))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNamed(t *testing.T) {
	var buf bytes.Buffer
	Named(New(&buf, "root", LevelInfo), "tasks/github").Info("ready")
	assert.Contains(t, buf.String(), "[tasks/github]")

	assert.Equal(t, Nop(), Named(nil, "x"))
}
