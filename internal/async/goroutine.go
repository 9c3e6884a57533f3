package async

import (
	"fmt"
	"runtime/debug"
)

// PanicLogger captures panic reports from background goroutines.
type PanicLogger interface {
	Error(format string, args ...any)
}

// PanicError is a recovered panic turned into an error.
type PanicError struct {
	Name  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("panic [%s]: %v", e.Name, e.Value)
}

// Go runs fn in a goroutine guarded by panic recovery.
func Go(logger PanicLogger, name string, fn func()) {
	go func() {
		_ = Run(logger, name, func() error {
			fn()
			return nil
		})
	}()
}

// Run calls fn on the current goroutine and reports a panic as *PanicError
// instead of unwinding further.
func Run(logger PanicLogger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := &PanicError{Name: name, Value: r, Stack: debug.Stack()}
			if logger != nil {
				logger.Error("goroutine %s, stack: %s", perr.Error(), perr.Stack)
			}
			err = perr
		}
	}()
	return fn()
}
