package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"taskbench/evaluation/task_mgmt"
	"taskbench/internal/async"
	"taskbench/internal/observability"
)

// Kind classifies how a verification ended.
type Kind string

const (
	KindPassed              Kind = "passed"
	KindVerificationFailure Kind = "verification_failure"
	KindTimeout             Kind = "timeout"
	KindSpawnError          Kind = "spawn_error"
	KindRunnerError         Kind = "runner_error"
)

// Kinds lists every outcome kind in reporting order.
func Kinds() []Kind {
	return []Kind{KindPassed, KindVerificationFailure, KindTimeout, KindSpawnError, KindRunnerError}
}

// Classify maps a Run return pair onto its outcome kind.
func Classify(res *Result, err error) Kind {
	var spawnErr *SpawnError
	switch {
	case errors.As(err, &spawnErr):
		return KindSpawnError
	case err != nil, res == nil:
		return KindRunnerError
	case res.TimedOut:
		return KindTimeout
	case res.Passed():
		return KindPassed
	default:
		return KindVerificationFailure
	}
}

const maxMessageBytes = 2048

// Outcome is one task's entry in a batch run. Exactly one of Result and Err
// is set.
type Outcome struct {
	Task   task_mgmt.Task
	Kind   Kind
	Result *Result
	Err    error
}

// Message explains any outcome other than a pass. Failed checks report the
// tail of their stderr.
func (o Outcome) Message() string {
	switch o.Kind {
	case KindPassed:
		return ""
	case KindTimeout:
		return fmt.Sprintf("verification timed out after %s", o.Result.Duration.Round(time.Millisecond))
	case KindVerificationFailure:
		if tail := lastBytes(strings.TrimSpace(o.Result.Stderr), maxMessageBytes); tail != "" {
			return tail
		}
		return fmt.Sprintf("verification exited with code %d", o.Result.ExitCode)
	default:
		if o.Err == nil {
			return string(o.Kind)
		}
		return o.Err.Error()
	}
}

func lastBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// RunAll verifies tasks with at most concurrency processes in flight
// (Config.Concurrency when concurrency <= 0). Outcomes come back in input
// order; one task's failure never stops the others.
func (r *Runner) RunAll(ctx context.Context, tasks []task_mgmt.Task, concurrency int) []Outcome {
	if concurrency <= 0 {
		concurrency = r.cfg.Concurrency
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	ctx, span := r.tracer.Start(ctx, observability.SpanRun,
		trace.WithAttributes(attribute.Int(observability.AttrCount, len(tasks))))
	defer span.End()

	outcomes := make([]Outcome, len(tasks))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			var res *Result
			err := async.Run(r.logger, "verify "+task.Key(), func() error {
				var runErr error
				res, runErr = r.Run(ctx, task)
				return runErr
			})
			outcomes[i] = Outcome{Task: task, Kind: Classify(res, err), Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	passed := 0
	for _, o := range outcomes {
		if o.Kind == KindPassed {
			passed++
		}
	}
	r.logger.Info("Verified %d tasks: %d passed", len(tasks), passed)
	return outcomes
}
