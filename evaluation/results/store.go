// Package results persists the outcomes of verification runs as JSON.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskbench/evaluation/task_mgmt"
	"taskbench/evaluation/verification"
)

const (
	summaryName = "summary"
	summaryFile = summaryName + ".json"
)

// ErrNotFound is returned when a run or service has no stored results.
var ErrNotFound = errors.New("results not found")

// Record is the persisted form of one task's outcome.
type Record struct {
	RunID           string            `json:"run_id"`
	Service         string            `json:"service"`
	Category        string            `json:"category"`
	TaskID          string            `json:"task_id"`
	TaskName        string            `json:"task_name"`
	Kind            verification.Kind `json:"kind"`
	Passed          bool              `json:"passed"`
	ExitCode        *int              `json:"exit_code,omitempty"`
	TimedOut        bool              `json:"timed_out"`
	DurationSeconds float64           `json:"duration_seconds"`
	Message         string            `json:"message,omitempty"`
	Command         []string          `json:"command,omitempty"`
	Stdout          string            `json:"stdout,omitempty"`
	Stderr          string            `json:"stderr,omitempty"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
}

// NewRecord flattens an outcome for storage.
func NewRecord(runID string, o verification.Outcome) Record {
	rec := Record{
		RunID:    runID,
		Service:  o.Task.Service,
		Category: o.Task.Category,
		TaskID:   o.Task.ID.String(),
		TaskName: o.Task.Slug(),
		Kind:     o.Kind,
		Passed:   o.Kind == verification.KindPassed,
		Message:  o.Message(),
	}
	if res := o.Result; res != nil {
		code := res.ExitCode
		started := res.StartedAt
		rec.ExitCode = &code
		rec.TimedOut = res.TimedOut
		rec.DurationSeconds = res.Duration.Seconds()
		rec.Command = res.Command
		rec.Stdout = res.Stdout
		rec.Stderr = res.Stderr
		rec.StartedAt = &started
	}
	return rec
}

// Summary aggregates one service's records within a run.
type Summary struct {
	RunID      string         `json:"run_id"`
	Service    string         `json:"service"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Total      int            `json:"total"`
	Passed     int            `json:"passed"`
	PassRate   float64        `json:"pass_rate"`
	Kinds      map[string]int `json:"kinds"`
	Failed     []string       `json:"failed,omitempty"`
}

// Summarize counts outcomes by kind. Failed lists the task names of every
// outcome that did not pass.
func Summarize(runID, service string, outcomes []verification.Outcome) Summary {
	s := Summary{
		RunID:   runID,
		Service: service,
		Total:   len(outcomes),
		Kinds:   make(map[string]int, len(verification.Kinds())),
	}
	for _, kind := range verification.Kinds() {
		s.Kinds[string(kind)] = 0
	}
	for _, o := range outcomes {
		s.Kinds[string(o.Kind)]++
		if o.Kind == verification.KindPassed {
			s.Passed++
		} else {
			s.Failed = append(s.Failed, o.Task.Slug())
		}
	}
	if s.Total > 0 {
		s.PassRate = float64(s.Passed) / float64(s.Total)
	}
	return s
}

// NewRunID returns a sortable, unique run identifier.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("run_%s_%s", now.UTC().Format("20060102T150405"), strings.SplitN(uuid.NewString(), "-", 2)[0])
}

// Store lays results out as <dir>/<run_id>/<service>/<task>.json with a
// summary.json next to the task files.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates the store directory if needed.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("results directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) serviceDir(runID, service string) (string, error) {
	run, err := sanitizeSegment("run id", runID)
	if err != nil {
		return "", err
	}
	svc, err := sanitizeSegment("service", service)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, run, svc), nil
}

// SaveRun writes every outcome and the service summary for runID.
func (s *Store) SaveRun(runID, service string, startedAt time.Time, outcomes []verification.Outcome) (*Summary, error) {
	dir, err := s.serviceDir(runID, service)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	for _, o := range outcomes {
		if err := writeJSON(filepath.Join(dir, fileNameFor(o.Task.Slug())), NewRecord(runID, o)); err != nil {
			return nil, fmt.Errorf("save %s: %w", o.Task.Key(), err)
		}
	}

	summary := Summarize(runID, service, outcomes)
	summary.StartedAt = startedAt
	summary.FinishedAt = time.Now()
	if err := writeJSON(filepath.Join(dir, summaryFile), summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	return &summary, nil
}

// LoadSummary reads the summary of one service within a run.
func (s *Store) LoadSummary(runID, service string) (*Summary, error) {
	dir, err := s.serviceDir(runID, service)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary Summary
	if err := readJSON(filepath.Join(dir, summaryFile), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// LoadRecords returns the task records of one service within a run, sorted
// by category then task id.
func (s *Store) LoadRecords(runID, service string) ([]Record, error) {
	dir, err := s.serviceDir(runID, service)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("run %s/%s: %w", runID, service, ErrNotFound)
		}
		return nil, fmt.Errorf("read run dir: %w", err)
	}
	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == summaryFile || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		var rec Record
		if err := readJSON(filepath.Join(dir, entry.Name()), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Category != records[j].Category {
			return records[i].Category < records[j].Category
		}
		return task_mgmt.ParseTaskID(records[i].TaskID).Less(task_mgmt.ParseTaskID(records[j].TaskID))
	})
	return records, nil
}

// ListSummaries returns every stored summary, newest run first.
func (s *Store) ListSummaries() ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}
	var out []Summary
	for _, run := range runs {
		if !run.IsDir() {
			continue
		}
		svcs, err := os.ReadDir(filepath.Join(s.dir, run.Name()))
		if err != nil {
			continue
		}
		for _, svc := range svcs {
			if !svc.IsDir() {
				continue
			}
			var summary Summary
			if err := readJSON(filepath.Join(s.dir, run.Name(), svc.Name(), summaryFile), &summary); err != nil {
				continue
			}
			out = append(out, summary)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].Service < out[j].Service
	})
	return out, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
