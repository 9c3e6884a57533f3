package task_mgmt

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"taskbench/internal/shared/logging"
)

const defaultInstructionCacheSize = 256

// TaskManager fronts one backend's task tree: it caches the discovery pass,
// answers category and filter queries and formats instructions.
type TaskManager struct {
	root      string
	backend   Backend
	discovery *Discovery
	logger    logging.Logger

	mu       sync.RWMutex
	report   *Report
	byKey    map[string]Task
	instruct *lru.Cache[string, string]
}

// NewTaskManager runs an initial discovery pass over root for backend.
func NewTaskManager(root string, backend Backend, logger logging.Logger) (*TaskManager, error) {
	if backend == nil {
		return nil, fmt.Errorf("task manager: backend is nil")
	}
	cache, err := lru.New[string, string](defaultInstructionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("instruction cache: %w", err)
	}
	logger = logging.OrNop(logger)
	m := &TaskManager{
		root:      root,
		backend:   backend,
		discovery: NewDiscovery(logger),
		logger:    logger,
		instruct:  cache,
	}
	if err := m.Refresh(); err != nil {
		return nil, err
	}
	return m, nil
}

// Refresh discards cached state and discovers the tree again.
func (m *TaskManager) Refresh() error {
	report, err := m.discovery.Discover(m.root, m.backend)
	if err != nil {
		return err
	}
	byKey := make(map[string]Task, len(report.Tasks))
	for _, t := range report.Tasks {
		byKey[t.Key()] = t
	}

	m.mu.Lock()
	m.report = report
	m.byKey = byKey
	m.mu.Unlock()
	m.instruct.Purge()
	return nil
}

// Backend returns the backend the manager was built with.
func (m *TaskManager) Backend() Backend { return m.backend }

// Service returns the backend's service name.
func (m *TaskManager) Service() string { return m.backend.Service() }

// Tasks returns a copy of every discovered task in sorted order.
func (m *TaskManager) Tasks() []Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Task(nil), m.report.Tasks...)
}

// Warnings returns the anomalies of the last discovery pass.
func (m *TaskManager) Warnings() []MalformedTaskWarning {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MalformedTaskWarning(nil), m.report.Warnings...)
}

func (m *TaskManager) Categories() []string {
	return Categories(m.Tasks())
}

// Filter applies FilterTasks to the cached tasks.
func (m *TaskManager) Filter(expr string) []Task {
	return FilterTasks(m.Tasks(), expr)
}

// Get looks a task up by its "category/task_id" key.
func (m *TaskManager) Get(key string) (Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byKey[key]
	return t, ok
}

// Instruction returns the task's instruction formatted by the backend.
func (m *TaskManager) Instruction(task Task) (string, error) {
	key := task.Service + ":" + task.Key()
	if text, ok := m.instruct.Get(key); ok {
		return text, nil
	}
	raw, err := task.ReadInstruction()
	if err != nil {
		return "", err
	}
	text := m.backend.FormatInstruction(raw)
	m.instruct.Add(key, text)
	return text, nil
}
