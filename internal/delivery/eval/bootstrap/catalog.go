package bootstrap

import (
	"fmt"
	"sort"
	"sync"

	"taskbench/evaluation/services"
	"taskbench/evaluation/task_mgmt"
	"taskbench/internal/config"
	"taskbench/internal/shared/logging"
)

// Catalog holds one TaskManager per service over a shared tasks root.
type Catalog struct {
	mu       sync.RWMutex
	managers map[string]*task_mgmt.TaskManager
}

// NewCatalog discovers the named services (all registered services when
// names is empty) under cfg.TasksRoot.
func NewCatalog(cfg config.Config, names []string, logger logging.Logger) (*Catalog, error) {
	logger = logging.OrNop(logger)
	if len(names) == 0 {
		names = services.Names()
	}
	managers := make(map[string]*task_mgmt.TaskManager, len(names))
	for _, name := range names {
		backend, err := services.New(name, cfg.ServiceSettings(name))
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", name, err)
		}
		manager, err := task_mgmt.NewTaskManager(cfg.TasksRoot, backend, logging.Named(logger, "tasks/"+name))
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", name, err)
		}
		managers[name] = manager
	}
	return &Catalog{managers: managers}, nil
}

// Services lists the catalogued service names, sorted.
func (c *Catalog) Services() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.managers))
	for name := range c.managers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manager returns the TaskManager for service.
func (c *Catalog) Manager(service string) (*task_mgmt.TaskManager, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.managers[service]
	return m, ok
}

// Backends returns every catalogued backend in service order.
func (c *Catalog) Backends() []task_mgmt.Backend {
	var out []task_mgmt.Backend
	for _, name := range c.Services() {
		m, _ := c.Manager(name)
		out = append(out, m.Backend())
	}
	return out
}

// Refresh rediscovers every service.
func (c *Catalog) Refresh() error {
	for _, name := range c.Services() {
		m, _ := c.Manager(name)
		if err := m.Refresh(); err != nil {
			return fmt.Errorf("refresh %s: %w", name, err)
		}
	}
	return nil
}
