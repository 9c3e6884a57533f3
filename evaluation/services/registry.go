package services

import (
	"fmt"
	"sort"

	"taskbench/evaluation/task_mgmt"
)

const (
	ServiceGitHub             = "github"
	ServiceFilesystem         = "filesystem"
	ServicePlaywright         = "playwright"
	ServicePlaywrightWebArena = "playwright_webarena"
	ServiceNotion             = "notion"
	ServicePostgres           = "postgres"
	ServiceSupabase           = "supabase"
	ServiceInsforge           = "insforge"
)

type constructor func(Settings) (task_mgmt.Backend, error)

var registry = map[string]constructor{
	ServiceGitHub:             func(s Settings) (task_mgmt.Backend, error) { return NewGitHub(s), nil },
	ServiceFilesystem:         func(s Settings) (task_mgmt.Backend, error) { return NewFilesystem(s), nil },
	ServicePlaywright:         func(s Settings) (task_mgmt.Backend, error) { return NewPlaywright(s), nil },
	ServicePlaywrightWebArena: func(s Settings) (task_mgmt.Backend, error) { return NewWebArena(s), nil },
	ServiceNotion:             func(s Settings) (task_mgmt.Backend, error) { return NewNotion(s), nil },
	ServicePostgres:           func(s Settings) (task_mgmt.Backend, error) { return NewPostgres(s) },
	ServiceSupabase:           func(s Settings) (task_mgmt.Backend, error) { return NewSupabase(s), nil },
	ServiceInsforge:           func(s Settings) (task_mgmt.Backend, error) { return NewInsforge(s), nil },
}

// New builds the backend registered under name.
func New(name string, settings Settings) (task_mgmt.Backend, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown service %q (known: %v)", name, Names())
	}
	return build(settings)
}

// Names lists the registered services, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBrowser reports whether the service drives a browser. Browser checks get
// a shorter default timeout.
func IsBrowser(name string) bool {
	return name == ServicePlaywright || name == ServicePlaywrightWebArena
}
