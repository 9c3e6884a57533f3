// Package services holds the Backend implementations for every external
// service a task tree can target.
package services

import (
	"os"
	"strings"
)

// Settings carries per-service configuration. Empty fields fall back to the
// service's environment variables.
type Settings struct {
	// Python runs .py verification programs.
	Python string
	// TestRoot is the sandbox root for services that work inside a directory.
	TestRoot string
	// TranscriptDir receives browser transcripts.
	TranscriptDir string
	// BaseURL is the service endpoint for HTTP-backed services.
	BaseURL string
	// EvalOrg is the GitHub organization hosting evaluation repositories.
	EvalOrg string
	// Getenv reads the ambient environment. Defaults to os.Getenv.
	Getenv func(string) string
}

func (s Settings) env(key string) string {
	if s.Getenv != nil {
		return s.Getenv(key)
	}
	return os.Getenv(key)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
