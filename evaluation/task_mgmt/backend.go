package task_mgmt

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultInstructionNote is appended to every instruction unless a backend
// replaces it.
const DefaultInstructionNote = "Note: Based on your understanding, solve the task all at once by yourself, don't ask for my opinions on anything."

// Backend confines all knowledge about one external service. Discovery and
// the verification runner only ever talk to services through it.
type Backend interface {
	// Service is the directory name of the service under the task tree root.
	Service() string
	// Organization tells discovery which layout strategy to apply.
	Organization() Organization
	// ConstructTask builds the record for one located file pair, injecting
	// backend fields and applying info.Override.
	ConstructTask(category string, info FileInfo) (Task, error)
	// VerificationCommand returns the program and arguments performing the check.
	VerificationCommand(task Task) (Command, error)
	// PrepareEnvironment returns extra environment entries for the check
	// process. The runner merges them onto a copy of the ambient environment.
	PrepareEnvironment(task Task) map[string]string
	// FormatInstruction appends service guidance to the raw instruction text.
	FormatInstruction(base string) string
}

// Command is an executable invocation.
type Command struct {
	Program string
	Args    []string
	Dir     string
}

// Argv returns program followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Program}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// BaseBackend provides the default behaviour for every Backend operation.
// Services embed it and override only what differs.
type BaseBackend struct {
	Name   string
	Layout Organization
	// Python is the interpreter used for .py verification programs.
	Python string
	// Note replaces DefaultInstructionNote when set.
	Note string
}

func (b BaseBackend) Service() string { return b.Name }

func (b BaseBackend) Organization() Organization {
	if b.Layout == "" {
		return OrganizationDirectory
	}
	return b.Layout
}

// ConstructTask builds the plain record with overrides applied.
func (b BaseBackend) ConstructTask(category string, info FileInfo) (Task, error) {
	if info.InstructionPath == "" || info.VerificationPath == "" {
		return Task{}, fmt.Errorf("task %s is missing a file path", info.Name)
	}
	if info.ID.IsZero() {
		return Task{}, fmt.Errorf("task %s has no id", info.Name)
	}
	category, id := info.Override.Apply(category, info.ID)
	return Task{
		InstructionPath:  info.InstructionPath,
		VerificationPath: info.VerificationPath,
		Service:          b.Name,
		Category:         category,
		ID:               id,
		Name:             info.Name,
	}, nil
}

// VerificationCommand picks an interpreter from the verification file
// extension and executes anything else directly.
func (b BaseBackend) VerificationCommand(task Task) (Command, error) {
	if task.VerificationPath == "" {
		return Command{}, fmt.Errorf("task %s has no verification program", task.Key())
	}
	path := task.VerificationPath
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		python := b.Python
		if python == "" {
			python = "python3"
		}
		return Command{Program: python, Args: []string{path}}, nil
	case ".sh":
		return Command{Program: "bash", Args: []string{path}}, nil
	case ".js", ".mjs":
		return Command{Program: "node", Args: []string{path}}, nil
	default:
		return Command{Program: path}, nil
	}
}

func (b BaseBackend) PrepareEnvironment(Task) map[string]string { return nil }

func (b BaseBackend) FormatInstruction(base string) string {
	note := b.Note
	if note == "" {
		note = DefaultInstructionNote
	}
	return base + "\n\n" + note
}
