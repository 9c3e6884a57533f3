package task_mgmt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"taskbench/internal/shared/logging"
)

const (
	verifySuffix      = "_verify"
	instructionSuffix = "_instruction"
	descriptionSuffix = "_description"
	metaSuffix        = "_meta.json"
	verifyStem        = "verify"
)

// directoryInstructionNames are the accepted instruction files inside a
// directory-based task.
var directoryInstructionNames = []string{"description.md", "instruction.md"}

// ignoredCategories never hold tasks.
var ignoredCategories = map[string]bool{
	"utils":       true,
	"__pycache__": true,
}

// Report is the outcome of one discovery pass for one service.
type Report struct {
	Service  string
	Tasks    []Task
	Warnings []MalformedTaskWarning
}

// Discovery turns a service's task tree into task records. It is read-only
// and keeps no state between passes.
type Discovery struct {
	logger logging.Logger
}

// NewDiscovery returns a Discovery reporting through logger.
func NewDiscovery(logger logging.Logger) *Discovery {
	return &Discovery{logger: logging.OrNop(logger)}
}

// Discover scans <root>/<backend.Service()> and returns its tasks sorted by
// category then task id. Only a missing or unusable root is an error; every
// per-task problem becomes a warning in the report.
func (d *Discovery) Discover(root string, backend Backend) (*Report, error) {
	if backend == nil {
		return nil, fmt.Errorf("discover: backend is nil")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &DiscoveryError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &DiscoveryError{Root: root, Err: fmt.Errorf("not a directory")}
	}

	s := &scan{
		logger:  d.logger,
		backend: backend,
		report:  &Report{Service: backend.Service()},
		seen:    make(map[string]string),
	}

	serviceDir := filepath.Join(root, backend.Service())
	entries, err := os.ReadDir(serviceDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("%s tasks directory does not exist: %s", backend.Service(), serviceDir)
		} else {
			s.warn("", serviceDir, "service directory unreadable", err)
		}
		return s.report, nil
	}

	categories := 0
	for _, entry := range entries {
		if !isCategory(serviceDir, entry) {
			continue
		}
		categories++
		category := entry.Name()
		categoryDir := filepath.Join(serviceDir, category)
		d.logger.Debug("Discovering tasks in category: %s", category)

		var infos []FileInfo
		switch backend.Organization() {
		case OrganizationFile:
			infos = s.fileTasks(category, categoryDir)
		case OrganizationDirectory:
			infos = s.directoryTasks(category, categoryDir)
		default:
			return nil, fmt.Errorf("discover %s: unknown task organization %q", backend.Service(), backend.Organization())
		}
		for _, fi := range infos {
			s.construct(category, fi)
		}
	}

	tasks := s.report.Tasks
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Category != tasks[j].Category {
			return tasks[i].Category < tasks[j].Category
		}
		return tasks[i].ID.Less(tasks[j].ID)
	})
	d.logger.Info("Discovered %d %s tasks across %d categories (%d warnings)",
		len(tasks), backend.Service(), categories, len(s.report.Warnings))
	return s.report, nil
}

type scan struct {
	logger  logging.Logger
	backend Backend
	report  *Report
	// seen maps task keys to the verification path that claimed them.
	seen map[string]string
}

func (s *scan) warn(category, path, reason string, err error) {
	w := MalformedTaskWarning{
		Service:  s.backend.Service(),
		Category: category,
		Path:     path,
		Reason:   reason,
		Err:      err,
	}
	s.report.Warnings = append(s.report.Warnings, w)
	s.logger.Warn("Skipping: %s", w.Error())
}

// checkOverride reports a malformed sidecar; derived values stay in force.
func (s *scan) checkOverride(category string, o Override) {
	if o.State == OverrideMalformed {
		s.warn(category, o.Path, "failed to load meta.json, using derived identifiers", o.Err)
	}
}

func (s *scan) construct(category string, info FileInfo) {
	task, err := s.backend.ConstructTask(category, info)
	if err != nil {
		s.warn(category, info.VerificationPath, "backend rejected task", err)
		return
	}
	// Keyed on the printed id: IntID(1) and StringID("1") would share a
	// lookup key and a result file.
	key := task.Key()
	if owner, dup := s.seen[key]; dup {
		s.warn(category, info.VerificationPath, fmt.Sprintf("duplicate task %s already defined by %s", key, owner), nil)
		return
	}
	s.seen[key] = info.VerificationPath
	s.report.Tasks = append(s.report.Tasks, task)
	s.logger.Debug("Found task: %s", key)
}

// fileTasks pairs <stem>_verify.<ext> files with their instruction file.
func (s *scan) fileTasks(category, dir string) []FileInfo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.warn(category, dir, "category directory unreadable", err)
		return nil
	}

	files := make(map[string]bool)
	verifiers := make(map[string][]string)
	var stems []string
	for _, entry := range entries {
		name := entry.Name()
		if hidden(name) || isDir(dir, entry) {
			continue
		}
		files[name] = true
		if stem, ok := strings.CutSuffix(trimExt(name), verifySuffix); ok {
			if _, known := verifiers[stem]; !known {
				stems = append(stems, stem)
			}
			verifiers[stem] = append(verifiers[stem], name)
		}
	}

	for name := range files {
		base := trimExt(name)
		for _, suffix := range []string{instructionSuffix, descriptionSuffix} {
			if stem, ok := strings.CutSuffix(base, suffix); ok && stem != "" {
				if _, paired := verifiers[stem]; !paired {
					s.warn(category, filepath.Join(dir, name), "missing verification program", nil)
				}
			}
		}
	}

	var infos []FileInfo
	for _, stem := range stems {
		verify := verifiers[stem]
		if stem == "" {
			s.warn(category, filepath.Join(dir, verify[0]), "verification program has no task stem", nil)
			continue
		}
		if len(verify) > 1 {
			s.warn(category, filepath.Join(dir, verify[0]), fmt.Sprintf("ambiguous verification programs %v", verify), nil)
			continue
		}
		instructions := fileInstructionCandidates(stem, files)
		switch len(instructions) {
		case 0:
			s.warn(category, filepath.Join(dir, verify[0]), "missing instruction file", nil)
			continue
		case 1:
		default:
			s.warn(category, filepath.Join(dir, verify[0]), fmt.Sprintf("ambiguous instruction files %v", instructions), nil)
			continue
		}

		override := ReadOverride(filepath.Join(dir, stem+metaSuffix))
		s.checkOverride(category, override)
		infos = append(infos, FileInfo{
			Name:             stem,
			ID:               StringID(stem),
			InstructionPath:  filepath.Join(dir, instructions[0]),
			VerificationPath: filepath.Join(dir, verify[0]),
			Override:         override,
		})
	}

	shared := ReadOverride(filepath.Join(dir, MetaFileName))
	s.checkOverride(category, shared)
	if shared.HasTaskID() && len(infos) != 1 {
		s.warn(category, shared.Path, fmt.Sprintf("task_id ignored: category holds %d tasks", len(infos)), nil)
		shared.TaskID = TaskID{}
	}
	for i := range infos {
		infos[i].Override = layer(shared, infos[i].Override)
	}
	return infos
}

func fileInstructionCandidates(stem string, files map[string]bool) []string {
	var out []string
	for name := range files {
		base := trimExt(name)
		if base == stem+instructionSuffix || base == stem+descriptionSuffix || name == stem+".md" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// directoryTasks treats every subdirectory of the category as one task.
func (s *scan) directoryTasks(category, dir string) []FileInfo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.warn(category, dir, "category directory unreadable", err)
		return nil
	}

	var infos []FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if hidden(name) || !isDir(dir, entry) {
			continue
		}
		taskDir := filepath.Join(dir, name)
		children, err := os.ReadDir(taskDir)
		if err != nil {
			s.warn(category, taskDir, "task directory unreadable", err)
			continue
		}

		var instructions, verifiers []string
		for _, child := range children {
			childName := child.Name()
			if hidden(childName) || isDir(taskDir, child) {
				continue
			}
			switch {
			case contains(directoryInstructionNames, childName):
				instructions = append(instructions, childName)
			case trimExt(childName) == verifyStem:
				verifiers = append(verifiers, childName)
			}
		}
		if len(instructions) != 1 || len(verifiers) != 1 {
			s.warn(category, taskDir, fmt.Sprintf("expected one instruction and one verify file, found %d and %d",
				len(instructions), len(verifiers)), nil)
			continue
		}

		override := ReadOverride(filepath.Join(taskDir, MetaFileName))
		s.checkOverride(category, override)
		infos = append(infos, FileInfo{
			Name:             name,
			ID:               ParseTaskDirName(name),
			InstructionPath:  filepath.Join(taskDir, instructions[0]),
			VerificationPath: filepath.Join(taskDir, verifiers[0]),
			Override:         override,
		})
	}
	return infos
}

func isCategory(parent string, entry fs.DirEntry) bool {
	name := entry.Name()
	return !hidden(name) && !ignoredCategories[name] && isDir(parent, entry)
}

// isDir follows symlinks, which fs.DirEntry does not.
func isDir(parent string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(filepath.Join(parent, entry.Name()))
	return err == nil && info.IsDir()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
