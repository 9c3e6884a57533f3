package services

import (
	"path/filepath"

	"taskbench/evaluation/task_mgmt"
)

const filesystemTestDirVar = "FILESYSTEM_TEST_DIR"

// Filesystem tasks operate inside a sandbox directory that the verification
// program finds through FILESYSTEM_TEST_DIR.
type Filesystem struct {
	task_mgmt.BaseBackend
	testRoot string
}

func NewFilesystem(s Settings) *Filesystem {
	return &Filesystem{
		BaseBackend: task_mgmt.BaseBackend{Name: ServiceFilesystem, Python: s.Python},
		testRoot:    firstNonEmpty(s.TestRoot, s.env(filesystemTestDirVar)),
	}
}

// ConstructTask assigns <test_root>/<category>/<task> as the work dir when a
// test root is known.
func (f *Filesystem) ConstructTask(category string, info task_mgmt.FileInfo) (task_mgmt.Task, error) {
	task, err := f.BaseBackend.ConstructTask(category, info)
	if err != nil {
		return task, err
	}
	if f.testRoot != "" {
		task.WorkDir = filepath.Join(f.testRoot, category, info.Name)
	}
	return task, nil
}

func (f *Filesystem) PrepareEnvironment(task task_mgmt.Task) map[string]string {
	if task.WorkDir == "" {
		return nil
	}
	return map[string]string{filesystemTestDirVar: task.WorkDir}
}
