package task_mgmt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fileBackend(name string) BaseBackend {
	return BaseBackend{Name: name, Layout: OrganizationFile}
}

func dirBackend(name string) BaseBackend {
	return BaseBackend{Name: name, Layout: OrganizationDirectory}
}

func discover(t *testing.T, root string, backend Backend) *Report {
	t.Helper()
	report, err := NewDiscovery(nil).Discover(root, backend)
	require.NoError(t, err)
	return report
}

func taskKeys(tasks []Task) []string {
	keys := make([]string, 0, len(tasks))
	for _, task := range tasks {
		keys = append(keys, task.Key())
	}
	return keys
}

func TestDiscoverBothOrganizations(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "svcA", "catX", "task_1_verify.py"), "print('ok')\n")
	writeFile(t, filepath.Join(root, "svcA", "catX", "task_1_instruction.md"), "do A\n")
	writeFile(t, filepath.Join(root, "svcB", "catY", "task_3", "instruction.md"), "do B\n")
	writeFile(t, filepath.Join(root, "svcB", "catY", "task_3", "verify.py"), "print('ok')\n")

	a := discover(t, root, fileBackend("svcA"))
	require.Len(t, a.Tasks, 1)
	assert.Equal(t, "svcA", a.Tasks[0].Service)
	assert.Equal(t, "catX", a.Tasks[0].Category)
	assert.Equal(t, StringID("task_1"), a.Tasks[0].ID)
	assert.Equal(t, filepath.Join(root, "svcA", "catX", "task_1_instruction.md"), a.Tasks[0].InstructionPath)
	assert.Equal(t, filepath.Join(root, "svcA", "catX", "task_1_verify.py"), a.Tasks[0].VerificationPath)
	assert.Empty(t, a.Warnings)

	b := discover(t, root, dirBackend("svcB"))
	require.Len(t, b.Tasks, 1)
	assert.Equal(t, "catY", b.Tasks[0].Category)
	assert.Equal(t, IntID(3), b.Tasks[0].ID)
	assert.Equal(t, "task_3", b.Tasks[0].Name)
	assert.Equal(t, filepath.Join(root, "svcB", "catY", "task_3", "verify.py"), b.Tasks[0].VerificationPath)
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := NewDiscovery(nil).Discover(filepath.Join(t.TempDir(), "nope"), dirBackend("svc"))
	var derr *DiscoveryError
	require.True(t, errors.As(err, &derr))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	file := filepath.Join(t.TempDir(), "plain")
	writeFile(t, file, "x")
	_, err = NewDiscovery(nil).Discover(file, dirBackend("svc"))
	assert.True(t, errors.As(err, &derr))
}

func TestDiscoverMissingServiceDirIsEmpty(t *testing.T) {
	report := discover(t, t.TempDir(), dirBackend("absent"))
	assert.Empty(t, report.Tasks)
	assert.Equal(t, "absent", report.Service)
}

func TestDiscoverSkipsIgnoredCategories(t *testing.T) {
	root := t.TempDir()
	for _, category := range []string{".hidden", "utils", "__pycache__", "real"} {
		writeFile(t, filepath.Join(root, "svc", category, "task_1", "description.md"), "x")
		writeFile(t, filepath.Join(root, "svc", category, "task_1", "verify.py"), "x")
	}
	writeFile(t, filepath.Join(root, "svc", "README.md"), "not a category")

	report := discover(t, root, dirBackend("svc"))
	assert.Equal(t, []string{"real/1"}, taskKeys(report.Tasks))
}

func TestDiscoverDirectoryRequiresExactlyOnePair(t *testing.T) {
	root := t.TempDir()
	cat := filepath.Join(root, "svc", "cat")
	writeFile(t, filepath.Join(cat, "task_1", "description.md"), "x")
	writeFile(t, filepath.Join(cat, "task_1", "verify.py"), "x")
	writeFile(t, filepath.Join(cat, "task_2", "description.md"), "missing verify")
	writeFile(t, filepath.Join(cat, "task_3", "description.md"), "x")
	writeFile(t, filepath.Join(cat, "task_3", "instruction.md"), "x")
	writeFile(t, filepath.Join(cat, "task_3", "verify.py"), "x")
	writeFile(t, filepath.Join(cat, "task_4", "instruction.md"), "x")
	writeFile(t, filepath.Join(cat, "task_4", "verify.py"), "x")
	writeFile(t, filepath.Join(cat, "task_4", "verify.sh"), "x")
	writeFile(t, filepath.Join(cat, ".task_5", "instruction.md"), "x")
	writeFile(t, filepath.Join(cat, ".task_5", "verify.py"), "x")

	report := discover(t, root, dirBackend("svc"))
	assert.Equal(t, []string{"cat/1"}, taskKeys(report.Tasks))
	require.Len(t, report.Warnings, 3)
	for _, w := range report.Warnings {
		assert.Equal(t, "svc", w.Service)
		assert.Equal(t, "cat", w.Category)
	}
}

func TestDiscoverSortsNumericBeforeNamed(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"task_10", "task_2", "named", "task_1"} {
		writeFile(t, filepath.Join(root, "svc", "b", name, "instruction.md"), "x")
		writeFile(t, filepath.Join(root, "svc", "b", name, "verify.py"), "x")
	}
	writeFile(t, filepath.Join(root, "svc", "a", "task_5", "instruction.md"), "x")
	writeFile(t, filepath.Join(root, "svc", "a", "task_5", "verify.py"), "x")

	report := discover(t, root, dirBackend("svc"))
	assert.Equal(t, []string{"a/5", "b/1", "b/2", "b/10", "b/named"}, taskKeys(report.Tasks))
}

func TestDiscoverDirectoryOverrides(t *testing.T) {
	root := t.TempDir()
	cat := filepath.Join(root, "svc", "cat")
	writeFile(t, filepath.Join(cat, "task_1", "instruction.md"), "x")
	writeFile(t, filepath.Join(cat, "task_1", "verify.py"), "x")
	writeFile(t, filepath.Join(cat, "task_1", MetaFileName), `{"category_id":"renamed","task_id":"first"}`)
	writeFile(t, filepath.Join(cat, "task_2", "instruction.md"), "x")
	writeFile(t, filepath.Join(cat, "task_2", "verify.py"), "x")
	writeFile(t, filepath.Join(cat, "task_2", MetaFileName), `{not json`)

	report := discover(t, root, dirBackend("svc"))
	assert.Equal(t, []string{"cat/2", "renamed/first"}, taskKeys(report.Tasks))
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, filepath.Join(cat, "task_2", MetaFileName), report.Warnings[0].Path)
	assert.Error(t, report.Warnings[0].Err)
}

func TestDiscoverDuplicateKeepsFirst(t *testing.T) {
	root := t.TempDir()
	cat := filepath.Join(root, "svc", "cat")
	writeFile(t, filepath.Join(cat, "task_1", "instruction.md"), "first")
	writeFile(t, filepath.Join(cat, "task_1", "verify.py"), "x")
	writeFile(t, filepath.Join(cat, "task_2", "instruction.md"), "second")
	writeFile(t, filepath.Join(cat, "task_2", "verify.py"), "x")
	writeFile(t, filepath.Join(cat, "task_2", MetaFileName), `{"task_id":1}`)

	report := discover(t, root, dirBackend("svc"))
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, "task_1", report.Tasks[0].Name)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0].Reason, "duplicate")
}

func TestDiscoverDuplicateAcrossIDKinds(t *testing.T) {
	root := t.TempDir()
	cat := filepath.Join(root, "svc", "cat")
	for _, name := range []string{"1", "task_1"} {
		writeFile(t, filepath.Join(cat, name, "instruction.md"), name)
		writeFile(t, filepath.Join(cat, name, "verify.py"), "x")
	}

	report := discover(t, root, dirBackend("svc"))
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, StringID("1"), report.Tasks[0].ID)
	assert.Equal(t, "1", report.Tasks[0].Name)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, filepath.Join(cat, "task_1", "verify.py"), report.Warnings[0].Path)
	assert.Contains(t, report.Warnings[0].Reason, "duplicate task cat/1")
}

func TestDiscoverFileInstructionVariants(t *testing.T) {
	root := t.TempDir()
	cat := filepath.Join(root, "svc", "cat")
	writeFile(t, filepath.Join(cat, "alpha_verify.py"), "x")
	writeFile(t, filepath.Join(cat, "alpha_description.md"), "x")
	writeFile(t, filepath.Join(cat, "beta_verify.sh"), "x")
	writeFile(t, filepath.Join(cat, "beta.md"), "x")
	writeFile(t, filepath.Join(cat, "gamma_verify.py"), "x")
	writeFile(t, filepath.Join(cat, "gamma_instruction.md"), "x")
	writeFile(t, filepath.Join(cat, "gamma.md"), "x")
	writeFile(t, filepath.Join(cat, "delta_verify.py"), "no instruction")
	writeFile(t, filepath.Join(cat, "orphan_instruction.md"), "no verify")

	report := discover(t, root, fileBackend("svc"))
	assert.Equal(t, []string{"cat/alpha", "cat/beta"}, taskKeys(report.Tasks))

	var reasons []string
	for _, w := range report.Warnings {
		reasons = append(reasons, w.Reason)
	}
	joined := strings.Join(reasons, "|")
	assert.Contains(t, joined, "ambiguous instruction files")
	assert.Contains(t, joined, "missing instruction file")
	assert.Contains(t, joined, "missing verification program")
	assert.Len(t, report.Warnings, 3)
}

func TestDiscoverFileOverrides(t *testing.T) {
	root := t.TempDir()
	cat := filepath.Join(root, "svc", "cat")
	writeFile(t, filepath.Join(cat, "one_verify.py"), "x")
	writeFile(t, filepath.Join(cat, "one_instruction.md"), "x")
	writeFile(t, filepath.Join(cat, "two_verify.py"), "x")
	writeFile(t, filepath.Join(cat, "two_instruction.md"), "x")
	writeFile(t, filepath.Join(cat, "two_meta.json"), `{"task_id":2}`)
	writeFile(t, filepath.Join(cat, MetaFileName), `{"category_id":"shared","task_id":"ignored"}`)

	report := discover(t, root, fileBackend("svc"))
	assert.Equal(t, []string{"shared/2", "shared/one"}, taskKeys(report.Tasks))
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0].Reason, "task_id ignored")
}

func TestDiscoverCategoryTaskIDSingleTask(t *testing.T) {
	root := t.TempDir()
	cat := filepath.Join(root, "svc", "cat")
	writeFile(t, filepath.Join(cat, "only_verify.py"), "x")
	writeFile(t, filepath.Join(cat, "only_instruction.md"), "x")
	writeFile(t, filepath.Join(cat, MetaFileName), `{"task_id":7}`)

	report := discover(t, root, fileBackend("svc"))
	assert.Equal(t, []string{"cat/7"}, taskKeys(report.Tasks))
	assert.Empty(t, report.Warnings)
}

type rejectingBackend struct {
	BaseBackend
}

func (rejectingBackend) ConstructTask(category string, info FileInfo) (Task, error) {
	return Task{}, errors.New("unsupported")
}

func TestDiscoverBackendRejection(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "svc", "cat", "task_1", "instruction.md"), "x")
	writeFile(t, filepath.Join(root, "svc", "cat", "task_1", "verify.py"), "x")

	report := discover(t, root, rejectingBackend{dirBackend("svc")})
	assert.Empty(t, report.Tasks)
	require.Len(t, report.Warnings, 1)
	assert.EqualError(t, errors.Unwrap(report.Warnings[0]), "unsupported")
}

func TestDiscoverEmptyCategory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "svc", "empty"), 0o755))

	report := discover(t, root, dirBackend("svc"))
	assert.Empty(t, report.Tasks)
	assert.Empty(t, report.Warnings)
}
