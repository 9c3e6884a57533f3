package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbench/evaluation/task_mgmt"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func fileInfo(name string, id task_mgmt.TaskID) task_mgmt.FileInfo {
	return task_mgmt.FileInfo{
		Name:             name,
		ID:               id,
		InstructionPath:  "/tasks/" + name + "/description.md",
		VerificationPath: "/tasks/" + name + "/verify.py",
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{
		"filesystem", "github", "insforge", "notion",
		"playwright", "playwright_webarena", "postgres", "supabase",
	}, Names())

	settings := Settings{Getenv: envOf(map[string]string{"POSTGRES_HOST": "db", "POSTGRES_PORT": "5432"})}
	for _, name := range Names() {
		b, err := New(name, settings)
		require.NoError(t, err, name)
		assert.Equal(t, name, b.Service())
	}

	_, err := New("gitlab", settings)
	assert.ErrorContains(t, err, "unknown service")

	assert.True(t, IsBrowser(ServicePlaywright))
	assert.True(t, IsBrowser(ServicePlaywrightWebArena))
	assert.False(t, IsBrowser(ServiceNotion))
}

func TestOrganizations(t *testing.T) {
	settings := Settings{Getenv: envOf(map[string]string{"POSTGRES_HOST": "db"})}
	want := map[string]task_mgmt.Organization{
		ServiceGitHub:             task_mgmt.OrganizationFile,
		ServiceSupabase:           task_mgmt.OrganizationFile,
		ServiceInsforge:           task_mgmt.OrganizationFile,
		ServiceFilesystem:         task_mgmt.OrganizationDirectory,
		ServicePlaywright:         task_mgmt.OrganizationDirectory,
		ServicePlaywrightWebArena: task_mgmt.OrganizationDirectory,
		ServiceNotion:             task_mgmt.OrganizationDirectory,
		ServicePostgres:           task_mgmt.OrganizationDirectory,
	}
	for name, org := range want {
		b, err := New(name, settings)
		require.NoError(t, err)
		assert.Equal(t, org, b.Organization(), name)
	}
}

func TestFilesystemEnvironment(t *testing.T) {
	t.Setenv(filesystemTestDirVar, "/ambient/sandbox")
	before := os.Environ()

	fs := NewFilesystem(Settings{TestRoot: "/sandbox"})
	task, err := fs.ConstructTask("file_ops", fileInfo("task_2", task_mgmt.IntID(2)))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/sandbox", "file_ops", "task_2"), task.WorkDir)

	env := fs.PrepareEnvironment(task)
	assert.Equal(t, map[string]string{filesystemTestDirVar: "/sandbox/file_ops/task_2"}, env)
	assert.Equal(t, "/ambient/sandbox", os.Getenv(filesystemTestDirVar))
	assert.Equal(t, before, os.Environ())
}

func TestFilesystemFallsBackToAmbientRoot(t *testing.T) {
	fs := NewFilesystem(Settings{Getenv: envOf(map[string]string{filesystemTestDirVar: "/env/root"})})
	task, err := fs.ConstructTask("cat", fileInfo("task_1", task_mgmt.IntID(1)))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/env/root", "cat", "task_1"), task.WorkDir)

	bare := NewFilesystem(Settings{Getenv: envOf(nil)})
	task, err = bare.ConstructTask("cat", fileInfo("task_1", task_mgmt.IntID(1)))
	require.NoError(t, err)
	assert.Empty(t, task.WorkDir)
	assert.Nil(t, bare.PrepareEnvironment(task))
}

func TestGitHub(t *testing.T) {
	gh := NewGitHub(Settings{Getenv: envOf(nil)})
	task, err := gh.ConstructTask("repo_ops", fileInfo("create_branch", task_mgmt.StringID("create_branch")))
	require.NoError(t, err)
	assert.Equal(t, "mcpleague-eval", task.Endpoint)
	assert.Equal(t, "GITHUB_TOKEN", task.CredentialRef)
	assert.Nil(t, gh.PrepareEnvironment(task))

	text := gh.FormatInstruction("  Open a PR.\n")
	assert.Equal(t, "Please execute the following task:\n\nOpen a PR.\n\n"+task_mgmt.DefaultInstructionNote, text)

	custom := NewGitHub(Settings{Getenv: envOf(map[string]string{"GITHUB_EVAL_ORG": "acme"})})
	task, err = custom.ConstructTask("repo_ops", fileInfo("x", task_mgmt.StringID("x")))
	require.NoError(t, err)
	assert.Equal(t, "acme", task.Endpoint)
}

func TestPlaywrightEnvironment(t *testing.T) {
	pw := NewPlaywright(Settings{TestRoot: "/work", TranscriptDir: "/logs"})
	task, err := pw.ConstructTask("forms", fileInfo("task_4", task_mgmt.IntID(4)))
	require.NoError(t, err)

	env := pw.PrepareEnvironment(task)
	assert.Equal(t, filepath.Join("/work", "forms", "task_4"), env["PLAYWRIGHT_WORK_DIR"])
	assert.Equal(t, filepath.Join("/logs", "playwright__forms__4.log"), env["PLAYWRIGHT_TRANSCRIPT_LOG"])
	assert.True(t, strings.HasSuffix(pw.FormatInstruction("go"), playwrightNote))

	assert.Nil(t, NewPlaywright(Settings{}).PrepareEnvironment(task_mgmt.Task{}))
}

func TestWebArena(t *testing.T) {
	wa := NewWebArena(Settings{Getenv: envOf(map[string]string{"PLAYWRIGHT_WEBARENA_BASE_URL": "http://shop:7770"})})
	task, err := wa.ConstructTask("shopping", fileInfo("task_12", task_mgmt.IntID(12)))
	require.NoError(t, err)
	assert.Equal(t, "http://shop:7770", task.Endpoint)
	assert.Equal(t, map[string]string{"WEBARENA_BASE_URL": "http://shop:7770"}, wa.PrepareEnvironment(task))

	text := wa.FormatInstruction("buy")
	assert.Equal(t, "buy\n\n"+webArenaNote+"\n\n"+task_mgmt.DefaultInstructionNote, text)
}

func TestNotion(t *testing.T) {
	n := NewNotion(Settings{})
	task, err := n.ConstructTask("docs", fileInfo("task_1", task_mgmt.IntID(1)))
	require.NoError(t, err)
	assert.Equal(t, "EVAL_NOTION_API_KEY", task.CredentialRef)
	assert.Empty(t, task.Endpoint)
	assert.Nil(t, n.PrepareEnvironment(task))
}

func TestPostgresEndpoint(t *testing.T) {
	pg, err := NewPostgres(Settings{Getenv: envOf(map[string]string{
		"POSTGRES_HOST":     "db.internal",
		"POSTGRES_PORT":     "6543",
		"POSTGRES_DATABASE": "employees",
		"POSTGRES_USERNAME": "eval",
	})})
	require.NoError(t, err)
	assert.Equal(t, "db.internal:6543/employees", pg.Endpoint())

	task, err := pg.ConstructTask("employees", fileInfo("task_3", task_mgmt.IntID(3)))
	require.NoError(t, err)
	assert.Equal(t, "db.internal:6543/employees", task.Endpoint)
	assert.Equal(t, "POSTGRES_PASSWORD", task.CredentialRef)
	assert.Nil(t, pg.PrepareEnvironment(task))

	_, err = NewPostgres(Settings{Getenv: envOf(map[string]string{"POSTGRES_PORT": "not-a-port"})})
	assert.Error(t, err)
}

func TestHostedServices(t *testing.T) {
	env := envOf(map[string]string{
		"SUPABASE_API_URL":     "http://supabase:8000",
		"INSFORGE_BACKEND_URL": "http://insforge:7130",
	})

	sb := NewSupabase(Settings{Getenv: env})
	task, err := sb.ConstructTask("chinook", fileInfo("top_artists", task_mgmt.StringID("top_artists")))
	require.NoError(t, err)
	assert.Equal(t, "http://supabase:8000", task.Endpoint)
	assert.Equal(t, "SUPABASE_API_KEY", task.CredentialRef)
	assert.Equal(t, map[string]string{"SUPABASE_API_URL": "http://supabase:8000"}, sb.PrepareEnvironment(task))
	assert.Equal(t, "q\n\n"+supabaseNote, sb.FormatInstruction("q"))

	ins := NewInsforge(Settings{Getenv: env, BaseURL: "http://override:1"})
	task, err = ins.ConstructTask("auth", fileInfo("signup", task_mgmt.StringID("signup")))
	require.NoError(t, err)
	assert.Equal(t, "http://override:1", task.Endpoint)
	assert.Equal(t, "INSFORGE_API_KEY", task.CredentialRef)
	assert.Equal(t, map[string]string{"INSFORGE_BACKEND_URL": "http://override:1"}, ins.PrepareEnvironment(task))

	assert.Nil(t, NewSupabase(Settings{Getenv: envOf(nil)}).PrepareEnvironment(task_mgmt.Task{}))
}
