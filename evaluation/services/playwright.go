package services

import (
	"path/filepath"

	"taskbench/evaluation/task_mgmt"
)

const (
	playwrightTranscriptVar = "PLAYWRIGHT_TRANSCRIPT_LOG"
	playwrightWorkDirVar    = "PLAYWRIGHT_WORK_DIR"
	webArenaBaseURLVar      = "WEBARENA_BASE_URL"
	webArenaConfigURLVar    = "PLAYWRIGHT_WEBARENA_BASE_URL"

	playwrightNote = "Use Playwright MCP tools to complete this web automation task."
	webArenaNote   = "Use Playwright MCP tools to complete this task."
)

// Playwright tasks drive a browser. The verification program reads the
// session transcript and any files the agent left in its work dir.
type Playwright struct {
	task_mgmt.BaseBackend
	workRoot      string
	transcriptDir string
}

func NewPlaywright(s Settings) *Playwright {
	return &Playwright{
		BaseBackend: task_mgmt.BaseBackend{
			Name:   ServicePlaywright,
			Python: s.Python,
			Note:   playwrightNote,
		},
		workRoot:      s.TestRoot,
		transcriptDir: s.TranscriptDir,
	}
}

func (p *Playwright) ConstructTask(category string, info task_mgmt.FileInfo) (task_mgmt.Task, error) {
	task, err := p.BaseBackend.ConstructTask(category, info)
	if err != nil {
		return task, err
	}
	if p.workRoot != "" {
		task.WorkDir = filepath.Join(p.workRoot, category, info.Name)
	}
	return task, nil
}

func (p *Playwright) PrepareEnvironment(task task_mgmt.Task) map[string]string {
	env := make(map[string]string, 2)
	if p.transcriptDir != "" {
		env[playwrightTranscriptVar] = filepath.Join(p.transcriptDir, task.Service+"__"+task.Slug()+".log")
	}
	if task.WorkDir != "" {
		env[playwrightWorkDirVar] = task.WorkDir
	}
	if len(env) == 0 {
		return nil
	}
	return env
}

// WebArena runs Playwright tasks against a hosted WebArena site.
type WebArena struct {
	task_mgmt.BaseBackend
	baseURL string
}

func NewWebArena(s Settings) *WebArena {
	return &WebArena{
		BaseBackend: task_mgmt.BaseBackend{Name: ServicePlaywrightWebArena, Python: s.Python},
		baseURL:     firstNonEmpty(s.BaseURL, s.env(webArenaConfigURLVar)),
	}
}

func (w *WebArena) ConstructTask(category string, info task_mgmt.FileInfo) (task_mgmt.Task, error) {
	task, err := w.BaseBackend.ConstructTask(category, info)
	if err != nil {
		return task, err
	}
	task.Endpoint = w.baseURL
	return task, nil
}

func (w *WebArena) PrepareEnvironment(task task_mgmt.Task) map[string]string {
	if task.Endpoint == "" {
		return nil
	}
	return map[string]string{webArenaBaseURLVar: task.Endpoint}
}

// FormatInstruction adds the Playwright hint ahead of the shared note.
func (w *WebArena) FormatInstruction(base string) string {
	return w.BaseBackend.FormatInstruction(base + "\n\n" + webArenaNote)
}
