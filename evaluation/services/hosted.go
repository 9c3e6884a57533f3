package services

import "taskbench/evaluation/task_mgmt"

const (
	supabaseURLVar = "SUPABASE_API_URL"
	supabaseKeyVar = "SUPABASE_API_KEY"
	insforgeURLVar = "INSFORGE_BACKEND_URL"
	insforgeKeyVar = "INSFORGE_API_KEY"

	supabaseNote = "Note: Use Supabase MCP tools (PostgREST) to complete this task. The API connection is already configured."
	insforgeNote = "Note: Use Insforge MCP tools to complete this task. The backend connection is already configured."
)

// hostedAPI is a file-based service reached through an HTTP API. The URL is
// exported to the check process; the key stays ambient.
type hostedAPI struct {
	task_mgmt.BaseBackend
	urlVar string
	keyVar string
	url    string
}

func newHostedAPI(name, urlVar, keyVar, note string, s Settings) hostedAPI {
	return hostedAPI{
		BaseBackend: task_mgmt.BaseBackend{
			Name:   name,
			Layout: task_mgmt.OrganizationFile,
			Python: s.Python,
			Note:   note,
		},
		urlVar: urlVar,
		keyVar: keyVar,
		url:    firstNonEmpty(s.BaseURL, s.env(urlVar)),
	}
}

func (h *hostedAPI) ConstructTask(category string, info task_mgmt.FileInfo) (task_mgmt.Task, error) {
	task, err := h.BaseBackend.ConstructTask(category, info)
	if err != nil {
		return task, err
	}
	task.Endpoint = h.url
	task.CredentialRef = h.keyVar
	return task, nil
}

func (h *hostedAPI) PrepareEnvironment(task task_mgmt.Task) map[string]string {
	if task.Endpoint == "" {
		return nil
	}
	return map[string]string{h.urlVar: task.Endpoint}
}

// Supabase tasks use the PostgREST API of a Supabase project.
type Supabase struct{ hostedAPI }

func NewSupabase(s Settings) *Supabase {
	return &Supabase{newHostedAPI(ServiceSupabase, supabaseURLVar, supabaseKeyVar, supabaseNote, s)}
}

// Insforge tasks use an Insforge backend.
type Insforge struct{ hostedAPI }

func NewInsforge(s Settings) *Insforge {
	return &Insforge{newHostedAPI(ServiceInsforge, insforgeURLVar, insforgeKeyVar, insforgeNote, s)}
}
