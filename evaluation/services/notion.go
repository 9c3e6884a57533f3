package services

import "taskbench/evaluation/task_mgmt"

const notionKeyVar = "EVAL_NOTION_API_KEY"

// Notion tasks talk to a document workspace; the key stays in the ambient
// environment and only its name is recorded.
type Notion struct {
	task_mgmt.BaseBackend
}

func NewNotion(s Settings) *Notion {
	return &Notion{BaseBackend: task_mgmt.BaseBackend{Name: ServiceNotion, Python: s.Python}}
}

func (n *Notion) ConstructTask(category string, info task_mgmt.FileInfo) (task_mgmt.Task, error) {
	task, err := n.BaseBackend.ConstructTask(category, info)
	if err != nil {
		return task, err
	}
	task.CredentialRef = notionKeyVar
	return task, nil
}
