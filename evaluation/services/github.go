package services

import (
	"strings"

	"taskbench/evaluation/task_mgmt"
)

const (
	githubTokenVar   = "GITHUB_TOKEN"
	githubOrgVar     = "GITHUB_EVAL_ORG"
	defaultGitHubOrg = "mcpleague-eval"
	githubPrefix     = "Please execute the following task:"
)

// GitHub tasks are file-based and run against repositories in the
// evaluation organization.
type GitHub struct {
	task_mgmt.BaseBackend
	org string
}

func NewGitHub(s Settings) *GitHub {
	return &GitHub{
		BaseBackend: task_mgmt.BaseBackend{
			Name:   ServiceGitHub,
			Layout: task_mgmt.OrganizationFile,
			Python: s.Python,
		},
		org: firstNonEmpty(s.EvalOrg, s.env(githubOrgVar), defaultGitHubOrg),
	}
}

func (g *GitHub) ConstructTask(category string, info task_mgmt.FileInfo) (task_mgmt.Task, error) {
	task, err := g.BaseBackend.ConstructTask(category, info)
	if err != nil {
		return task, err
	}
	task.Endpoint = g.org
	task.CredentialRef = githubTokenVar
	return task, nil
}

func (g *GitHub) FormatInstruction(base string) string {
	return g.BaseBackend.FormatInstruction(githubPrefix + "\n\n" + strings.TrimSpace(base))
}
