package services

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"taskbench/evaluation/task_mgmt"
)

const (
	postgresPasswordVar = "POSTGRES_PASSWORD"
	postgresNote        = "Note: Use Postgres MCP tools to complete this task. The database connection is already configured."
)

// postgresParams maps POSTGRES_* variables onto libpq connection keys.
var postgresParams = []struct{ env, key string }{
	{"POSTGRES_HOST", "host"},
	{"POSTGRES_PORT", "port"},
	{"POSTGRES_DATABASE", "dbname"},
	{"POSTGRES_USERNAME", "user"},
}

// Postgres tasks query a relational database. The endpoint is resolved once
// from the environment without connecting; verification programs connect
// themselves with the ambient credentials.
type Postgres struct {
	task_mgmt.BaseBackend
	endpoint string
}

// NewPostgres fails when the POSTGRES_* or PG* variables do not form a valid
// connection configuration.
func NewPostgres(s Settings) (*Postgres, error) {
	endpoint, err := resolvePostgresEndpoint(s)
	if err != nil {
		return nil, err
	}
	return &Postgres{
		BaseBackend: task_mgmt.BaseBackend{
			Name:   ServicePostgres,
			Python: s.Python,
			Note:   postgresNote,
		},
		endpoint: endpoint,
	}, nil
}

func resolvePostgresEndpoint(s Settings) (string, error) {
	var parts []string
	for _, p := range postgresParams {
		if v := strings.TrimSpace(s.env(p.env)); v != "" {
			parts = append(parts, p.key+"="+quoteConnValue(v))
		}
	}
	cfg, err := pgconn.ParseConfig(strings.Join(parts, " "))
	if err != nil {
		return "", fmt.Errorf("postgres connection settings: %w", err)
	}
	return fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database), nil
}

func quoteConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Endpoint returns the resolved host:port/database.
func (p *Postgres) Endpoint() string { return p.endpoint }

func (p *Postgres) ConstructTask(category string, info task_mgmt.FileInfo) (task_mgmt.Task, error) {
	task, err := p.BaseBackend.ConstructTask(category, info)
	if err != nil {
		return task, err
	}
	task.Endpoint = p.endpoint
	task.CredentialRef = postgresPasswordVar
	return task, nil
}
