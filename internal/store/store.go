// Package store defines the persistence boundary. The hive writes
// records best-effort after each applied transition; a nil store means
// in-memory operation only.
package store

import (
	"context"

	"hivekit/internal/agent"
	"hivekit/internal/task"
	"hivekit/internal/verify"
)

// Store persists task, agent and verification records. Saves are
// upserts keyed by record ID, so repeated saves at each transition
// overwrite the previous snapshot.
type Store interface {
	SaveTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, taskID string) (*task.Task, error)
	ListTasks(ctx context.Context) ([]*task.Task, error)

	SaveAgent(ctx context.Context, a *agent.Agent) error
	GetAgent(ctx context.Context, agentID string) (*agent.Agent, error)
	ListAgents(ctx context.Context) ([]*agent.Agent, error)

	SaveVerification(ctx context.Context, r *verify.Report) error
	ListVerifications(ctx context.Context, taskID string) ([]*verify.Report, error)

	Close() error
}
