// Package sqlite persists hive records in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hivekit/internal/agent"
	"hivekit/internal/capability"
	"hivekit/internal/errors"
	"hivekit/internal/store"
	"hivekit/internal/task"
	"hivekit/internal/verify"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	required TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	assigned_to TEXT NOT NULL DEFAULT '',
	progress REAL NOT NULL DEFAULT 0,
	estimated_duration_ns INTEGER NOT NULL DEFAULT 0,
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 0,
	failure_context TEXT NOT NULL DEFAULT '',
	result TEXT NULL,
	verification TEXT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	assigned_at INTEGER NULL,
	completed_at INTEGER NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, created_at);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	state TEXT NOT NULL,
	energy REAL NOT NULL DEFAULT 1,
	capabilities TEXT NOT NULL DEFAULT '{}',
	tasks_completed INTEGER NOT NULL DEFAULT 0,
	tasks_failed INTEGER NOT NULL DEFAULT 0,
	last_active INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_state ON agents(state);

CREATE TABLE IF NOT EXISTS verifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL,
	pair_id TEXT NOT NULL,
	verifier_id TEXT NOT NULL,
	status TEXT NOT NULL,
	goal_alignment REAL NOT NULL,
	quality REAL NOT NULL,
	confidence REAL NOT NULL,
	discrepancies TEXT NOT NULL DEFAULT '[]',
	attempt INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL DEFAULT 0,
	completed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verifications_task ON verifications(task_id, completed_at);
`

// Store persists hive records in SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if necessary) the database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// SaveTask upserts a task snapshot keyed by ID.
func (s *Store) SaveTask(ctx context.Context, t *task.Task) error {
	required, err := json.Marshal(t.Required)
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}
	result, err := marshalNullable(t.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	verification, err := marshalNullable(t.Verification)
	if err != nil {
		return fmt.Errorf("marshal verification spec: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO tasks(
			id, description, priority, required, status, assigned_to, progress,
			estimated_duration_ns, retry_count, max_retries, failure_context,
			result, verification, created_at, updated_at, assigned_at, completed_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			priority = excluded.priority,
			required = excluded.required,
			status = excluded.status,
			assigned_to = excluded.assigned_to,
			progress = excluded.progress,
			estimated_duration_ns = excluded.estimated_duration_ns,
			retry_count = excluded.retry_count,
			max_retries = excluded.max_retries,
			failure_context = excluded.failure_context,
			result = excluded.result,
			verification = excluded.verification,
			updated_at = excluded.updated_at,
			assigned_at = excluded.assigned_at,
			completed_at = excluded.completed_at`,
		t.ID, t.Description, int(t.Priority), string(required), string(t.Status), t.AssignedTo, t.Progress,
		int64(t.EstimatedDuration), t.RetryCount, t.MaxRetries, t.FailureContext,
		result, verification, t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
		nullableUnix(t.AssignedAt), nullableUnix(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// GetTask loads a task by ID.
func (s *Store) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, description, priority, required, status, assigned_to, progress,
			estimated_duration_ns, retry_count, max_retries, failure_context,
			result, verification, created_at, updated_at, assigned_at, completed_at
		FROM tasks WHERE id = ?`,
		taskID,
	)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("task", taskID)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks loads all tasks, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, description, priority, required, status, assigned_to, progress,
			estimated_duration_ns, retry_count, max_retries, failure_context,
			result, verification, created_at, updated_at, assigned_at, completed_at
		FROM tasks ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	result := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return result, nil
}

// SaveAgent upserts an agent snapshot keyed by ID.
func (s *Store) SaveAgent(ctx context.Context, a *agent.Agent) error {
	caps, err := json.Marshal(a.Capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO agents(
			id, name, kind, state, energy, capabilities,
			tasks_completed, tasks_failed, last_active, created_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			state = excluded.state,
			energy = excluded.energy,
			capabilities = excluded.capabilities,
			tasks_completed = excluded.tasks_completed,
			tasks_failed = excluded.tasks_failed,
			last_active = excluded.last_active`,
		a.ID, a.Name, string(a.Kind), string(a.State), a.Energy, string(caps),
		a.TasksCompleted, a.TasksFailed, a.LastActive.Unix(), a.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

// GetAgent loads an agent by ID.
func (s *Store) GetAgent(ctx context.Context, agentID string) (*agent.Agent, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, kind, state, energy, capabilities,
			tasks_completed, tasks_failed, last_active, created_at
		FROM agents WHERE id = ?`,
		agentID,
	)
	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("agent", agentID)
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// ListAgents loads all agents, oldest first.
func (s *Store) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, kind, state, energy, capabilities,
			tasks_completed, tasks_failed, last_active, created_at
		FROM agents ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	result := make([]*agent.Agent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return result, nil
}

// SaveVerification appends a verification report. Reports are an
// append-only log per task: retries and reviews each leave a row.
func (s *Store) SaveVerification(ctx context.Context, r *verify.Report) error {
	discrepancies, err := json.Marshal(r.Discrepancies)
	if err != nil {
		return fmt.Errorf("marshal discrepancies: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO verifications(
			task_id, pair_id, verifier_id, status, goal_alignment, quality,
			confidence, discrepancies, attempt, duration_ns, completed_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TaskID, r.PairID, r.VerifierID, string(r.Status), r.GoalAlignment, r.Quality,
		r.Confidence, string(discrepancies), r.Attempt, int64(r.Duration), r.CompletedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save verification: %w", err)
	}
	return nil
}

// ListVerifications loads all reports for a task in completion order.
func (s *Store) ListVerifications(ctx context.Context, taskID string) ([]*verify.Report, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT task_id, pair_id, verifier_id, status, goal_alignment, quality,
			confidence, discrepancies, attempt, duration_ns, completed_at
		FROM verifications WHERE task_id = ? ORDER BY completed_at ASC, attempt ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	result := make([]*verify.Report, 0)
	for rows.Next() {
		var (
			r             verify.Report
			status        string
			discrepancies string
			duration      int64
			completed     int64
		)
		if err := rows.Scan(
			&r.TaskID, &r.PairID, &r.VerifierID, &status, &r.GoalAlignment, &r.Quality,
			&r.Confidence, &discrepancies, &r.Attempt, &duration, &completed,
		); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		if err := json.Unmarshal([]byte(discrepancies), &r.Discrepancies); err != nil {
			return nil, fmt.Errorf("unmarshal discrepancies: %w", err)
		}
		r.Status = verify.Status(status)
		r.Duration = time.Duration(duration)
		r.CompletedAt = unixToTime(completed)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifications: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t            task.Task
		priority     int
		required     string
		status       string
		duration     int64
		result       sql.NullString
		verification sql.NullString
		created      int64
		updated      int64
		assigned     sql.NullInt64
		completed    sql.NullInt64
	)
	if err := row.Scan(
		&t.ID, &t.Description, &priority, &required, &status, &t.AssignedTo, &t.Progress,
		&duration, &t.RetryCount, &t.MaxRetries, &t.FailureContext,
		&result, &verification, &created, &updated, &assigned, &completed,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(required), &t.Required); err != nil {
		return nil, fmt.Errorf("unmarshal requirements: %w", err)
	}
	if result.Valid {
		t.Result = &task.Result{}
		if err := json.Unmarshal([]byte(result.String), t.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if verification.Valid {
		t.Verification = &task.VerificationSpec{}
		if err := json.Unmarshal([]byte(verification.String), t.Verification); err != nil {
			return nil, fmt.Errorf("unmarshal verification spec: %w", err)
		}
	}

	t.Priority = task.Priority(priority)
	t.Status = task.Status(status)
	t.EstimatedDuration = time.Duration(duration)
	t.CreatedAt = unixToTime(created)
	t.UpdatedAt = unixToTime(updated)
	t.AssignedAt = int64ToTimePtr(assigned)
	t.CompletedAt = int64ToTimePtr(completed)
	return &t, nil
}

func scanAgent(row rowScanner) (*agent.Agent, error) {
	var (
		a          agent.Agent
		kind       string
		state      string
		caps       string
		lastActive int64
		created    int64
	)
	if err := row.Scan(
		&a.ID, &a.Name, &kind, &state, &a.Energy, &caps,
		&a.TasksCompleted, &a.TasksFailed, &lastActive, &created,
	); err != nil {
		return nil, err
	}

	a.Capabilities = capability.Set{}
	if err := json.Unmarshal([]byte(caps), &a.Capabilities); err != nil {
		return nil, fmt.Errorf("unmarshal capabilities: %w", err)
	}
	a.Kind = agent.Kind(kind)
	a.State = agent.State(state)
	a.LastActive = unixToTime(lastActive)
	a.CreatedAt = unixToTime(created)
	return &a, nil
}

func marshalNullable(v any) (any, error) {
	switch x := v.(type) {
	case *task.Result:
		if x == nil {
			return nil, nil
		}
	case *task.VerificationSpec:
		if x == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func int64ToTimePtr(v sql.NullInt64) *time.Time {
	if !v.Valid || v.Int64 <= 0 {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func unixToTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}
