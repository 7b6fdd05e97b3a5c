// Package sqlite implements store.FlowStore on top of an *sql.DB using the
// modernc.org/sqlite driver, for single-process durability across process
// restarts. It is an opt-in extension of the in-memory reference store, not
// a replacement for it: every core invariant is still defined against, and
// tested against, the in-memory implementation.
package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/flowrun/flowengine/internal/store"
	"github.com/flowrun/flowengine/pkg/flow"
)

// Store is a store.FlowStore backed by SQLite.
//
// Callers are responsible for importing the driver:
//
//	import _ "modernc.org/sqlite"
type Store struct {
	db *sql.DB
}

var _ store.FlowStore = (*Store)(nil)

// New initializes the required schema in db and returns a Store.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS flow_runs (
			id            TEXT PRIMARY KEY,
			flow_name     TEXT NOT NULL,
			user_id       TEXT NOT NULL,
			status        TEXT NOT NULL,
			created_at    INTEGER NOT NULL,
			completed_at  INTEGER,
			input         BLOB,
			result        BLOB,
			error_message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_flow_runs_user ON flow_runs(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS flow_elements (
			id         TEXT PRIMARY KEY,
			run_id     TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			seq        INTEGER NOT NULL,
			content    BLOB
		);
		CREATE INDEX IF NOT EXISTS idx_flow_elements_run ON flow_elements(run_id, seq ASC);
	`)
	return err
}

func (s *Store) SaveRun(run *flow.Run) (string, error) {
	input, err := store.EncodeValue(run.Input)
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(`
		INSERT INTO flow_runs (id, flow_name, user_id, status, created_at, completed_at, input, result, error_message)
		VALUES (?, ?, ?, ?, ?, NULL, ?, NULL, '')`,
		run.ID, run.FlowName, run.UserID, string(run.Status), run.CreatedAt.UnixNano(), input,
	)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func (s *Store) GetRun(id string) (*flow.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, flow_name, user_id, status, created_at, completed_at, input, result, error_message
		FROM flow_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRunNotFound
	}
	return run, err
}

func (s *Store) ListRunsForUser(userID string, limit int) ([]*flow.Run, error) {
	query := `
		SELECT id, flow_name, user_id, status, created_at, completed_at, input, result, error_message
		FROM flow_runs WHERE user_id = ? ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*flow.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) UpdateRunStatus(id string, status flow.Status, now time.Time) error {
	var completedAt any
	if status.IsTerminal() {
		completedAt = now.UnixNano()
	}

	_, err := s.db.Exec(`
		UPDATE flow_runs SET status = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ? AND status NOT IN (?, ?, ?)`,
		string(status), completedAt, id,
		string(flow.StatusCompleted), string(flow.StatusFailed), string(flow.StatusCanceled),
	)
	return err
}

func (s *Store) UpdateRunCompletionTime(id string, t time.Time) error {
	_, err := s.db.Exec(`UPDATE flow_runs SET completed_at = ? WHERE id = ?`, t.UnixNano(), id)
	return err
}

func (s *Store) UpdateRunErrorMessage(id string, msg string) error {
	_, err := s.db.Exec(`UPDATE flow_runs SET error_message = ? WHERE id = ?`, msg, id)
	return err
}

func (s *Store) SaveElement(el *flow.Element) (string, error) {
	content, err := store.EncodeValue(el.Content)
	if err != nil {
		return "", err
	}

	var seq int64
	row := s.db.QueryRow(`SELECT COALESCE(MAX(seq), -1) + 1 FROM flow_elements WHERE run_id = ?`, el.RunID)
	if err := row.Scan(&seq); err != nil {
		return "", err
	}

	_, err = s.db.Exec(`
		INSERT INTO flow_elements (id, run_id, created_at, seq, content)
		VALUES (?, ?, ?, ?, ?)`,
		el.ID, el.RunID, el.CreatedAt.UnixNano(), seq, content,
	)
	if err != nil {
		return "", err
	}
	return el.ID, nil
}

func (s *Store) GetElements(runID string) ([]*flow.Element, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, created_at, content FROM flow_elements
		WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*flow.Element, 0)
	for rows.Next() {
		var (
			el          flow.Element
			createdAt   int64
			contentBlob []byte
		)
		if err := rows.Scan(&el.ID, &el.RunID, &createdAt, &contentBlob); err != nil {
			return nil, err
		}
		el.CreatedAt = time.Unix(0, createdAt)
		content, err := store.DecodeValue[any](contentBlob)
		if err != nil {
			return nil, err
		}
		el.Content = content
		out = append(out, &el)
	}
	return out, rows.Err()
}

func (s *Store) SaveResult(runID string, result any) error {
	data, err := store.EncodeValue(result)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE flow_runs SET result = ? WHERE id = ?`, data, runID)
	return err
}

func (s *Store) GetResult(runID string) (any, error) {
	var data []byte
	row := s.db.QueryRow(`SELECT result FROM flow_runs WHERE id = ?`, runID)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrResultNotFound
		}
		return nil, err
	}
	if data == nil {
		return nil, store.ErrResultNotFound
	}
	return store.DecodeValue[any](data)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*flow.Run, error) {
	var (
		run          flow.Run
		status       string
		createdAt    int64
		completedAt  sql.NullInt64
		inputBlob    []byte
		resultBlob   []byte
		errorMessage string
	)

	if err := row.Scan(&run.ID, &run.FlowName, &run.UserID, &status, &createdAt, &completedAt, &inputBlob, &resultBlob, &errorMessage); err != nil {
		return nil, err
	}

	run.Status = flow.Status(status)
	run.CreatedAt = time.Unix(0, createdAt)
	if completedAt.Valid {
		run.CompletedAt = time.Unix(0, completedAt.Int64)
	}
	run.ErrorMessage = errorMessage

	input, err := store.DecodeValue[any](inputBlob)
	if err != nil {
		return nil, err
	}
	run.Input = input

	if resultBlob != nil {
		result, err := store.DecodeValue[any](resultBlob)
		if err != nil {
			return nil, err
		}
		run.Result = result
	}

	return &run, nil
}
