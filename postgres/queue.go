package postgres

import (
	"database/sql"
	"time"

	"github.com/flowrun/flowengine/internal/queue"
)

// Queue is a queue.FlowQueue backed by PostgreSQL. PopPending claims the
// oldest pending row with SELECT ... FOR UPDATE SKIP LOCKED inside a
// transaction and moves it to in-progress before committing, so the
// dequeue-then-promote pair is atomic across concurrent engine processes.
type Queue struct {
	db *sql.DB
}

var _ queue.FlowQueue = (*Queue)(nil)

// NewQueue initializes the required schema in db and returns a Queue.
func NewQueue(db *sql.DB) (*Queue, error) {
	q := &Queue{db: db}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS flow_queue_pending (
			id         TEXT PRIMARY KEY,
			enqueued_at BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS flow_queue_inprogress (
			id             TEXT PRIMARY KEY,
			last_heartbeat BIGINT NOT NULL
		);
	`)
	return err
}

func (q *Queue) PushPending(id string) {
	_, _ = q.db.Exec(`INSERT INTO flow_queue_pending (id, enqueued_at) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, id, time.Now().UnixNano())
}

func (q *Queue) PopPending() (string, bool) {
	tx, err := q.db.Begin()
	if err != nil {
		return "", false
	}

	var id string
	row := tx.QueryRow(`
		SELECT id FROM flow_queue_pending
		ORDER BY enqueued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1`)
	if err := row.Scan(&id); err != nil {
		_ = tx.Rollback()
		return "", false
	}

	if _, err := tx.Exec(`DELETE FROM flow_queue_pending WHERE id = $1`, id); err != nil {
		_ = tx.Rollback()
		return "", false
	}
	if _, err := tx.Exec(`
		INSERT INTO flow_queue_inprogress (id, last_heartbeat) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET last_heartbeat = EXCLUDED.last_heartbeat`,
		id, time.Now().UnixNano()); err != nil {
		_ = tx.Rollback()
		return "", false
	}

	if err := tx.Commit(); err != nil {
		return "", false
	}
	return id, true
}

func (q *Queue) PushInProgress(id string) {
	_, _ = q.db.Exec(`
		INSERT INTO flow_queue_inprogress (id, last_heartbeat) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET last_heartbeat = EXCLUDED.last_heartbeat`,
		id, time.Now().UnixNano())
}

func (q *Queue) PopInProgress(id string) {
	_, _ = q.db.Exec(`DELETE FROM flow_queue_inprogress WHERE id = $1`, id)
}

func (q *Queue) ResetHeartbeat(id string) {
	_, _ = q.db.Exec(`UPDATE flow_queue_inprogress SET last_heartbeat = $1 WHERE id = $2`,
		time.Now().UnixNano(), id)
}

func (q *Queue) RequeueExpired(visibilityTimeout time.Duration) {
	cutoff := time.Now().Add(-visibilityTimeout).UnixNano()

	tx, err := q.db.Begin()
	if err != nil {
		return
	}

	rows, err := tx.Query(`SELECT id FROM flow_queue_inprogress WHERE last_heartbeat < $1`, cutoff)
	if err != nil {
		_ = tx.Rollback()
		return
	}
	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			expired = append(expired, id)
		}
	}
	rows.Close()

	for _, id := range expired {
		if _, err := tx.Exec(`DELETE FROM flow_queue_inprogress WHERE id = $1`, id); err != nil {
			_ = tx.Rollback()
			return
		}
		if _, err := tx.Exec(`
			INSERT INTO flow_queue_pending (id, enqueued_at) VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING`, id, time.Now().UnixNano()); err != nil {
			_ = tx.Rollback()
			return
		}
	}

	_ = tx.Commit()
}
