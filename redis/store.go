// Package redis provides a Redis-backed FlowStore and FlowQueue for
// flowengine, for multi-process deployments that need a shared, durable
// backend instead of the in-memory reference implementation.
package redis

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flowrun/flowengine/internal/store"
	"github.com/flowrun/flowengine/pkg/flow"
)

// Store is a store.FlowStore backed by Redis. Each run is a single gob
// payload under "<prefix>run:<id>"; elements are appended to a Redis list
// under "<prefix>elems:<id>"; a per-user sorted set at "<prefix>user:<id>"
// indexes run ids by creation time for ListRunsForUser.
type Store struct {
	client *goredis.Client
	prefix string
}

var _ store.FlowStore = (*Store)(nil)

// NewStore builds a Redis-backed Store. prefix is optional (defaults to
// "flowengine:").
func NewStore(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "flowengine:"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) keyRun(id string) string    { return s.prefix + "run:" + id }
func (s *Store) keyElems(id string) string  { return s.prefix + "elems:" + id }
func (s *Store) keyUser(user string) string { return s.prefix + "user:" + user }

type runPayload struct {
	ID           string
	FlowName     string
	UserID       string
	Status       string
	CreatedAt    int64
	CompletedAt  int64
	Input        []byte
	Result       []byte
	HasResult    bool
	ErrorMessage string
}

func (s *Store) SaveRun(run *flow.Run) (string, error) {
	ctx := context.Background()

	input, err := store.EncodeValue(run.Input)
	if err != nil {
		return "", err
	}

	data, err := encodeRunPayload(&runPayload{
		ID:        run.ID,
		FlowName:  run.FlowName,
		UserID:    run.UserID,
		Status:    string(run.Status),
		CreatedAt: run.CreatedAt.UnixNano(),
		Input:     input,
	})
	if err != nil {
		return "", err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keyRun(run.ID), data, 0)
	pipe.ZAdd(ctx, s.keyUser(run.UserID), goredis.Z{Score: float64(run.CreatedAt.UnixNano()), Member: run.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}

	return run.ID, nil
}

func (s *Store) GetRun(id string) (*flow.Run, error) {
	ctx := context.Background()

	data, err := s.client.Get(ctx, s.keyRun(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrRunNotFound
		}
		return nil, err
	}
	return decodeRun(data)
}

func (s *Store) ListRunsForUser(userID string, limit int) ([]*flow.Run, error) {
	ctx := context.Background()

	zrange := s.client.ZRevRange(ctx, s.keyUser(userID), 0, -1)
	ids, err := zrange.Result()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*flow.Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(id)
		if errors.Is(err, store.ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (s *Store) UpdateRunStatus(id string, status flow.Status, now time.Time) error {
	return s.mutateRun(id, func(p *runPayload) {
		if flow.Status(p.Status).IsTerminal() {
			return
		}
		p.Status = string(status)
		if status.IsTerminal() {
			p.CompletedAt = now.UnixNano()
		}
	})
}

func (s *Store) UpdateRunCompletionTime(id string, t time.Time) error {
	return s.mutateRun(id, func(p *runPayload) {
		p.CompletedAt = t.UnixNano()
	})
}

func (s *Store) UpdateRunErrorMessage(id string, msg string) error {
	return s.mutateRun(id, func(p *runPayload) {
		p.ErrorMessage = msg
	})
}

// mutateRun loads, mutates, and writes back a run payload. Redis gives us
// no optimistic-lock primitive here beyond WATCH, which isn't worth the
// complexity at this backend's target scale; the in-memory store remains
// the source of truth for the core's concurrency invariants.
func (s *Store) mutateRun(id string, mutate func(*runPayload)) error {
	ctx := context.Background()

	data, err := s.client.Get(ctx, s.keyRun(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return err
	}

	var payload runPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return err
	}

	mutate(&payload)

	out, err := encodeRunPayload(&payload)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.keyRun(id), out, 0).Err()
}

func (s *Store) SaveElement(el *flow.Element) (string, error) {
	ctx := context.Background()

	content, err := store.EncodeValue(el.Content)
	if err != nil {
		return "", err
	}

	data, err := encodeElement(el, content)
	if err != nil {
		return "", err
	}

	if err := s.client.RPush(ctx, s.keyElems(el.RunID), data).Err(); err != nil {
		return "", err
	}
	return el.ID, nil
}

func (s *Store) GetElements(runID string) ([]*flow.Element, error) {
	ctx := context.Background()

	raw, err := s.client.LRange(ctx, s.keyElems(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*flow.Element, 0, len(raw))
	for _, item := range raw {
		el, err := decodeElement([]byte(item))
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func (s *Store) SaveResult(runID string, result any) error {
	data, err := store.EncodeValue(result)
	if err != nil {
		return err
	}
	return s.mutateRun(runID, func(p *runPayload) {
		p.Result = data
		p.HasResult = true
	})
}

func (s *Store) GetResult(runID string) (any, error) {
	ctx := context.Background()

	data, err := s.client.Get(ctx, s.keyRun(runID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrResultNotFound
		}
		return nil, err
	}

	var payload runPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, err
	}
	if !payload.HasResult {
		return nil, store.ErrResultNotFound
	}
	return store.DecodeValue[any](payload.Result)
}

type elementPayload struct {
	ID        string
	RunID     string
	CreatedAt int64
	Content   []byte
}

func encodeElement(el *flow.Element, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	p := elementPayload{ID: el.ID, RunID: el.RunID, CreatedAt: el.CreatedAt.UnixNano(), Content: content}
	if err := gob.NewEncoder(&buf).Encode(&p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeElement(data []byte) (*flow.Element, error) {
	var p elementPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, err
	}
	content, err := store.DecodeValue[any](p.Content)
	if err != nil {
		return nil, err
	}
	return &flow.Element{
		ID:        p.ID,
		RunID:     p.RunID,
		CreatedAt: time.Unix(0, p.CreatedAt),
		Content:   content,
	}, nil
}

func encodeRunPayload(p *runPayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRun(data []byte) (*flow.Run, error) {
	var p runPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode run payload: %w", err)
	}

	input, err := store.DecodeValue[any](p.Input)
	if err != nil {
		return nil, err
	}

	run := &flow.Run{
		ID:           p.ID,
		FlowName:     p.FlowName,
		UserID:       p.UserID,
		Status:       flow.Status(p.Status),
		CreatedAt:    time.Unix(0, p.CreatedAt),
		Input:        input,
		ErrorMessage: p.ErrorMessage,
	}
	if p.CompletedAt != 0 {
		run.CompletedAt = time.Unix(0, p.CompletedAt)
	}
	if p.HasResult {
		result, err := store.DecodeValue[any](p.Result)
		if err != nil {
			return nil, err
		}
		run.Result = result
	}

	return run, nil
}
