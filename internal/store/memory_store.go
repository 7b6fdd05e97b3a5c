package store

import (
	"sort"
	"sync"
	"time"

	"github.com/flowrun/flowengine/pkg/flow"
)

// InMemoryStore is a simple, goroutine-safe FlowStore backed by maps. It is
// the reference implementation: non-durable across process restarts, but
// sufficient for every core invariant the engine guarantees.
type InMemoryStore struct {
	mu       sync.RWMutex
	runs     map[string]*flow.Run
	elements map[string][]*flow.Element
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs:     make(map[string]*flow.Run),
		elements: make(map[string][]*flow.Element),
	}
}

var _ FlowStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveRun(run *flow.Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *run
	s.runs[run.ID] = &cp
	return run.ID, nil
}

func (s *InMemoryStore) GetRun(id string) (*flow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *InMemoryStore) ListRunsForUser(userID string, limit int) ([]*flow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*flow.Run
	for _, run := range s.runs {
		if run.UserID == userID {
			cp := *run
			matched = append(matched, &cp)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemoryStore) UpdateRunStatus(id string, status flow.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil
	}
	if run.Status.IsTerminal() {
		return nil
	}

	run.Status = status
	if status.IsTerminal() {
		run.CompletedAt = now
	}
	return nil
}

func (s *InMemoryStore) UpdateRunCompletionTime(id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil
	}
	run.CompletedAt = t
	return nil
}

func (s *InMemoryStore) UpdateRunErrorMessage(id string, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil
	}
	run.ErrorMessage = msg
	return nil
}

func (s *InMemoryStore) SaveElement(el *flow.Element) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *el
	s.elements[el.RunID] = append(s.elements[el.RunID], &cp)
	return el.ID, nil
}

func (s *InMemoryStore) GetElements(runID string) ([]*flow.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	els := s.elements[runID]
	out := make([]*flow.Element, len(els))
	for i, el := range els {
		cp := *el
		out[i] = &cp
	}
	return out, nil
}

func (s *InMemoryStore) SaveResult(runID string, result any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil
	}
	run.Result = result
	return nil
}

func (s *InMemoryStore) GetResult(runID string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok || run.Result == nil {
		return nil, ErrResultNotFound
	}
	return run.Result, nil
}
