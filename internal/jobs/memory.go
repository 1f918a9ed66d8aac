package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps runs in process memory. It is the store used when no
// state DSN is configured.
type MemoryStore struct {
	mu      sync.Mutex
	runs    map[string]*Run
	history map[string][]Transition
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    map[string]*Run{},
		history: map[string][]Transition{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, job string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := newRun(job, s.now())
	s.runs[r.ID] = &r
	return r, nil
}

func (s *MemoryStore) Transition(_ context.Context, id string, to State, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := checkTransition(id, r.State, to); err != nil {
		return err
	}
	now := s.now()
	s.history[id] = append(s.history[id], Transition{
		RunID: id, Seq: len(s.history[id]) + 1, From: r.State, To: to, Message: u.Message, At: now,
	})
	apply(r, to, u, now)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *r, nil
}

func (s *MemoryStore) History(_ context.Context, id string) ([]Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return append([]Transition(nil), s.history[id]...), nil
}

func (s *MemoryStore) Close() error { return nil }
