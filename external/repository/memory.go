package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/foxseedlab/mojiokoshin-live/internal/repository"
)

// DefaultMemoryJournalCapacity is the number of sessions kept when no capacity is given.
const DefaultMemoryJournalCapacity = 1000

// MemoryRepository keeps the journal in process. It is used when no
// DATABASE_URL is configured. Past capacity the oldest closed session is
// evicted first, then the oldest one overall.
type MemoryRepository struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*repository.Session
	order    []string
}

func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryJournalCapacity
	}
	return &MemoryRepository{
		capacity: capacity,
		sessions: make(map[string]*repository.Session),
	}
}

func (r *MemoryRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[input.ID]; ok {
		return nil, fmt.Errorf("stream session %s already exists", input.ID)
	}
	s := &repository.Session{
		ID:         input.ID,
		RemoteAddr: input.RemoteAddr,
		AckMode:    input.AckMode,
		Status:     repository.SessionStatusStreaming,
		StartedAt:  input.StartedAt,
	}
	r.sessions[input.ID] = s
	r.order = append(r.order, input.ID)
	r.evict()
	cp := *s
	return &cp, nil
}

// evict must be called with r.mu held.
func (r *MemoryRepository) evict() {
	for len(r.order) > r.capacity {
		victim := 0
		for i, id := range r.order {
			if r.sessions[id].Status == repository.SessionStatusClosed {
				victim = i
				break
			}
		}
		delete(r.sessions, r.order[victim])
		r.order = append(r.order[:victim], r.order[victim+1:]...)
	}
}

func (r *MemoryRepository) CompleteSession(_ context.Context, input repository.CompleteSessionInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[input.SessionID]
	if !ok {
		return fmt.Errorf("stream session %s not found", input.SessionID)
	}
	endedAt := input.EndedAt
	s.Status = repository.SessionStatusClosed
	s.EndedAt = &endedAt
	s.BlocksReceived = input.BlocksReceived
	s.RepliesSent = input.RepliesSent
	s.EmptyResults = input.EmptyResults
	s.DecodeErrors = input.DecodeErrors
	s.CloseCode = input.CloseCode
	s.CloseReason = input.CloseReason
	return nil
}

func (r *MemoryRepository) GetSession(_ context.Context, id string) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) ListRecentSessions(_ context.Context, limit int) ([]repository.Session, error) {
	r.mu.Lock()
	list := make([]repository.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, *s)
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.After(list[j].StartedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
