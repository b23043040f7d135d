package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store backend for local development and tests.
// Entries expire lazily: an expired record is removed on the read that
// observes it. All methods are safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore returns an empty in-memory store with the standard TTL.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     TTL,
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, state *State) error {
	return s.Set(ctx, state)
}

func (s *MemoryStore) Get(_ context.Context, interviewID string) (*State, error) {
	key := Key(interviewID)

	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok && s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}

	var state State
	if err := json.Unmarshal(entry.data, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", interviewID, err)
	}

	return &state, nil
}

func (s *MemoryStore) Set(_ context.Context, state *State) error {
	// Serializing keeps reads aliasing-free and matches what the Redis
	// backend round-trips.
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.InterviewID, err)
	}

	s.mu.Lock()
	s.entries[Key(state.InterviewID)] = memoryEntry{
		data:      data,
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, interviewID string) error {
	s.mu.Lock()
	delete(s.entries, Key(interviewID))
	s.mu.Unlock()

	return nil
}
