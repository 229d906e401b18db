package callstate

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for tests and for softphone runs
// without Redis. It serializes through JSON like RedisStore so the persisted
// copy is always a deep copy, never the live object.
type MemoryStore struct {
	mu      sync.Mutex
	current map[string][]byte
	pending map[string][]byte

	// Clock is injectable for expiry tests; defaults to time.Now.
	Clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		current: make(map[string][]byte),
		pending: make(map[string][]byte),
		Clock:   time.Now,
	}
}

func (s *MemoryStore) SaveCurrentCall(_ context.Context, userID string, call *Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if call == nil {
		delete(s.current, userID)
		return
	}
	data, err := json.Marshal(call)
	if err != nil {
		return
	}
	s.current[userID] = data
}

func (s *MemoryStore) LoadCurrentCall(_ context.Context, userID string) *Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.current[userID]
	if !ok {
		return nil
	}
	call, ok := decodeCall(data, s.Clock())
	if !ok {
		delete(s.current, userID)
		return nil
	}
	return call
}

func (s *MemoryStore) SavePendingRequest(_ context.Context, userID string, req *PendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req == nil {
		delete(s.pending, userID)
		return
	}
	data, err := json.Marshal(req)
	if err != nil {
		return
	}
	s.pending[userID] = data
}

func (s *MemoryStore) LoadPendingRequest(_ context.Context, userID string) *PendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.pending[userID]
	if !ok {
		return nil
	}
	req, ok := decodePending(data)
	if !ok {
		delete(s.pending, userID)
		return nil
	}
	return req
}

func (s *MemoryStore) ClearPendingRequest(_ context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
}

// SeedCurrentCall injects a raw payload into the current-call slot. Used by
// tests to simulate malformed stored data.
func (s *MemoryStore) SeedCurrentCall(userID string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[userID] = raw
}

// HasCurrentCall reports whether the current-call slot holds anything.
func (s *MemoryStore) HasCurrentCall(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.current[userID]
	return ok
}

// HasPendingRequest reports whether the pending slot holds anything.
func (s *MemoryStore) HasPendingRequest(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[userID]
	return ok
}
