package conversation

import (
	"sync"
	"time"
)

// Store holds per-caller conversations in process memory, keyed by
// normalized phone number. Same-key writes are last-write-wins; the low
// per-caller event rate makes that acceptable. Entries older than the TTL
// are reaped in the background so memory stays bounded.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]Conversation
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
	nowFn func() time.Time
}

// NewStore creates a store whose entries expire after ttl of inactivity.
// A ttl of zero disables eviction.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		byID:  make(map[string]Conversation),
		ttl:   ttl,
		stop:  make(chan struct{}),
		nowFn: time.Now,
	}
	if ttl > 0 {
		go s.reap()
	}
	return s
}

// Get returns the conversation for callerID. ok is false when the caller
// has no record, which callers must treat as state new.
func (s *Store) Get(callerID string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.byID[callerID]
	return conv, ok
}

// Put stores conv under its CallerID, stamping UpdatedAt.
func (s *Store) Put(conv Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv.UpdatedAt = s.nowFn()
	s.byID[conv.CallerID] = conv
}

// Delete removes the record for callerID if present.
func (s *Store) Delete(callerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, callerID)
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Stop terminates the background reaper.
func (s *Store) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Store) reap() {
	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.nowFn().Add(-s.ttl)
	for id, conv := range s.byID {
		if conv.UpdatedAt.Before(cutoff) {
			delete(s.byID, id)
		}
	}
}
