package store

import (
	"errors"
	"sync"
	"time"

	"tcm-wellness-backend/internal/consult"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrBusy     = errors.New("session has a reply in progress")
	ErrExists   = errors.New("session already exists")
)

type entry struct {
	session *consult.Session
	busy    bool
	seenAt  time.Time
}

// MemoryStore keeps consultation sessions in memory. Sessions idle for longer
// than ttl are dropped lazily on access and by Prune.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*entry
	maxMessages int
	ttl         time.Duration
	now         func() time.Time
}

func NewMemoryStore(maxMessages int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*entry),
		maxMessages: maxMessages,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Create stores a new session.
func (m *MemoryStore) Create(s *consult.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[s.ID]; ok && !m.expiredLocked(e) {
		return ErrExists
	}
	m.sessions[s.ID] = &entry{session: s.Clone(), seenAt: m.now()}
	m.trimLocked(s.ID)
	return nil
}

// Get returns a copy of the session.
func (m *MemoryStore) Get(id string) (*consult.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.liveLocked(id)
	if err != nil {
		return nil, err
	}
	e.seenAt = m.now()
	return e.session.Clone(), nil
}

// Busy reports whether a reply is being generated for the session.
func (m *MemoryStore) Busy(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	return ok && e.busy
}

// Update applies fn to the stored session under the store lock. A failing fn
// leaves the session unchanged.
func (m *MemoryStore) Update(id string, fn func(*consult.Session) error) error {
	return m.update(id, false, fn)
}

// UpdateIdle is Update that refuses sessions with a reply in progress.
func (m *MemoryStore) UpdateIdle(id string, fn func(*consult.Session) error) error {
	return m.update(id, true, fn)
}

func (m *MemoryStore) update(id string, idle bool, fn func(*consult.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.liveLocked(id)
	if err != nil {
		return err
	}
	if idle && e.busy {
		return ErrBusy
	}
	work := e.session.Clone()
	if err := fn(work); err != nil {
		return err
	}
	e.session = work
	e.seenAt = m.now()
	m.trimLocked(id)
	return nil
}

// Acquire marks the session busy. Only one reply may be generated per session
// at a time.
func (m *MemoryStore) Acquire(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.liveLocked(id)
	if err != nil {
		return err
	}
	if e.busy {
		return ErrBusy
	}
	e.busy = true
	return nil
}

// Release clears the busy mark.
func (m *MemoryStore) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		e.busy = false
		e.seenAt = m.now()
	}
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Prune drops expired sessions and returns how many were removed.
func (m *MemoryStore) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if m.expiredLocked(e) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// All returns copies of every live session, for snapshots.
func (m *MemoryStore) All() []*consult.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*consult.Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		if !m.expiredLocked(e) {
			out = append(out, e.session.Clone())
		}
	}
	return out
}

// Restore loads sessions from a snapshot. Sessions whose last update is older
// than the ttl are skipped. It returns how many were loaded.
func (m *MemoryStore) Restore(sessions []*consult.Session) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for _, s := range sessions {
		if s == nil || s.ID == "" {
			continue
		}
		if m.ttl > 0 && now.Sub(s.UpdatedAt) > m.ttl {
			continue
		}
		m.sessions[s.ID] = &entry{session: s.Clone(), seenAt: s.UpdatedAt}
		m.trimLocked(s.ID)
		n++
	}
	return n
}

func (m *MemoryStore) liveLocked(id string) (*entry, error) {
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.expiredLocked(e) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	return e, nil
}

// busy sessions never expire
func (m *MemoryStore) expiredLocked(e *entry) bool {
	return m.ttl > 0 && !e.busy && m.now().Sub(e.seenAt) > m.ttl
}

func (m *MemoryStore) trimLocked(id string) {
	if m.maxMessages <= 0 {
		return
	}
	s := m.sessions[id].session
	if len(s.Messages) > m.maxMessages {
		s.Messages = append([]consult.Message(nil), s.Messages[len(s.Messages)-m.maxMessages:]...)
	}
}
