package authsdk

import (
	"context"
	"sync"
)

// Record is the durable counterpart of a session's credentials. It is what a
// CredentialStore persists between process runs.
type Record struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *UserProfile `json:"user,omitempty"`
}

// Empty reports whether the record holds no credentials at all.
func (r Record) Empty() bool {
	return r.AccessToken == "" && r.RefreshToken == ""
}

// CredentialStore persists the current credential record. Implementations
// must be atomic from the caller's perspective: a concurrent Load never
// observes a half-written record.
//
// The session manager treats every store failure as "store unavailable" and
// keeps operating in memory, so implementations should return errors rather
// than panic.
type CredentialStore interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context) (Record, bool, error)
	Clear(ctx context.Context) error
}

// MemoryStore is an in-process CredentialStore. It is the default store and
// the one tests use; sessions backed by it do not survive a restart.
type MemoryStore struct {
	mu  sync.Mutex
	rec Record
	set bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = rec
	m.set = true
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return Record{}, false, nil
	}
	return m.rec, true, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = Record{}
	m.set = false
	return nil
}
