// Package credstore holds the identifiers produced by a login for the lifetime of the
// process. Nothing is written to disk.
package credstore

import "sync"

// Credentials is a point-in-time copy of the stored identifiers.
type Credentials struct {
	RequestToken string `json:"request_token,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	UserID       int64  `json:"user_id,omitempty"`
}

// Authenticated reports whether both a session and a user have been recorded.
func (c Credentials) Authenticated() bool {
	return c.SessionID != "" && c.UserID != 0
}

// Memory is a concurrency-safe, last-write-wins credential store.
type Memory struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SetRequestToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds.RequestToken = token
}

func (m *Memory) SetSessionID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds.SessionID = id
}

func (m *Memory) SetUserID(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds.UserID = id
}

// Snapshot returns a copy of the current values.
func (m *Memory) Snapshot() Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds
}

// Reset forgets everything, e.g. on logout.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
}
