package services

import (
	"sync"
	"time"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/utils"
)

// SessionStore holds per-contact dialog state
type SessionStore interface {
	Get(phone string) (*models.Session, bool)
	Set(phone string, session *models.Session)
	Delete(phone string)
	// SetContext attaches the disambiguating tenant name without touching Step
	SetContext(phone, name string)
}

// SessionManager is an in-memory SessionStore. Sessions idle longer than the
// TTL are treated as absent; a TTL of zero disables expiry.
type SessionManager struct {
	sessions map[string]*models.Session
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a new session manager
func NewSessionManager(ttl time.Duration) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*models.Session),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

func sessionKey(phone string) string {
	return utils.NormalizePhone(phone)
}

func (sm *SessionManager) expired(s *models.Session) bool {
	return sm.ttl > 0 && sm.now().Sub(s.LastActive) > sm.ttl
}

// Get returns a copy of the session for phone
func (sm *SessionManager) Get(phone string) (*models.Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	s, exists := sm.sessions[sessionKey(phone)]
	if !exists || sm.expired(s) {
		return nil, false
	}
	return s.Clone(), true
}

// Set stores a copy of session and refreshes its activity time
func (sm *SessionManager) Set(phone string, session *models.Session) {
	if session == nil {
		sm.Delete(phone)
		return
	}
	key := sessionKey(phone)
	c := session.Clone()
	c.Phone = key
	c.LastActive = sm.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.LastActive
	}
	if c.Data == nil {
		c.Data = map[string]string{}
	}

	sm.mu.Lock()
	sm.sessions[key] = c
	sm.mu.Unlock()
}

// Delete removes the session for phone
func (sm *SessionManager) Delete(phone string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionKey(phone))
	sm.mu.Unlock()
}

// SetContext creates a step-less session when none exists
func (sm *SessionManager) SetContext(phone, name string) {
	key := sessionKey(phone)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, exists := sm.sessions[key]
	if !exists || sm.expired(s) {
		s = models.NewSession(key, "")
		s.CreatedAt = sm.now()
		sm.sessions[key] = s
	}
	s.ContextName = name
	s.LastActive = sm.now()
}

// ActiveCount returns the number of live sessions (for monitoring)
func (sm *SessionManager) ActiveCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	n := 0
	for _, s := range sm.sessions {
		if !sm.expired(s) {
			n++
		}
	}
	return n
}

// Sweep removes expired sessions and returns how many were dropped
func (sm *SessionManager) Sweep() int {
	if sm.ttl <= 0 {
		return 0
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	for key, s := range sm.sessions {
		if sm.expired(s) {
			delete(sm.sessions, key)
			removed++
		}
	}
	return removed
}

// StartJanitor runs Sweep periodically until Stop is called
func (sm *SessionManager) StartJanitor(interval time.Duration) {
	if sm.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := sm.Sweep(); n > 0 {
					logger.Info("🧹 Cleaned up expired sessions", "count", n)
				}
			case <-sm.stop:
				return
			}
		}
	}()
}

// Stop ends the janitor
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}
