package sessions

import (
	"sync"
	"time"

	"github.com/kaodean/monco/internal/agent"
)

// Session is one user's isolated conversation: a UUID-named workspace plus a
// connected agent client. Identity follows the workspace, not the user; a
// reset gives the same user a brand-new session.
type Session struct {
	UserID    string
	UUID      string
	Path      string
	CreatedAt time.Time

	Agent *agent.Client

	mu           sync.Mutex
	lastUsed     time.Time
	totalCostUSD float64
	totalTasks   int
}

// Touch marks the session as used now, pushing its expiry forward.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// LastUsed returns the time of the most recent task or creation.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Expired reports whether the session's idle time strictly exceeds ttl at
// the given instant. Idle time exactly equal to ttl is not expired.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastUsed()) > ttl
}

// RecordTask accumulates one finished task's cost into the session totals.
func (s *Session) RecordTask(costUSD float64) {
	s.mu.Lock()
	s.totalCostUSD += costUSD
	s.totalTasks++
	s.mu.Unlock()
}

// Stats returns the accumulated task count and cost.
func (s *Session) Stats() (tasks int, costUSD float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalTasks, s.totalCostUSD
}
