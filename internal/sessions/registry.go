// Package sessions tracks the per-user agent sessions: creation, lookup,
// reset, and idle expiry.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/kaodean/monco/internal/agent"
	"github.com/kaodean/monco/internal/config"
	"github.com/kaodean/monco/internal/telemetry"
	"github.com/kaodean/monco/internal/workspace"
)

// Ledger persists per-user usage. Recording is best-effort; implementations
// must not block session work on storage failures.
type Ledger interface {
	RecordTask(userID, sessionUUID string, costUSD float64)
}

// Registry owns the user-to-session map. All session lifecycle transitions
// go through it.
type Registry struct {
	ws      *workspace.Manager
	rt      *agent.Runtime
	cfg     *config.Config
	ledger  Ledger
	metrics *telemetry.Metrics
	logger  *slog.Logger

	mu       sync.RWMutex
	byUser   map[string]*Session
	creating singleflight.Group

	cron *cron.Cron
}

// NewRegistry creates an empty session registry. ledger and metrics may be
// nil.
func NewRegistry(ws *workspace.Manager, rt *agent.Runtime, cfg *config.Config, ledger Ledger, metrics *telemetry.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		ws:      ws,
		rt:      rt,
		cfg:     cfg,
		ledger:  ledger,
		metrics: metrics,
		logger:  logger,
		byUser:  make(map[string]*Session),
	}
}

// GetOrCreate returns the user's session, creating and connecting one if
// needed. Concurrent calls for the same user collapse into a single create.
func (r *Registry) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.byUser[userID]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := r.creating.Do(userID, func() (interface{}, error) {
		r.mu.RLock()
		s, ok := r.byUser[userID]
		r.mu.RUnlock()
		if ok {
			return s, nil
		}

		s, err := r.create(ctx, userID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.byUser[userID] = s
		total := len(r.byUser)
		r.mu.Unlock()

		if r.metrics != nil {
			r.metrics.ActiveSessions.Set(float64(total))
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Lookup returns the user's session without creating one.
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[userID]
	return s, ok
}

// create builds a fresh session: new UUID, workspace layout, connected agent
// client.
func (r *Registry) create(ctx context.Context, userID string) (*Session, error) {
	id := uuid.NewString()
	now := time.Now()
	limits := r.cfg.Limits()

	path, err := r.ws.Init(id, now, limits.MaxWorkspaceMB, int(limits.SessionExpiry.Hours()))
	if err != nil {
		return nil, fmt.Errorf("sessions: init workspace for %s: %w", userID, err)
	}

	s := &Session{
		UserID:    userID,
		UUID:      id,
		Path:      path,
		CreatedAt: now,
		lastUsed:  now,
	}

	gate := func() (bool, float64, float64) {
		ok, size := r.ws.CheckLimit(path, r.cfg.MaxWorkspaceBytes())
		return ok, float64(size) / (1024 * 1024), float64(r.cfg.Limits().MaxWorkspaceMB)
	}
	onComplete := func(costUSD float64) {
		s.RecordTask(costUSD)
		if r.ledger != nil {
			r.ledger.RecordTask(userID, id, costUSD)
		}
		if r.metrics != nil {
			r.metrics.WorkspaceBytes.WithLabelValues(id).Set(float64(r.ws.SizeBytes(path)))
		}
	}

	s.Agent = agent.NewClient(r.rt, id, path, gate, onComplete)
	if err := s.Agent.Connect(ctx); err != nil {
		return nil, fmt.Errorf("sessions: connect agent for %s: %w", userID, err)
	}

	r.logger.Info("session created", "user", userID, "session", id, "workspace", path)
	return s, nil
}

// Reset replaces the user's session with a fresh one. The old workspace
// directory stays on disk; only the registry entry and agent client go.
// Returns the new session and the old UUID ("" if there was none).
func (r *Registry) Reset(ctx context.Context, userID string) (*Session, string, error) {
	r.mu.Lock()
	old, had := r.byUser[userID]
	delete(r.byUser, userID)
	r.mu.Unlock()

	oldUUID := ""
	if had {
		oldUUID = old.UUID
		if err := old.Agent.Close(); err != nil {
			r.logger.Warn("agent close failed during reset", "user", userID, "error", err)
		}
		if r.metrics != nil {
			r.metrics.WorkspaceBytes.DeleteLabelValues(old.UUID)
		}
	}

	s, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, oldUUID, err
	}
	r.logger.Info("session reset", "user", userID, "old", oldUUID, "new", s.UUID)
	return s, oldUUID, nil
}

// SweepExpired removes every session idle longer than the configured expiry:
// the agent client is closed, the workspace directory deleted, and the
// registry entry dropped. Returns the number of sessions swept. A sweep that
// finds nothing leaves the registry untouched.
func (r *Registry) SweepExpired(now time.Time) int {
	ttl := r.cfg.SessionExpiry()

	r.mu.Lock()
	var expired []*Session
	for userID, s := range r.byUser {
		if s.Expired(now, ttl) {
			expired = append(expired, s)
			delete(r.byUser, userID)
		}
	}
	total := len(r.byUser)
	r.mu.Unlock()

	for _, s := range expired {
		if err := s.Agent.Close(); err != nil {
			r.logger.Warn("agent close failed during sweep", "session", s.UUID, "error", err)
		}
		if err := r.ws.Remove(s.Path); err != nil {
			r.logger.Warn("workspace removal failed during sweep", "session", s.UUID, "error", err)
		}
		if r.metrics != nil {
			r.metrics.WorkspaceBytes.DeleteLabelValues(s.UUID)
		}
		r.logger.Info("session expired", "user", s.UserID, "session", s.UUID)
	}

	if r.metrics != nil {
		r.metrics.SweepsTotal.Inc()
		r.metrics.SweptSessions.Add(float64(len(expired)))
		r.metrics.ActiveSessions.Set(float64(total))
	}
	return len(expired)
}

// StartSweeper schedules periodic expiry sweeps at the configured interval.
func (r *Registry) StartSweeper() error {
	r.cron = cron.New()
	schedule := fmt.Sprintf("@every %s", r.cfg.SweepInterval)
	if _, err := r.cron.AddFunc(schedule, func() {
		n := r.SweepExpired(time.Now())
		if n > 0 {
			r.logger.Info("sweep completed", "expired", n)
		}
	}); err != nil {
		return fmt.Errorf("sessions: schedule sweeper: %w", err)
	}
	r.cron.Start()
	r.logger.Info("sweeper scheduled", "interval", r.cfg.SweepInterval.String())
	return nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Shutdown stops the sweeper and closes every agent client. Workspaces stay
// on disk so sessions can be reconstructed after a restart.
func (r *Registry) Shutdown() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, s := range r.byUser {
		if err := s.Agent.Close(); err != nil {
			r.logger.Warn("agent close failed during shutdown", "user", userID, "error", err)
		}
	}
	r.byUser = make(map[string]*Session)
}
