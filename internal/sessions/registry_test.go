package sessions

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kaodean/monco/internal/agent"
	"github.com/kaodean/monco/internal/config"
	"github.com/kaodean/monco/internal/llm"
	"github.com/kaodean/monco/internal/memory"
	"github.com/kaodean/monco/internal/workspace"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	t.Setenv("DISCORD_BOT_TOKEN", "test-token")
	t.Setenv("WORKPLACE_ROOT", t.TempDir())
	t.Setenv("SESSION_EXPIRY_HOURS", "2")
	t.Setenv("MONCO_CONFIG", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ws := workspace.NewManager(cfg.WorkspaceRoot, logger)
	rt := &agent.Runtime{
		LLM:      &llm.MockClient{},
		Model:    "claude-sonnet-4-20250514",
		MaxTurns: 10,
		History:  memory.NewHistory(0),
		Logger:   logger,
	}
	return NewRegistry(ws, rt, cfg, nil, nil, logger)
}

func TestGetOrCreateReusesSession(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	s1, err := r.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !s1.Agent.Connected() {
		t.Error("new session's agent is not connected")
	}
	if _, err := os.Stat(s1.Path); err != nil {
		t.Fatalf("workspace missing: %v", err)
	}

	s2, err := r.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if s1 != s2 {
		t.Error("second GetOrCreate returned a different session")
	}

	other, err := r.GetOrCreate(ctx, "user-2")
	if err != nil {
		t.Fatalf("GetOrCreate for second user: %v", err)
	}
	if other.UUID == s1.UUID {
		t.Error("different users share a session UUID")
	}
	if r.Count() != 2 {
		t.Errorf("Count = %d, want 2", r.Count())
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	const n = 16
	uuids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.GetOrCreate(ctx, "racer")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			uuids[i] = s.UUID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if uuids[i] != uuids[0] {
			t.Fatalf("concurrent creates produced different sessions: %s vs %s", uuids[0], uuids[i])
		}
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestResetPreservesOldWorkspace(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	s1, err := r.GetOrCreate(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	oldPath := s1.Path

	s2, oldUUID, err := r.Reset(ctx, "user-1")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if oldUUID != s1.UUID {
		t.Errorf("Reset old UUID = %s, want %s", oldUUID, s1.UUID)
	}
	if s2.UUID == s1.UUID {
		t.Error("Reset reused the old UUID")
	}
	if s1.Agent.Connected() {
		t.Error("old agent still connected after reset")
	}

	// The old workspace stays on disk; only the registry entry goes.
	if _, err := os.Stat(oldPath); err != nil {
		t.Errorf("old workspace removed by reset: %v", err)
	}
	if _, err := os.Stat(s2.Path); err != nil {
		t.Errorf("new workspace missing: %v", err)
	}
}

func TestResetWithoutSession(t *testing.T) {
	r := testRegistry(t)

	s, oldUUID, err := r.Reset(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if oldUUID != "" {
		t.Errorf("old UUID = %q, want empty", oldUUID)
	}
	if s == nil {
		t.Fatal("Reset returned no session")
	}
}

func TestExpiredBoundary(t *testing.T) {
	s := &Session{lastUsed: time.Now()}
	ttl := 2 * time.Hour
	base := s.LastUsed()

	if s.Expired(base.Add(ttl), ttl) {
		t.Error("idle time equal to ttl counts as expired, want not expired")
	}
	if !s.Expired(base.Add(ttl+time.Nanosecond), ttl) {
		t.Error("idle time beyond ttl not expired")
	}
}

func TestSweepExpired(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	stale, err := r.GetOrCreate(ctx, "stale")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	fresh, err := r.GetOrCreate(ctx, "fresh")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	ttl := r.cfg.SessionExpiry()

	// Exactly at the boundary nothing expires and the registry is untouched.
	if n := r.SweepExpired(stale.LastUsed().Add(ttl)); n != 0 {
		t.Fatalf("boundary sweep removed %d sessions, want 0", n)
	}
	if r.Count() != 2 {
		t.Fatalf("Count after no-op sweep = %d, want 2", r.Count())
	}

	// Push only the fresh session forward, then sweep past the stale one.
	time.Sleep(10 * time.Millisecond)
	fresh.Touch()

	n := r.SweepExpired(stale.LastUsed().Add(ttl + time.Millisecond))
	if n != 1 {
		t.Fatalf("sweep removed %d sessions, want 1", n)
	}
	if _, ok := r.Lookup("stale"); ok {
		t.Error("stale session still registered after sweep")
	}
	if _, ok := r.Lookup("fresh"); !ok {
		t.Error("fresh session was swept")
	}
	if _, err := os.Stat(stale.Path); !os.IsNotExist(err) {
		t.Error("expired workspace not removed from disk")
	}
	if _, err := os.Stat(fresh.Path); err != nil {
		t.Errorf("fresh workspace missing: %v", err)
	}
}

func TestRecordTaskAccumulates(t *testing.T) {
	s := &Session{lastUsed: time.Now()}
	s.RecordTask(0.01)
	s.RecordTask(0.02)

	tasks, cost := s.Stats()
	if tasks != 2 {
		t.Errorf("tasks = %d, want 2", tasks)
	}
	if cost < 0.0299 || cost > 0.0301 {
		t.Errorf("cost = %f, want 0.03", cost)
	}
}
