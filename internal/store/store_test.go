package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "monco.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordTaskAccumulates(t *testing.T) {
	s := testStore(t)

	s.RecordTask("user-1", "uuid-a", 0.01)
	s.RecordTask("user-1", "uuid-a", 0.02)
	s.RecordTask("user-1", "uuid-b", 0.04)
	s.RecordTask("user-2", "uuid-c", 0.10)

	u, err := s.UserUsage("user-1")
	if err != nil {
		t.Fatalf("UserUsage: %v", err)
	}
	if u.TotalTasks != 3 {
		t.Errorf("TotalTasks = %d, want 3", u.TotalTasks)
	}
	if u.TotalCostUSD < 0.069 || u.TotalCostUSD > 0.071 {
		t.Errorf("TotalCostUSD = %f, want 0.07", u.TotalCostUSD)
	}
	if u.LastSession != "uuid-b" {
		t.Errorf("LastSession = %s, want uuid-b", u.LastSession)
	}

	other, err := s.UserUsage("user-2")
	if err != nil {
		t.Fatal(err)
	}
	if other.TotalTasks != 1 {
		t.Errorf("user-2 TotalTasks = %d, want 1", other.TotalTasks)
	}
}

func TestUserUsageUnknownUser(t *testing.T) {
	s := testStore(t)

	u, err := s.UserUsage("nobody")
	if err != nil {
		t.Fatalf("UserUsage: %v", err)
	}
	if u.TotalTasks != 0 || u.TotalCostUSD != 0 {
		t.Errorf("unknown user has usage: %+v", u)
	}
}
