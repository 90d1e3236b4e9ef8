package memory

import (
	"context"
	"fmt"
	"sync"

	"finpilot/internal/sheets"
)

// Store keeps snapshots in memory. Used when no spreadsheet is configured.
type Store struct {
	mu   sync.Mutex
	rows []sheets.Snapshot
}

var _ sheets.SnapshotStore = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendSnapshot stores the snapshot and returns a synthetic row reference.
func (s *Store) AppendSnapshot(_ context.Context, snap sheets.Snapshot) (string, error) {
	if snap.UserID == "" {
		return "", fmt.Errorf("snapshot has no user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, snap)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) ListSnapshots(_ context.Context, userID string) ([]sheets.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []sheets.Snapshot{}
	for _, r := range s.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}
