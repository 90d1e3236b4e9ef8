package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finpilot/internal/advisor"
	"finpilot/internal/log"
	"finpilot/internal/sheets"
)

// ErrSnapshotsDisabled is returned when no snapshot store is configured.
var ErrSnapshotsDisabled = errors.New("snapshot export not configured")

// ContextBuilder assembles a user's financial context.
type ContextBuilder interface {
	Build(ctx context.Context, userID string) (advisor.FinancialContext, error)
}

// SnapshotService records net-worth snapshots in an external sheet.
type SnapshotService struct {
	builder ContextBuilder
	store   sheets.SnapshotStore
	now     func() time.Time
	logger  *log.Logger
}

// NewSnapshotService returns a service; store may be nil.
func NewSnapshotService(builder ContextBuilder, store sheets.SnapshotStore) *SnapshotService {
	return &SnapshotService{
		builder: builder,
		store:   store,
		now:     time.Now,
		logger:  log.Default(log.ComponentSheets),
	}
}

// Enabled reports whether snapshots can be exported.
func (s *SnapshotService) Enabled() bool {
	return s.store != nil
}

// Export builds the context for userID and appends it as one snapshot row.
func (s *SnapshotService) Export(ctx context.Context, userID string) (sheets.Snapshot, string, error) {
	if s.store == nil {
		return sheets.Snapshot{}, "", ErrSnapshotsDisabled
	}

	fc, err := s.builder.Build(ctx, userID)
	if err != nil {
		return sheets.Snapshot{}, "", err
	}

	snap := sheets.Snapshot{
		Date:              s.now().UTC(),
		UserID:            userID,
		TotalAssets:       fc.Summary.TotalAssets,
		TotalDebts:        fc.Summary.TotalDebts,
		NetWorth:          fc.Summary.NetWorth,
		Savings:           fc.Summary.CurrentSavings,
		RetirementSuccess: fc.Retirement.SuccessPercent,
	}

	ref, err := s.store.AppendSnapshot(ctx, snap)
	if err != nil {
		return sheets.Snapshot{}, "", fmt.Errorf("append snapshot: %w", err)
	}

	s.logger.InfoContext(ctx, "Snapshot exported",
		log.FieldUserID, userID,
		log.FieldSheetsRef, ref)
	return snap, ref, nil
}

// List returns the user's snapshots, oldest first.
func (s *SnapshotService) List(ctx context.Context, userID string) ([]sheets.Snapshot, error) {
	if s.store == nil {
		return nil, ErrSnapshotsDisabled
	}
	return s.store.ListSnapshots(ctx, userID)
}
