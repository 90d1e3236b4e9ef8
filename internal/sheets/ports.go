package sheets

import (
	"context"
	"time"
)

// Snapshot is one row of a user's net-worth history.
type Snapshot struct {
	Date              time.Time `json:"date"`
	UserID            string    `json:"userId"`
	TotalAssets       float64   `json:"totalAssets"`
	TotalDebts        float64   `json:"totalDebts"`
	NetWorth          float64   `json:"netWorth"`
	Savings           float64   `json:"savings"`
	RetirementSuccess float64   `json:"retirementSuccess"`
}

// Header is the column layout of the snapshot sheet.
var Header = []any{"Date", "User", "Total Assets", "Total Debts", "Net Worth", "Savings", "Retirement Success %"}

// Row renders s in Header order.
func (s Snapshot) Row() []any {
	return []any{
		s.Date.Format("2006-01-02"),
		s.UserID,
		s.TotalAssets,
		s.TotalDebts,
		s.NetWorth,
		s.Savings,
		s.RetirementSuccess,
	}
}

// Ports for outbound adapters.
type (
	SnapshotWriter interface {
		AppendSnapshot(ctx context.Context, s Snapshot) (rowRef string, err error)
	}

	// SnapshotLister reads back the snapshots of one user, oldest first.
	SnapshotLister interface {
		ListSnapshots(ctx context.Context, userID string) ([]Snapshot, error)
	}

	SnapshotStore interface {
		SnapshotWriter
		SnapshotLister
	}
)
