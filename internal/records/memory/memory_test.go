package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"finpilot/internal/core"
	"finpilot/internal/records"
)

func TestAssetLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.CreateAsset(ctx, core.Asset{UserID: "u1", Name: "Brokerage", Type: core.AssetInvestment, Balance: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == 0 || a.UpdatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", a)
	}
	if _, err := s.CreateAsset(ctx, core.Asset{UserID: "u2", Name: "Other", Type: core.AssetCash, Balance: 5}); err != nil {
		t.Fatalf("create other user: %v", err)
	}

	list, _ := s.ListAssets(ctx, "u1")
	if len(list) != 1 || list[0].Name != "Brokerage" {
		t.Fatalf("unexpected list %+v", list)
	}

	a.Balance = 250
	if _, err := s.UpdateAsset(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetAsset(ctx, "u1", a.ID)
	if err != nil || got.Balance != 250 {
		t.Fatalf("get after update = %+v, %v", got, err)
	}

	if _, err := s.GetAsset(ctx, "u2", a.ID); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("other user should not see asset, got %v", err)
	}
	if err := s.DeleteAsset(ctx, "u2", a.ID); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("other user should not delete asset, got %v", err)
	}
	if err := s.DeleteAsset(ctx, "u1", a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if list, _ := s.ListAssets(ctx, "u1"); len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}

func TestCreateAssetsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.CreateAssets(ctx, []core.Asset{
		{UserID: "u1", Name: "ok", Type: core.AssetCash, Balance: 1},
		{UserID: "u1", Name: "", Type: core.AssetCash, Balance: 1},
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if list, _ := s.ListAssets(ctx, "u1"); len(list) != 0 {
		t.Fatalf("expected nothing inserted, got %d", len(list))
	}
}

func TestActiveGoalsAndExpenses(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, g := range []core.Goal{
		{UserID: "u1", Name: "House", TargetAmount: 1, TargetDate: core.NewDate(2030, 1, 1), Active: true},
		{UserID: "u1", Name: "Boat", TargetAmount: 1, TargetDate: core.NewDate(2030, 1, 1), Active: false},
	} {
		if _, err := s.CreateGoal(ctx, g); err != nil {
			t.Fatalf("create goal: %v", err)
		}
	}
	active, _ := s.ListActiveGoals(ctx, "u1")
	if len(active) != 1 || active[0].Name != "House" {
		t.Fatalf("unexpected active goals %+v", active)
	}
	all, _ := s.ListGoals(ctx, "u1")
	if len(all) != 2 {
		t.Fatalf("expected 2 goals, got %d", len(all))
	}

	if e, _ := s.GetExpenses(ctx, "u1", "2025-01"); e != nil {
		t.Fatalf("expected nil record, got %+v", e)
	}
	if err := s.SaveExpenses(ctx, core.ExpenseRecord{UserID: "u1", Month: "2025-01", Housing: 10, Total: 10}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveExpenses(ctx, core.ExpenseRecord{UserID: "u1", Month: "2025-01", Housing: 20, Total: 20}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	e, _ := s.GetExpenses(ctx, "u1", "2025-01")
	if e == nil || e.Housing != 20 {
		t.Fatalf("expected replaced record, got %+v", e)
	}
}

func TestStatementStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateStatement(ctx, core.Statement{ID: "st1", UserID: "u1", Filename: "a.csv"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	st, err := s.GetStatement(ctx, "st1")
	if err != nil || st.Status != core.StatementPending {
		t.Fatalf("expected pending, got %+v %v", st, err)
	}
	if err := s.UpdateStatementStatus(ctx, "st1", core.StatementCompleted, 3, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	st, _ = s.GetStatement(ctx, "st1")
	if !st.Done() || st.AssetsExtracted != 3 {
		t.Fatalf("unexpected statement %+v", st)
	}
	if err := s.UpdateStatementStatus(ctx, "missing", core.StatementFailed, 0, "x"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimStatement(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	for _, id := range []string{"held", "free"} {
		if err := s.CreateStatement(ctx, core.Statement{ID: id, UserID: "u1"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	lease := now.Add(-core.StatementLease)

	if ok, err := s.ClaimStatement(ctx, "held", lease); err != nil || !ok {
		t.Fatalf("claim = %v, %v", ok, err)
	}
	if ok, _ := s.ClaimStatement(ctx, "held", lease); ok {
		t.Error("second claim within lease succeeded")
	}
	ids, _ := s.ListUnfinishedStatements(ctx, lease, 10)
	if len(ids) != 1 || ids[0] != "free" {
		t.Errorf("unfinished = %v, want [free]", ids)
	}

	later := now.Add(time.Second)
	ids, _ = s.ListUnfinishedStatements(ctx, later, 10)
	if len(ids) != 2 {
		t.Errorf("stale claim not listed: %v", ids)
	}
	if ok, _ := s.ClaimStatement(ctx, "held", later); !ok {
		t.Error("stale claim not taken over")
	}

	if _, err := s.ClaimStatement(ctx, "missing", lease); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
