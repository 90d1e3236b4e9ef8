package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"finpilot/internal/core"
	"finpilot/internal/records"
)

// Store keeps every record in process memory. It backs the "memory" data
// backend and doubles as a fake in tests.
type Store struct {
	mu     sync.Mutex
	nextID int64
	now    func() time.Time

	profiles   map[string]core.Profile
	assets     map[int64]core.Asset
	debts      map[int64]core.Debt
	goals      map[int64]core.Goal
	expenses   map[string]core.ExpenseRecord // userID + "|" + month
	insurance  map[int64]core.InsurancePolicy
	statements map[string]core.Statement
}

var _ records.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:        time.Now,
		profiles:   map[string]core.Profile{},
		assets:     map[int64]core.Asset{},
		debts:      map[int64]core.Debt{},
		goals:      map[int64]core.Goal{},
		expenses:   map[string]core.ExpenseRecord{},
		insurance:  map[int64]core.InsurancePolicy{},
		statements: map[string]core.Statement{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) GetProfile(_ context.Context, userID string) (*core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	return nil
}

func (s *Store) ListAssets(_ context.Context, userID string) ([]core.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.assets, func(a core.Asset) bool { return a.UserID == userID }, func(a core.Asset) int64 { return a.ID }), nil
}

func (s *Store) GetAsset(_ context.Context, userID string, id int64) (core.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok || a.UserID != userID {
		return core.Asset{}, fmt.Errorf("asset %d: %w", id, records.ErrNotFound)
	}
	return a, nil
}

func (s *Store) CreateAsset(_ context.Context, a core.Asset) (core.Asset, error) {
	if err := a.Validate(); err != nil {
		return core.Asset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	a.UpdatedAt = s.now()
	s.assets[a.ID] = a
	return a, nil
}

func (s *Store) CreateAssets(_ context.Context, assets []core.Asset) error {
	for _, a := range assets {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range assets {
		a.ID = s.id()
		a.UpdatedAt = s.now()
		s.assets[a.ID] = a
	}
	return nil
}

func (s *Store) UpdateAsset(_ context.Context, a core.Asset) (core.Asset, error) {
	if err := a.Validate(); err != nil {
		return core.Asset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.assets[a.ID]; !ok || cur.UserID != a.UserID {
		return core.Asset{}, fmt.Errorf("asset %d: %w", a.ID, records.ErrNotFound)
	}
	a.UpdatedAt = s.now()
	s.assets[a.ID] = a
	return a, nil
}

func (s *Store) DeleteAsset(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.assets[id]; !ok || cur.UserID != userID {
		return fmt.Errorf("asset %d: %w", id, records.ErrNotFound)
	}
	delete(s.assets, id)
	return nil
}

func (s *Store) ListDebts(_ context.Context, userID string) ([]core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.debts, func(d core.Debt) bool { return d.UserID == userID }, func(d core.Debt) int64 { return d.ID }), nil
}

func (s *Store) GetDebt(_ context.Context, userID string, id int64) (core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debts[id]
	if !ok || d.UserID != userID {
		return core.Debt{}, fmt.Errorf("debt %d: %w", id, records.ErrNotFound)
	}
	return d, nil
}

func (s *Store) CreateDebt(_ context.Context, d core.Debt) (core.Debt, error) {
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.id()
	d.UpdatedAt = s.now()
	s.debts[d.ID] = d
	return d, nil
}

func (s *Store) UpdateDebt(_ context.Context, d core.Debt) (core.Debt, error) {
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.debts[d.ID]; !ok || cur.UserID != d.UserID {
		return core.Debt{}, fmt.Errorf("debt %d: %w", d.ID, records.ErrNotFound)
	}
	d.UpdatedAt = s.now()
	s.debts[d.ID] = d
	return d, nil
}

func (s *Store) DeleteDebt(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.debts[id]; !ok || cur.UserID != userID {
		return fmt.Errorf("debt %d: %w", id, records.ErrNotFound)
	}
	delete(s.debts, id)
	return nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.goals, func(g core.Goal) bool { return g.UserID == userID }, func(g core.Goal) int64 { return g.ID }), nil
}

func (s *Store) ListActiveGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.goals, func(g core.Goal) bool { return g.UserID == userID && g.Active }, func(g core.Goal) int64 { return g.ID }), nil
}

func (s *Store) GetGoal(_ context.Context, userID string, id int64) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return core.Goal{}, fmt.Errorf("goal %d: %w", id, records.ErrNotFound)
	}
	return g, nil
}

func (s *Store) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.id()
	g.UpdatedAt = s.now()
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) UpdateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.goals[g.ID]; !ok || cur.UserID != g.UserID {
		return core.Goal{}, fmt.Errorf("goal %d: %w", g.ID, records.ErrNotFound)
	}
	g.UpdatedAt = s.now()
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) DeleteGoal(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.goals[id]; !ok || cur.UserID != userID {
		return fmt.Errorf("goal %d: %w", id, records.ErrNotFound)
	}
	delete(s.goals, id)
	return nil
}

func (s *Store) GetExpenses(_ context.Context, userID, month string) (*core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[userID+"|"+month]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) SaveExpenses(_ context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses[e.UserID+"|"+e.Month] = e
	return nil
}

func (s *Store) ListInsurance(_ context.Context, userID string) ([]core.InsurancePolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.insurance, func(p core.InsurancePolicy) bool { return p.UserID == userID }, func(p core.InsurancePolicy) int64 { return p.ID }), nil
}

func (s *Store) GetInsurance(_ context.Context, userID string, id int64) (core.InsurancePolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.insurance[id]
	if !ok || p.UserID != userID {
		return core.InsurancePolicy{}, fmt.Errorf("insurance %d: %w", id, records.ErrNotFound)
	}
	return p, nil
}

func (s *Store) CreateInsurance(_ context.Context, p core.InsurancePolicy) (core.InsurancePolicy, error) {
	if err := p.Validate(); err != nil {
		return core.InsurancePolicy{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	p.UpdatedAt = s.now()
	s.insurance[p.ID] = p
	return p, nil
}

func (s *Store) UpdateInsurance(_ context.Context, p core.InsurancePolicy) (core.InsurancePolicy, error) {
	if err := p.Validate(); err != nil {
		return core.InsurancePolicy{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.insurance[p.ID]; !ok || cur.UserID != p.UserID {
		return core.InsurancePolicy{}, fmt.Errorf("insurance %d: %w", p.ID, records.ErrNotFound)
	}
	p.UpdatedAt = s.now()
	s.insurance[p.ID] = p
	return p, nil
}

func (s *Store) DeleteInsurance(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.insurance[id]; !ok || cur.UserID != userID {
		return fmt.Errorf("insurance %d: %w", id, records.ErrNotFound)
	}
	delete(s.insurance, id)
	return nil
}

func (s *Store) CreateStatement(_ context.Context, st core.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.now()
	}
	st.UpdatedAt = st.CreatedAt
	if st.Status == "" {
		st.Status = core.StatementPending
	}
	s.statements[st.ID] = st
	return nil
}

func (s *Store) GetStatement(_ context.Context, id string) (core.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statements[id]
	if !ok {
		return core.Statement{}, fmt.Errorf("statement %s: %w", id, records.ErrNotFound)
	}
	return st, nil
}

func (s *Store) UpdateStatementStatus(_ context.Context, id string, status core.StatementStatus, assets int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statements[id]
	if !ok {
		return fmt.Errorf("statement %s: %w", id, records.ErrNotFound)
	}
	st.Status = status
	st.AssetsExtracted = assets
	st.Error = errMsg
	st.UpdatedAt = s.now()
	s.statements[id] = st
	return nil
}

// claimable reports whether st may be (re)claimed for processing.
func claimable(st core.Statement, staleBefore time.Time) bool {
	switch st.Status {
	case core.StatementPending:
		return true
	case core.StatementProcessing:
		return st.UpdatedAt.Before(staleBefore)
	}
	return false
}

func (s *Store) ClaimStatement(_ context.Context, id string, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statements[id]
	if !ok {
		return false, fmt.Errorf("statement %s: %w", id, records.ErrNotFound)
	}
	if !claimable(st, staleBefore) {
		return false, nil
	}
	st.Status = core.StatementProcessing
	st.UpdatedAt = s.now()
	s.statements[id] = st
	return true, nil
}

func (s *Store) ListUnfinishedStatements(_ context.Context, staleBefore time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []core.Statement
	for _, st := range s.statements {
		if claimable(st, staleBefore) {
			pending = append(pending, st)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	ids := make([]string, 0, len(pending))
	for _, st := range pending {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, st.ID)
	}
	return ids, nil
}

// collect returns the values of m matching keep, ordered by id.
func collect[T any](m map[int64]T, keep func(T) bool, id func(T) int64) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
