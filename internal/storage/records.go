package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finpilot/internal/core"
	"finpilot/internal/records"
)

const dateLayout = "2006-01-02"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const assetColumns = `id, user_id, name, type, asset_class, balance, growth_rate, interest_rate, annual_contribution, updated_at`

func scanAsset(row rowScanner) (core.Asset, error) {
	var (
		a                      core.Asset
		growth, interest, cont sql.NullFloat64
		updated                int64
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.AssetClass, &a.Balance,
		&growth, &interest, &cont, &updated); err != nil {
		return core.Asset{}, err
	}
	a.GrowthRate = floatPtr(growth)
	a.InterestRate = floatPtr(interest)
	a.AnnualContribution = floatPtr(cont)
	a.UpdatedAt = time.Unix(updated, 0)
	return a, nil
}

func (r *SQLiteRepository) ListAssets(ctx context.Context, userID string) ([]core.Asset, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	out := []core.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetAsset(ctx context.Context, userID string, id int64) (core.Asset, error) {
	a, err := scanAsset(r.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Asset{}, fmt.Errorf("asset %d: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return core.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) insertAsset(ctx context.Context, db execer, a core.Asset) (core.Asset, error) {
	a.UpdatedAt = time.Unix(r.now().Unix(), 0)
	res, err := db.ExecContext(ctx,
		`INSERT INTO assets (user_id, name, type, asset_class, balance, growth_rate, interest_rate, annual_contribution, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Name, a.Type, a.AssetClass, a.Balance,
		nullFloat(a.GrowthRate), nullFloat(a.InterestRate), nullFloat(a.AnnualContribution), a.UpdatedAt.Unix())
	if err != nil {
		return core.Asset{}, err
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return core.Asset{}, err
	}
	return a, nil
}

func (r *SQLiteRepository) CreateAsset(ctx context.Context, a core.Asset) (core.Asset, error) {
	if err := a.Validate(); err != nil {
		return core.Asset{}, err
	}
	a, err := r.insertAsset(ctx, r.db, a)
	if err != nil {
		return core.Asset{}, fmt.Errorf("create asset: %w", err)
	}
	slog.InfoContext(ctx, "Asset created", "asset_id", a.ID, "user_id", a.UserID, "type", a.Type)
	return a, nil
}

func (r *SQLiteRepository) CreateAssets(ctx context.Context, assets []core.Asset) error {
	for _, a := range assets {
		if err := a.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range assets {
		if _, err := r.insertAsset(ctx, tx, a); err != nil {
			return fmt.Errorf("create asset %q: %w", a.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assets: %w", err)
	}
	slog.InfoContext(ctx, "Assets created", "count", len(assets))
	return nil
}

func (r *SQLiteRepository) UpdateAsset(ctx context.Context, a core.Asset) (core.Asset, error) {
	if err := a.Validate(); err != nil {
		return core.Asset{}, err
	}
	a.UpdatedAt = time.Unix(r.now().Unix(), 0)
	res, err := r.db.ExecContext(ctx,
		`UPDATE assets SET name = ?, type = ?, asset_class = ?, balance = ?, growth_rate = ?,
		   interest_rate = ?, annual_contribution = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		a.Name, a.Type, a.AssetClass, a.Balance, nullFloat(a.GrowthRate), nullFloat(a.InterestRate),
		nullFloat(a.AnnualContribution), a.UpdatedAt.Unix(), a.ID, a.UserID)
	if err != nil {
		return core.Asset{}, fmt.Errorf("update asset: %w", err)
	}
	if err := expectOne(res, "asset", a.ID); err != nil {
		return core.Asset{}, err
	}
	return a, nil
}

func (r *SQLiteRepository) DeleteAsset(ctx context.Context, userID string, id int64) error {
	return r.deleteOwned(ctx, "assets", "asset", userID, id)
}

// deleteOwned removes a row from table when it belongs to userID.
func (r *SQLiteRepository) deleteOwned(ctx context.Context, table, kind, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if err := expectOne(res, kind, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Record deleted", "kind", kind, "id", id, "user_id", userID)
	return nil
}

const debtColumns = `id, user_id, name, type, balance, interest_rate, minimum_payment, updated_at`

func scanDebt(row rowScanner) (core.Debt, error) {
	var (
		d       core.Debt
		updated int64
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Type, &d.Balance, &d.InterestRate,
		&d.MinimumPayment, &updated); err != nil {
		return core.Debt{}, err
	}
	d.UpdatedAt = time.Unix(updated, 0)
	return d, nil
}

func (r *SQLiteRepository) ListDebts(ctx context.Context, userID string) ([]core.Debt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	out := []core.Debt{}
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetDebt(ctx context.Context, userID string, id int64) (core.Debt, error) {
	d, err := scanDebt(r.db.QueryRowContext(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Debt{}, fmt.Errorf("debt %d: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return core.Debt{}, fmt.Errorf("get debt: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) CreateDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	d.UpdatedAt = time.Unix(r.now().Unix(), 0)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO debts (user_id, name, type, balance, interest_rate, minimum_payment, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.UserID, d.Name, d.Type, d.Balance, d.InterestRate, d.MinimumPayment, d.UpdatedAt.Unix())
	if err != nil {
		return core.Debt{}, fmt.Errorf("create debt: %w", err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return core.Debt{}, fmt.Errorf("create debt: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) UpdateDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	d.UpdatedAt = time.Unix(r.now().Unix(), 0)
	res, err := r.db.ExecContext(ctx,
		`UPDATE debts SET name = ?, type = ?, balance = ?, interest_rate = ?, minimum_payment = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		d.Name, d.Type, d.Balance, d.InterestRate, d.MinimumPayment, d.UpdatedAt.Unix(), d.ID, d.UserID)
	if err != nil {
		return core.Debt{}, fmt.Errorf("update debt: %w", err)
	}
	if err := expectOne(res, "debt", d.ID); err != nil {
		return core.Debt{}, err
	}
	return d, nil
}

func (r *SQLiteRepository) DeleteDebt(ctx context.Context, userID string, id int64) error {
	return r.deleteOwned(ctx, "debts", "debt", userID, id)
}

const goalColumns = `id, user_id, name, target_amount, target_date, priority, active, updated_at`

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		g       core.Goal
		date    string
		updated int64
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &date, &g.Priority,
		&g.Active, &updated); err != nil {
		return core.Goal{}, err
	}
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return core.Goal{}, fmt.Errorf("parse target date %q: %w", date, err)
	}
	g.TargetDate = core.Date{Time: t}
	g.UpdatedAt = time.Unix(updated, 0)
	return g, nil
}

func (r *SQLiteRepository) queryGoals(ctx context.Context, query string, args ...any) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	out := []core.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	return r.queryGoals(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY id`, userID)
}

func (r *SQLiteRepository) ListActiveGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	return r.queryGoals(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ? AND active = 1 ORDER BY id`, userID)
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID string, id int64) (core.Goal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("goal %d: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.UpdatedAt = time.Unix(r.now().Unix(), 0)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (user_id, name, target_amount, target_date, priority, active, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Name, g.TargetAmount, g.TargetDate.Format(dateLayout), g.Priority, g.Active, g.UpdatedAt.Unix())
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.UpdatedAt = time.Unix(r.now().Unix(), 0)
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET name = ?, target_amount = ?, target_date = ?, priority = ?, active = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		g.Name, g.TargetAmount, g.TargetDate.Format(dateLayout), g.Priority, g.Active, g.UpdatedAt.Unix(), g.ID, g.UserID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	if err := expectOne(res, "goal", g.ID); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID string, id int64) error {
	return r.deleteOwned(ctx, "goals", "goal", userID, id)
}

func (r *SQLiteRepository) GetExpenses(ctx context.Context, userID, month string) (*core.ExpenseRecord, error) {
	e := core.ExpenseRecord{UserID: userID, Month: month}
	err := r.db.QueryRowContext(ctx,
		`SELECT housing, utilities, groceries, transport, healthcare, dining, entertainment, miscellaneous, total
		 FROM expenses WHERE user_id = ? AND month = ?`, userID, month).
		Scan(&e.Housing, &e.Utilities, &e.Groceries, &e.Transport, &e.Healthcare,
			&e.Dining, &e.Entertainment, &e.Miscellaneous, &e.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expenses: %w", err)
	}
	return &e, nil
}

func (r *SQLiteRepository) SaveExpenses(ctx context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, month, housing, utilities, groceries, transport, healthcare, dining, entertainment, miscellaneous, total)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, month) DO UPDATE SET
		   housing = excluded.housing,
		   utilities = excluded.utilities,
		   groceries = excluded.groceries,
		   transport = excluded.transport,
		   healthcare = excluded.healthcare,
		   dining = excluded.dining,
		   entertainment = excluded.entertainment,
		   miscellaneous = excluded.miscellaneous,
		   total = excluded.total`,
		e.UserID, e.Month, e.Housing, e.Utilities, e.Groceries, e.Transport, e.Healthcare,
		e.Dining, e.Entertainment, e.Miscellaneous, e.Total)
	if err != nil {
		return fmt.Errorf("save expenses: %w", err)
	}
	slog.InfoContext(ctx, "Expenses saved", "user_id", e.UserID, "month", e.Month)
	return nil
}

const insuranceColumns = `id, user_id, type, provider, coverage, annual_premium, updated_at`

func scanInsurance(row rowScanner) (core.InsurancePolicy, error) {
	var (
		p       core.InsurancePolicy
		updated int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Type, &p.Provider, &p.Coverage, &p.AnnualPremium, &updated); err != nil {
		return core.InsurancePolicy{}, err
	}
	p.UpdatedAt = time.Unix(updated, 0)
	return p, nil
}

func (r *SQLiteRepository) ListInsurance(ctx context.Context, userID string) ([]core.InsurancePolicy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+insuranceColumns+` FROM insurance_policies WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list insurance: %w", err)
	}
	defer rows.Close()

	out := []core.InsurancePolicy{}
	for rows.Next() {
		p, err := scanInsurance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan insurance: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetInsurance(ctx context.Context, userID string, id int64) (core.InsurancePolicy, error) {
	p, err := scanInsurance(r.db.QueryRowContext(ctx,
		`SELECT `+insuranceColumns+` FROM insurance_policies WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.InsurancePolicy{}, fmt.Errorf("insurance %d: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return core.InsurancePolicy{}, fmt.Errorf("get insurance: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) CreateInsurance(ctx context.Context, p core.InsurancePolicy) (core.InsurancePolicy, error) {
	if err := p.Validate(); err != nil {
		return core.InsurancePolicy{}, err
	}
	p.UpdatedAt = time.Unix(r.now().Unix(), 0)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO insurance_policies (user_id, type, provider, coverage, annual_premium, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Type, p.Provider, p.Coverage, p.AnnualPremium, p.UpdatedAt.Unix())
	if err != nil {
		return core.InsurancePolicy{}, fmt.Errorf("create insurance: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return core.InsurancePolicy{}, fmt.Errorf("create insurance: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) UpdateInsurance(ctx context.Context, p core.InsurancePolicy) (core.InsurancePolicy, error) {
	if err := p.Validate(); err != nil {
		return core.InsurancePolicy{}, err
	}
	p.UpdatedAt = time.Unix(r.now().Unix(), 0)
	res, err := r.db.ExecContext(ctx,
		`UPDATE insurance_policies SET type = ?, provider = ?, coverage = ?, annual_premium = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		p.Type, p.Provider, p.Coverage, p.AnnualPremium, p.UpdatedAt.Unix(), p.ID, p.UserID)
	if err != nil {
		return core.InsurancePolicy{}, fmt.Errorf("update insurance: %w", err)
	}
	if err := expectOne(res, "insurance", p.ID); err != nil {
		return core.InsurancePolicy{}, err
	}
	return p, nil
}

func (r *SQLiteRepository) DeleteInsurance(ctx context.Context, userID string, id int64) error {
	return r.deleteOwned(ctx, "insurance_policies", "insurance", userID, id)
}
