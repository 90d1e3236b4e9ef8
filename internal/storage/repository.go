package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finpilot/internal/core"
	"finpilot/internal/records"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements records.Store on a local SQLite file.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ records.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite allows one writer; serialise through a single connection.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (*core.Profile, error) {
	p := core.Profile{UserID: userID}
	var (
		age, retireAt sql.NullInt64
		growth, inc   sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT name, age, retirement_age, expected_growth_rate, annual_income, risk_tolerance
		 FROM profiles WHERE user_id = ?`, userID).
		Scan(&p.Name, &age, &retireAt, &growth, &inc, &p.RiskTolerance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p.Age = intPtr(age)
	p.RetirementAge = intPtr(retireAt)
	p.ExpectedGrowthRate = floatPtr(growth)
	p.AnnualIncome = floatPtr(inc)
	return &p, nil
}

func (r *SQLiteRepository) SaveProfile(ctx context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, name, age, retirement_age, expected_growth_rate, annual_income, risk_tolerance)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   name = excluded.name,
		   age = excluded.age,
		   retirement_age = excluded.retirement_age,
		   expected_growth_rate = excluded.expected_growth_rate,
		   annual_income = excluded.annual_income,
		   risk_tolerance = excluded.risk_tolerance`,
		p.UserID, p.Name, nullInt(p.Age), nullInt(p.RetirementAge),
		nullFloat(p.ExpectedGrowthRate), nullFloat(p.AnnualIncome), p.RiskTolerance)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	slog.InfoContext(ctx, "Profile saved", "user_id", p.UserID)
	return nil
}

func (r *SQLiteRepository) CreateStatement(ctx context.Context, s core.Statement) error {
	now := r.now().Unix()
	if !s.CreatedAt.IsZero() {
		now = s.CreatedAt.Unix()
	}
	if s.Status == "" {
		s.Status = core.StatementPending
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO statements (id, user_id, filename, content, status, error, assets_extracted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', 0, ?, ?)`,
		s.ID, s.UserID, s.Filename, s.Content, string(s.Status), now, now)
	if err != nil {
		return fmt.Errorf("create statement: %w", err)
	}
	slog.InfoContext(ctx, "Statement stored", "statement_id", s.ID, "user_id", s.UserID, "bytes", len(s.Content))
	return nil
}

func (r *SQLiteRepository) GetStatement(ctx context.Context, id string) (core.Statement, error) {
	s := core.Statement{ID: id}
	var (
		status           string
		created, updated int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, filename, content, status, error, assets_extracted, created_at, updated_at
		 FROM statements WHERE id = ?`, id).
		Scan(&s.UserID, &s.Filename, &s.Content, &status, &s.Error, &s.AssetsExtracted, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Statement{}, fmt.Errorf("statement %s: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return core.Statement{}, fmt.Errorf("get statement: %w", err)
	}
	s.Status = core.StatementStatus(status)
	s.CreatedAt = time.Unix(created, 0)
	s.UpdatedAt = time.Unix(updated, 0)
	return s, nil
}

func (r *SQLiteRepository) UpdateStatementStatus(ctx context.Context, id string, status core.StatementStatus, assets int, errMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE statements SET status = ?, assets_extracted = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), assets, errMsg, r.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("update statement status: %w", err)
	}
	if err := expectOne(res, "statement", id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Statement status updated", "statement_id", id, "status", status, "assets", assets)
	return nil
}

// ClaimStatement is a compare-and-set on status, so only one process wins a
// given statement.
func (r *SQLiteRepository) ClaimStatement(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE statements SET status = ?, updated_at = ?
		 WHERE id = ? AND (status = ? OR (status = ? AND updated_at < ?))`,
		string(core.StatementProcessing), r.now().Unix(), id,
		string(core.StatementPending), string(core.StatementProcessing), staleBefore.Unix())
	if err != nil {
		return false, fmt.Errorf("claim statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim statement: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM statements WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("statement %s: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("claim statement: %w", err)
	}
	return false, nil
}

// ListUnfinishedStatements returns ids of pending statements and of
// processing ones abandoned before staleBefore, oldest first.
func (r *SQLiteRepository) ListUnfinishedStatements(ctx context.Context, staleBefore time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM statements
		 WHERE status = ? OR (status = ? AND updated_at < ?)
		 ORDER BY created_at, id LIMIT ?`,
		string(core.StatementPending), string(core.StatementProcessing), staleBefore.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("list unfinished statements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan statement id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func expectOne(res sql.Result, kind string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", kind, id, records.ErrNotFound)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
