package records

import (
	"context"
	"errors"
	"time"

	"finpilot/internal/core"
)

// ErrNotFound is returned when a record does not exist for the given user.
var ErrNotFound = errors.New("record not found")

// Ports for the persistence layer. Every call is scoped to a user id.
type (
	// Reader is the read side consumed by the context builder. None of its
	// methods have side effects.
	Reader interface {
		// GetProfile returns the profile, or nil when the user has none.
		GetProfile(ctx context.Context, userID string) (*core.Profile, error)
		ListAssets(ctx context.Context, userID string) ([]core.Asset, error)
		ListDebts(ctx context.Context, userID string) ([]core.Debt, error)
		// ListActiveGoals returns goals with Active set.
		ListActiveGoals(ctx context.Context, userID string) ([]core.Goal, error)
		// GetExpenses returns the record for month (YYYY-MM), or nil.
		GetExpenses(ctx context.Context, userID, month string) (*core.ExpenseRecord, error)
		ListInsurance(ctx context.Context, userID string) ([]core.InsurancePolicy, error)
	}

	ProfileWriter interface {
		SaveProfile(ctx context.Context, p core.Profile) error
	}

	AssetStore interface {
		GetAsset(ctx context.Context, userID string, id int64) (core.Asset, error)
		CreateAsset(ctx context.Context, a core.Asset) (core.Asset, error)
		// CreateAssets inserts all assets or none.
		CreateAssets(ctx context.Context, assets []core.Asset) error
		UpdateAsset(ctx context.Context, a core.Asset) (core.Asset, error)
		DeleteAsset(ctx context.Context, userID string, id int64) error
	}

	DebtStore interface {
		GetDebt(ctx context.Context, userID string, id int64) (core.Debt, error)
		CreateDebt(ctx context.Context, d core.Debt) (core.Debt, error)
		UpdateDebt(ctx context.Context, d core.Debt) (core.Debt, error)
		DeleteDebt(ctx context.Context, userID string, id int64) error
	}

	GoalStore interface {
		ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
		GetGoal(ctx context.Context, userID string, id int64) (core.Goal, error)
		CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		DeleteGoal(ctx context.Context, userID string, id int64) error
	}

	ExpenseWriter interface {
		// SaveExpenses inserts or replaces the record for its month.
		SaveExpenses(ctx context.Context, e core.ExpenseRecord) error
	}

	InsuranceStore interface {
		GetInsurance(ctx context.Context, userID string, id int64) (core.InsurancePolicy, error)
		CreateInsurance(ctx context.Context, p core.InsurancePolicy) (core.InsurancePolicy, error)
		UpdateInsurance(ctx context.Context, p core.InsurancePolicy) (core.InsurancePolicy, error)
		DeleteInsurance(ctx context.Context, userID string, id int64) error
	}

	// StatementStore tracks uploaded statements and their processing status.
	StatementStore interface {
		CreateStatement(ctx context.Context, s core.Statement) error
		// GetStatement looks a statement up by id only; callers check ownership.
		GetStatement(ctx context.Context, id string) (core.Statement, error)
		UpdateStatementStatus(ctx context.Context, id string, status core.StatementStatus, assets int, errMsg string) error
		// ClaimStatement moves a statement to processing when it is pending,
		// or processing with its last update before staleBefore. It reports
		// false when another process holds the claim or the statement is done.
		ClaimStatement(ctx context.Context, id string, staleBefore time.Time) (bool, error)
		// ListUnfinishedStatements returns up to limit ids of statements that
		// are pending, or processing with their last update before
		// staleBefore, oldest first.
		ListUnfinishedStatements(ctx context.Context, staleBefore time.Time, limit int) ([]string, error)
	}

	// Store is the full persistence surface used by the HTTP layer.
	Store interface {
		Reader
		ProfileWriter
		AssetStore
		DebtStore
		GoalStore
		ExpenseWriter
		InsuranceStore
		StatementStore
		Ping(ctx context.Context) error
		Close() error
	}
)
