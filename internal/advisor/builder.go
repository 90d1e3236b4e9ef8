package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"finpilot/internal/core"
	"finpilot/internal/log"
	"finpilot/internal/records"
	"finpilot/internal/tvm"
)

const (
	defaultAge            = 35
	defaultRetirementAge  = 65
	defaultGrowthRate     = 7.0
	projectionYears       = 30
	defaultAnnualExpenses = 50000.0
	safeWithdrawalRate    = 0.04
)

// Builder assembles FinancialContext values from a records.Reader.
// It keeps no state between calls.
type Builder struct {
	reader records.Reader
	now    func() time.Time
	logger *log.Logger
}

type Option func(*Builder)

// WithClock overrides the clock used for the month key and goal horizons.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

func NewBuilder(reader records.Reader, opts ...Option) *Builder {
	b := &Builder{
		reader: reader,
		now:    time.Now,
		logger: log.Default(log.ComponentAdvisor),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// snapshot is the raw data read for one build.
type snapshot struct {
	profile   *core.Profile
	assets    []core.Asset
	debts     []core.Debt
	goals     []core.Goal
	expenses  *core.ExpenseRecord
	insurance []core.InsurancePolicy
}

// Build reads every record of userID and computes the snapshot. A failed read
// aborts the build; no partial context is returned.
func (b *Builder) Build(ctx context.Context, userID string) (FinancialContext, error) {
	now := b.now()
	month := core.MonthKey(now)

	s, err := b.load(ctx, userID, month)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to load financial records",
			log.FieldUserID, userID, log.FieldError, err)
		return FinancialContext{}, fmt.Errorf("build financial context: %w", err)
	}

	fc := assemble(s, month, now)
	b.logger.DebugContext(ctx, "Financial context built",
		log.FieldUserID, userID,
		log.FieldMonth, month,
		"assets", len(s.assets),
		"goals", len(s.goals))
	return fc, nil
}

// BuildJSON returns the indented JSON form of Build, ready to embed in a prompt.
func (b *Builder) BuildJSON(ctx context.Context, userID string) (string, error) {
	fc, err := b.Build(ctx, userID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal financial context: %w", err)
	}
	return string(data), nil
}

func (b *Builder) load(ctx context.Context, userID, month string) (snapshot, error) {
	var s snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := b.reader.GetProfile(ctx, userID)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		s.profile = p
		return nil
	})
	g.Go(func() error {
		assets, err := b.reader.ListAssets(ctx, userID)
		if err != nil {
			return fmt.Errorf("list assets: %w", err)
		}
		s.assets = assets
		return nil
	})
	g.Go(func() error {
		debts, err := b.reader.ListDebts(ctx, userID)
		if err != nil {
			return fmt.Errorf("list debts: %w", err)
		}
		s.debts = debts
		return nil
	})
	g.Go(func() error {
		goals, err := b.reader.ListActiveGoals(ctx, userID)
		if err != nil {
			return fmt.Errorf("list goals: %w", err)
		}
		s.goals = goals
		return nil
	})
	g.Go(func() error {
		e, err := b.reader.GetExpenses(ctx, userID, month)
		if err != nil {
			return fmt.Errorf("get expenses: %w", err)
		}
		s.expenses = e
		return nil
	})
	g.Go(func() error {
		policies, err := b.reader.ListInsurance(ctx, userID)
		if err != nil {
			return fmt.Errorf("list insurance: %w", err)
		}
		s.insurance = policies
		return nil
	})

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return s, nil
}

func assemble(s snapshot, month string, now time.Time) FinancialContext {
	profile := summarizeProfile(s.profile)

	var (
		totalAssets, savings, contribution float64
		all, savingsInputs                 []tvm.AssetInput
	)
	items := make([]AssetItem, 0, len(s.assets))
	for _, a := range s.assets {
		in := a.Projection()
		totalAssets += a.Balance
		contribution += in.Contribution()
		all = append(all, in)
		if a.IsSavings() {
			savings += a.Balance
			savingsInputs = append(savingsInputs, in)
		}
		items = append(items, assetItem(a))
	}

	debts := summarizeDebts(s.debts)
	years := max(0, profile.RetirementAge-profile.Age)
	growth := profile.ExpectedGrowthRate
	profile.ExpectedGrowthRate = core.RoundWhole(growth)

	series := tvm.ProjectionSeries(savings, contribution, growth, 0, projectionYears)
	for i := range series {
		series[i].Value = core.RoundWhole(series[i].Value)
	}
	projected := tvm.ProjectAssetValue(tvm.AssetInput{
		Balance:            savings,
		GrowthRate:         &growth,
		AnnualContribution: &contribution,
	}, float64(years))
	target := targetSavings(contribution)

	goals := make([]GoalItem, 0, len(s.goals))
	for _, g := range s.goals {
		remaining := g.YearsUntil(now)
		goals = append(goals, GoalItem{
			Name:           g.Name,
			TargetAmount:   core.RoundWhole(g.TargetAmount),
			TargetDate:     g.TargetDate.Format("2006-01-02"),
			YearsRemaining: core.RoundWhole(math.Max(0, remaining)),
			Priority:       g.Priority,
			SuccessPercent: core.RoundWhole(tvm.CalculateGoalSuccess(g.TargetAmount, remaining, all)),
		})
	}

	return FinancialContext{
		Month:   month,
		Profile: profile,
		Summary: Summary{
			TotalAssets:        core.RoundWhole(totalAssets),
			TotalDebts:         debts.TotalBalance,
			NetWorth:           core.RoundWhole(totalAssets - sumDebts(s.debts)),
			CurrentSavings:     core.RoundWhole(savings),
			AnnualContribution: core.RoundWhole(contribution),
		},
		Retirement: Retirement{
			YearsUntilRetirement: years,
			ProjectedValue:       core.RoundWhole(projected),
			TargetSavings:        core.RoundWhole(target),
			SuccessPercent:       core.RoundWhole(tvm.CalculateGoalSuccess(target, float64(years), savingsInputs)),
			Projections:          series,
		},
		Assets:     items,
		Allocation: allocate(s.assets, totalAssets),
		Debts:      debts,
		Goals:      goals,
		Expenses:   summarizeExpenses(s.expenses),
		Insurance:  summarizeInsurance(s.insurance),
	}
}

func summarizeProfile(p *core.Profile) ProfileSummary {
	out := ProfileSummary{
		Age:                defaultAge,
		RetirementAge:      defaultRetirementAge,
		ExpectedGrowthRate: defaultGrowthRate,
	}
	if p == nil {
		return out
	}
	out.Name = p.Name
	out.RiskTolerance = p.RiskTolerance
	if p.Age != nil {
		out.Age = *p.Age
	}
	if p.RetirementAge != nil {
		out.RetirementAge = *p.RetirementAge
	}
	if p.ExpectedGrowthRate != nil {
		out.ExpectedGrowthRate = *p.ExpectedGrowthRate
	}
	if p.AnnualIncome != nil {
		income := core.RoundWhole(*p.AnnualIncome)
		out.AnnualIncome = &income
	}
	return out
}

// targetSavings estimates the retirement nest egg. Annual expenses are backed
// out of the contribution rather than measured, so this is a placeholder
// heuristic.
func targetSavings(annualContribution float64) float64 {
	expenses := annualContribution / 0.2 * 0.8 * 0.75
	if expenses == 0 {
		expenses = defaultAnnualExpenses
	}
	return expenses / safeWithdrawalRate
}

func assetItem(a core.Asset) AssetItem {
	item := AssetItem{
		Name:       a.Name,
		Type:       a.Type,
		AssetClass: a.AssetClass,
		Balance:    core.RoundWhole(a.Balance),
	}
	rate := a.GrowthRate
	if rate == nil {
		rate = a.InterestRate
	}
	if rate != nil {
		r := core.RoundWhole(*rate)
		item.GrowthRate = &r
	}
	if a.AnnualContribution != nil {
		c := core.RoundWhole(*a.AnnualContribution)
		item.AnnualContribution = &c
	}
	return item
}

// AllocationClass returns the bucket an asset is counted under.
func AllocationClass(a core.Asset) string {
	if a.Type == core.AssetLifestyle {
		return a.Type
	}
	class := a.AssetClass
	if class == "" {
		class = a.Type
	}
	switch class {
	case "Cash Equivalents":
		return "Cash"
	case "Mutual Funds":
		return "ETFs"
	}
	return class
}

func allocate(assets []core.Asset, total float64) []AllocationItem {
	sums := map[string]float64{}
	for _, a := range assets {
		sums[AllocationClass(a)] += a.Balance
	}

	out := make([]AllocationItem, 0, len(sums))
	for class, v := range sums {
		if v == 0 {
			continue
		}
		var pct float64
		if total > 0 {
			pct = core.RoundWhole(v / total * 100)
		}
		out = append(out, AllocationItem{Class: class, Value: core.RoundWhole(v), Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Class < out[j].Class
	})
	return out
}

func sumDebts(debts []core.Debt) float64 {
	var total float64
	for _, d := range debts {
		total += d.Balance
	}
	return total
}

func summarizeDebts(debts []core.Debt) DebtSummary {
	var total, minimum, weighted float64
	items := make([]DebtItem, 0, len(debts))
	for _, d := range debts {
		total += d.Balance
		minimum += d.MinimumPayment
		weighted += d.Balance * d.InterestRate
		items = append(items, DebtItem{
			Name:           d.Name,
			Type:           d.Type,
			Balance:        core.RoundWhole(d.Balance),
			InterestRate:   core.RoundWhole(d.InterestRate),
			MinimumPayment: core.RoundWhole(d.MinimumPayment),
		})
	}
	var avg float64
	if total > 0 {
		avg = weighted / total
	}
	return DebtSummary{
		Items:               items,
		TotalBalance:        core.RoundWhole(total),
		TotalMinimumPayment: core.RoundWhole(minimum),
		WeightedAverageRate: core.RoundWhole(avg),
	}
}

func summarizeExpenses(e *core.ExpenseRecord) *ExpenseSummary {
	if e == nil {
		return nil
	}
	return &ExpenseSummary{
		Month:         e.Month,
		Living:        core.RoundWhole(e.Housing + e.Utilities + e.Groceries + e.Transport + e.Healthcare),
		Entertainment: core.RoundWhole(e.Dining + e.Entertainment),
		Discretionary: core.RoundWhole(e.Miscellaneous),
		Total:         core.RoundWhole(e.Total),
	}
}

func summarizeInsurance(policies []core.InsurancePolicy) InsuranceSummary {
	var premium float64
	items := make([]PolicyItem, 0, len(policies))
	for _, p := range policies {
		premium += p.AnnualPremium
		items = append(items, PolicyItem{
			Type:          p.Type,
			Provider:      p.Provider,
			Coverage:      core.RoundWhole(p.Coverage),
			AnnualPremium: core.RoundWhole(p.AnnualPremium),
		})
	}
	return InsuranceSummary{Policies: items, TotalAnnualPremium: core.RoundWhole(premium)}
}
