// Package advisor assembles a user's financial records into a single
// snapshot used to seed conversations with the AI assistant.
package advisor

import "finpilot/internal/tvm"

// FinancialContext is the read-only snapshot produced by Builder. Every
// amount and percentage in it is rounded to a whole number.
type FinancialContext struct {
	Month      string           `json:"month"`
	Profile    ProfileSummary   `json:"profile"`
	Summary    Summary          `json:"summary"`
	Retirement Retirement       `json:"retirement"`
	Assets     []AssetItem      `json:"assets"`
	Allocation []AllocationItem `json:"allocation"`
	Debts      DebtSummary      `json:"debts"`
	Goals      []GoalItem       `json:"goals"`
	Expenses   *ExpenseSummary  `json:"expenses,omitempty"`
	Insurance  InsuranceSummary `json:"insurance"`
}

type ProfileSummary struct {
	Name               string   `json:"name,omitempty"`
	Age                int      `json:"age"`
	RetirementAge      int      `json:"retirementAge"`
	ExpectedGrowthRate float64  `json:"expectedGrowthRate"`
	AnnualIncome       *float64 `json:"annualIncome,omitempty"`
	RiskTolerance      string   `json:"riskTolerance,omitempty"`
}

type Summary struct {
	TotalAssets        float64 `json:"totalAssets"`
	TotalDebts         float64 `json:"totalDebts"`
	NetWorth           float64 `json:"netWorth"`
	CurrentSavings     float64 `json:"currentSavings"`
	AnnualContribution float64 `json:"annualContribution"`
}

type Retirement struct {
	YearsUntilRetirement int                   `json:"yearsUntilRetirement"`
	ProjectedValue       float64               `json:"projectedValue"`
	TargetSavings        float64               `json:"targetSavings"`
	SuccessPercent       float64               `json:"successPercent"`
	Projections          []tvm.ProjectionPoint `json:"projections"`
}

type AssetItem struct {
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	AssetClass         string   `json:"assetClass,omitempty"`
	Balance            float64  `json:"balance"`
	GrowthRate         *float64 `json:"growthRate,omitempty"`
	AnnualContribution *float64 `json:"annualContribution,omitempty"`
}

// AllocationItem is one bucket of the asset allocation.
type AllocationItem struct {
	Class   string  `json:"class"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

type DebtItem struct {
	Name           string  `json:"name"`
	Type           string  `json:"type,omitempty"`
	Balance        float64 `json:"balance"`
	InterestRate   float64 `json:"interestRate"`
	MinimumPayment float64 `json:"minimumPayment"`
}

type DebtSummary struct {
	Items               []DebtItem `json:"items"`
	TotalBalance        float64    `json:"totalBalance"`
	TotalMinimumPayment float64    `json:"totalMinimumPayment"`
	WeightedAverageRate float64    `json:"weightedAverageRate"`
}

type GoalItem struct {
	Name           string  `json:"name"`
	TargetAmount   float64 `json:"targetAmount"`
	TargetDate     string  `json:"targetDate"`
	YearsRemaining float64 `json:"yearsRemaining"`
	Priority       string  `json:"priority,omitempty"`
	SuccessPercent float64 `json:"successPercent"`
}

// ExpenseSummary buckets the current month's spending.
type ExpenseSummary struct {
	Month         string  `json:"month"`
	Living        float64 `json:"living"`
	Entertainment float64 `json:"entertainment"`
	Discretionary float64 `json:"discretionary"`
	Total         float64 `json:"total"`
}

type PolicyItem struct {
	Type          string  `json:"type"`
	Provider      string  `json:"provider,omitempty"`
	Coverage      float64 `json:"coverage"`
	AnnualPremium float64 `json:"annualPremium"`
}

type InsuranceSummary struct {
	Policies           []PolicyItem `json:"policies"`
	TotalAnnualPremium float64      `json:"totalAnnualPremium"`
}
