package advisor

import (
	"context"
	"fmt"
	"time"

	"finpilot/internal/core"
	"finpilot/internal/tvm"
)

// MaxProjectionYears bounds requested projection horizons.
const MaxProjectionYears = 100

// SavingsProjection is the yearly growth of a user's savings assets.
type SavingsProjection struct {
	Balance      float64               `json:"balance"`
	Contribution float64               `json:"annualContribution"`
	GrowthRate   float64               `json:"growthRate"`
	Points       []tvm.ProjectionPoint `json:"points"`
}

// Projection projects the user's savings for years 0..years at the profile's
// expected growth rate. Values are rounded to whole units.
func (b *Builder) Projection(ctx context.Context, userID string, years int) (SavingsProjection, error) {
	if years < 0 || years > MaxProjectionYears {
		return SavingsProjection{}, fmt.Errorf("years must be between 0 and %d", MaxProjectionYears)
	}

	profile, err := b.reader.GetProfile(ctx, userID)
	if err != nil {
		return SavingsProjection{}, fmt.Errorf("get profile: %w", err)
	}
	assets, err := b.reader.ListAssets(ctx, userID)
	if err != nil {
		return SavingsProjection{}, fmt.Errorf("list assets: %w", err)
	}

	growth := summarizeProfile(profile).ExpectedGrowthRate
	var savings, contribution float64
	for _, a := range assets {
		contribution += a.Projection().Contribution()
		if a.IsSavings() {
			savings += a.Balance
		}
	}

	points := tvm.ProjectionSeries(savings, contribution, growth, 0, years)
	for i := range points {
		points[i].Value = core.RoundWhole(points[i].Value)
	}
	return SavingsProjection{
		Balance:      core.RoundWhole(savings),
		Contribution: core.RoundWhole(contribution),
		GrowthRate:   growth,
		Points:       points,
	}, nil
}

// GoalSuccess is the rounded chance of reaching g with all of the user's
// assets, measured from now.
func GoalSuccess(g core.Goal, assets []core.Asset, now time.Time) float64 {
	inputs := make([]tvm.AssetInput, 0, len(assets))
	for _, a := range assets {
		inputs = append(inputs, a.Projection())
	}
	return core.RoundWhole(tvm.CalculateGoalSuccess(g.TargetAmount, g.YearsUntil(now), inputs))
}

// Now returns the builder's clock.
func (b *Builder) Now() time.Time {
	return b.now()
}
