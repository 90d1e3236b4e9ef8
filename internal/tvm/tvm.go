// Package tvm implements time-value-of-money projections: compound growth of
// a balance with an optional constant annual contribution, and the goal
// success percentage derived from it.
//
// All functions are pure and never fail. Inputs are treated permissively:
// missing rates or contributions count as zero and non-positive year counts
// take a defined branch instead of extrapolating backwards.
package tvm

import "math"

// AssetInput is the projection view of a single asset. Rates are percentages
// (7 means 7%). Nil pointers mean the field is absent.
type AssetInput struct {
	Balance            float64
	GrowthRate         *float64
	InterestRate       *float64
	AnnualContribution *float64
}

// ProjectionPoint is one point of a projection series.
type ProjectionPoint struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Rate returns the effective annual rate as a decimal fraction.
// GrowthRate wins over InterestRate.
func (a AssetInput) Rate() float64 {
	switch {
	case a.GrowthRate != nil:
		return *a.GrowthRate / 100
	case a.InterestRate != nil:
		return *a.InterestRate / 100
	default:
		return 0
	}
}

// Contribution returns the annual contribution, 0 when absent.
func (a AssetInput) Contribution() float64 {
	if a.AnnualContribution == nil {
		return 0
	}
	return *a.AnnualContribution
}

// ProjectAssetValue returns the value of the asset after years of growth at
// its effective rate plus its annual contribution paid at the end of each year.
func ProjectAssetValue(a AssetInput, years float64) float64 {
	if years <= 0 {
		return a.Balance
	}
	rate := a.Rate()
	contribution := a.Contribution()
	if rate == 0 {
		return a.Balance + contribution*years
	}
	growth := math.Pow(1+rate, years)
	return a.Balance*growth + contribution*((growth-1)/rate)
}

// FutureValue compounds principal at rate (decimal fraction) for years.
func FutureValue(principal, rate, years float64) float64 {
	if years <= 0 || rate == 0 {
		return principal
	}
	return principal * math.Pow(1+rate, years)
}

// FutureValueOfAnnuity is the value after years of a payment made at the end
// of every year at rate (decimal fraction).
func FutureValueOfAnnuity(payment, rate, years float64) float64 {
	if years <= 0 {
		return 0
	}
	if rate == 0 {
		return payment * years
	}
	return payment * ((math.Pow(1+rate, years) - 1) / rate)
}

// CalculateGoalSuccess reports, as a percentage in [0, 100], how much of
// goalAmount the assets cover after goalYears. A zero goal is always met.
// When the goal date is now or past, current balances are used as-is.
func CalculateGoalSuccess(goalAmount, goalYears float64, assets []AssetInput) float64 {
	if goalAmount == 0 {
		return 100
	}
	var total float64
	for _, a := range assets {
		if goalYears <= 0 {
			total += a.Balance
			continue
		}
		total += ProjectAssetValue(a, goalYears)
	}
	pct := total / goalAmount * 100
	if pct < 0 || math.IsNaN(pct) {
		return 0
	}
	return math.Min(100, pct)
}

// ProjectionSeries projects balance with a yearly contribution at ratePercent
// for every year in [fromYear, toYear].
func ProjectionSeries(balance, contribution, ratePercent float64, fromYear, toYear int) []ProjectionPoint {
	if toYear < fromYear {
		return nil
	}
	input := AssetInput{
		Balance:            balance,
		GrowthRate:         &ratePercent,
		AnnualContribution: &contribution,
	}
	points := make([]ProjectionPoint, 0, toYear-fromYear+1)
	for year := fromYear; year <= toYear; year++ {
		points = append(points, ProjectionPoint{
			Year:  year,
			Value: ProjectAssetValue(input, float64(year)),
		})
	}
	return points
}

// Float returns a pointer to v, for building AssetInput literals.
func Float(v float64) *float64 {
	return &v
}
