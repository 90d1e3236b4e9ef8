package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"finpilot/internal/tvm"
)

// Asset types recognised by the context builder. Other values are accepted
// and stored as-is.
const (
	AssetInvestment = "Investment"
	AssetCash       = "Cash"
	AssetRetirement = "Retirement"
	AssetRealEstate = "Real Estate"
	AssetLifestyle  = "Lifestyle"
	AssetOther      = "Other"
)

// Statement processing states.
const (
	StatementPending    StatementStatus = "pending"
	StatementProcessing StatementStatus = "processing"
	StatementCompleted  StatementStatus = "completed"
	StatementFailed     StatementStatus = "failed"
)

// StatementLease is how long a processing claim on a statement holds. A
// statement still processing after that is considered abandoned and may be
// claimed again.
const StatementLease = 5 * time.Minute

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type (
	StatementStatus string

	Date struct {
		time.Time
	}

	Profile struct {
		UserID             string   `json:"userId"`
		Name               string   `json:"name"`
		Age                *int     `json:"age,omitempty"`
		RetirementAge      *int     `json:"retirementAge,omitempty"`
		ExpectedGrowthRate *float64 `json:"expectedGrowthRate,omitempty"`
		AnnualIncome       *float64 `json:"annualIncome,omitempty"`
		RiskTolerance      string   `json:"riskTolerance,omitempty"`
	}

	Asset struct {
		ID                 int64     `json:"id"`
		UserID             string    `json:"-"`
		Name               string    `json:"name"`
		Type               string    `json:"type"`
		AssetClass         string    `json:"assetClass,omitempty"`
		Balance            float64   `json:"balance"`
		GrowthRate         *float64  `json:"growthRate,omitempty"`
		InterestRate       *float64  `json:"interestRate,omitempty"`
		AnnualContribution *float64  `json:"annualContribution,omitempty"`
		UpdatedAt          time.Time `json:"updatedAt"`
	}

	Debt struct {
		ID             int64     `json:"id"`
		UserID         string    `json:"-"`
		Name           string    `json:"name"`
		Type           string    `json:"type"`
		Balance        float64   `json:"balance"`
		InterestRate   float64   `json:"interestRate"`
		MinimumPayment float64   `json:"minimumPayment"`
		UpdatedAt      time.Time `json:"updatedAt"`
	}

	Goal struct {
		ID           int64     `json:"id"`
		UserID       string    `json:"-"`
		Name         string    `json:"name"`
		TargetAmount float64   `json:"targetAmount"`
		TargetDate   Date      `json:"targetDate"`
		Priority     string    `json:"priority,omitempty"`
		Active       bool      `json:"active"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	// ExpenseRecord holds one month of spending, keyed by Month ("YYYY-MM").
	ExpenseRecord struct {
		UserID        string  `json:"-"`
		Month         string  `json:"month"`
		Housing       float64 `json:"housing"`
		Utilities     float64 `json:"utilities"`
		Groceries     float64 `json:"groceries"`
		Transport     float64 `json:"transport"`
		Healthcare    float64 `json:"healthcare"`
		Dining        float64 `json:"dining"`
		Entertainment float64 `json:"entertainment"`
		Miscellaneous float64 `json:"miscellaneous"`
		Total         float64 `json:"total"`
	}

	InsurancePolicy struct {
		ID            int64     `json:"id"`
		UserID        string    `json:"-"`
		Type          string    `json:"type"`
		Provider      string    `json:"provider"`
		Coverage      float64   `json:"coverage"`
		AnnualPremium float64   `json:"annualPremium"`
		UpdatedAt     time.Time `json:"updatedAt"`
	}

	Statement struct {
		ID              string          `json:"id"`
		UserID          string          `json:"-"`
		Filename        string          `json:"filename"`
		Content         []byte          `json:"-"`
		Status          StatementStatus `json:"status"`
		Error           string          `json:"error,omitempty"`
		AssetsExtracted int             `json:"assetsExtracted"`
		CreatedAt       time.Time       `json:"createdAt"`
		UpdatedAt       time.Time       `json:"updatedAt"`
	}

	ChatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidRate   = errors.New("rate must be between -100 and 100")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyType     = errors.New("empty type")
	ErrInvalidMonth  = errors.New("invalid month, expected YYYY-MM")
	ErrInvalidAge    = errors.New("invalid age")
)

// ValidationError marks an error caused by bad user input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err was produced by a Validate method.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format("2006-01-02"))
}

// UnmarshalJSON accepts YYYY-MM-DD and RFC 3339 timestamps.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	d.Time = t.UTC()
	return nil
}

// MonthKey formats t as the YYYY-MM key used by expense records.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ValidMonthKey reports whether s is a YYYY-MM key.
func ValidMonthKey(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil && len(s) == 7
}

func validRate(r *float64) bool {
	return r == nil || (*r >= -100 && *r <= 100)
}

func (p Profile) Validate() error {
	if p.Age != nil && (*p.Age < 0 || *p.Age > 130) {
		return invalid("age", ErrInvalidAge)
	}
	if p.RetirementAge != nil && (*p.RetirementAge < 0 || *p.RetirementAge > 130) {
		return invalid("retirementAge", ErrInvalidAge)
	}
	if !validRate(p.ExpectedGrowthRate) {
		return invalid("expectedGrowthRate", ErrInvalidRate)
	}
	if p.AnnualIncome != nil && *p.AnnualIncome < 0 {
		return invalid("annualIncome", ErrInvalidAmount)
	}
	return nil
}

func (a Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if len(a.Name) > 200 {
		return invalid("name", errors.New("too long (max 200 characters)"))
	}
	if strings.TrimSpace(a.Type) == "" {
		return invalid("type", ErrEmptyType)
	}
	if a.Balance < 0 {
		return invalid("balance", ErrInvalidAmount)
	}
	if !validRate(a.GrowthRate) {
		return invalid("growthRate", ErrInvalidRate)
	}
	if !validRate(a.InterestRate) {
		return invalid("interestRate", ErrInvalidRate)
	}
	if a.AnnualContribution != nil && *a.AnnualContribution < 0 {
		return invalid("annualContribution", ErrInvalidAmount)
	}
	return nil
}

// Projection returns the view of the asset used by the TVM functions.
func (a Asset) Projection() tvm.AssetInput {
	return tvm.AssetInput{
		Balance:            a.Balance,
		GrowthRate:         a.GrowthRate,
		InterestRate:       a.InterestRate,
		AnnualContribution: a.AnnualContribution,
	}
}

// IsSavings reports whether the asset counts toward current savings.
func (a Asset) IsSavings() bool {
	return a.Type == AssetInvestment || a.Type == AssetCash
}

func (d Debt) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if d.Balance < 0 {
		return invalid("balance", ErrInvalidAmount)
	}
	if d.InterestRate < 0 || d.InterestRate > 100 {
		return invalid("interestRate", ErrInvalidRate)
	}
	if d.MinimumPayment < 0 {
		return invalid("minimumPayment", ErrInvalidAmount)
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if g.TargetAmount <= 0 {
		return invalid("targetAmount", ErrInvalidAmount)
	}
	if g.TargetDate.IsZero() {
		return invalid("targetDate", errors.New("date cannot be zero"))
	}
	return nil
}

// UnmarshalJSON defaults Active to true when the field is absent.
func (g *Goal) UnmarshalJSON(b []byte) error {
	type goalJSON Goal
	aux := goalJSON{Active: true}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*g = Goal(aux)
	return nil
}

// YearsUntil returns the fractional number of years from now to the target
// date. Past dates yield a negative number.
func (g Goal) YearsUntil(now time.Time) float64 {
	return g.TargetDate.Sub(now).Hours() / (365.25 * 24)
}

func (e ExpenseRecord) Validate() error {
	if !ValidMonthKey(e.Month) {
		return invalid("month", ErrInvalidMonth)
	}
	for name, v := range map[string]float64{
		"housing":       e.Housing,
		"utilities":     e.Utilities,
		"groceries":     e.Groceries,
		"transport":     e.Transport,
		"healthcare":    e.Healthcare,
		"dining":        e.Dining,
		"entertainment": e.Entertainment,
		"miscellaneous": e.Miscellaneous,
		"total":         e.Total,
	} {
		if v < 0 {
			return invalid(name, ErrInvalidAmount)
		}
	}
	return nil
}

// Sum adds up all category fields.
func (e ExpenseRecord) Sum() float64 {
	return e.Housing + e.Utilities + e.Groceries + e.Transport + e.Healthcare +
		e.Dining + e.Entertainment + e.Miscellaneous
}

func (p InsurancePolicy) Validate() error {
	if strings.TrimSpace(p.Type) == "" {
		return invalid("type", ErrEmptyType)
	}
	if p.Coverage < 0 {
		return invalid("coverage", ErrInvalidAmount)
	}
	if p.AnnualPremium < 0 {
		return invalid("annualPremium", ErrInvalidAmount)
	}
	return nil
}

// Done reports whether the statement reached a terminal state.
func (s Statement) Done() bool {
	return s.Status == StatementCompleted || s.Status == StatementFailed
}
