package models

import "time"

// Plan enumerates billing plans for authenticated users.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// DefaultCredits is the starting credit allotment for a lazily materialized
// usage record.
const DefaultCredits = 5

// UserUsage tracks generation counters and the credit balance for one
// authenticated user. Credits never go negative; deductions clamp at zero.
type UserUsage struct {
	UserID            string    `json:"userId" db:"user_id"`
	PostersCreated    int       `json:"postersCreated" db:"posters_created"`
	LastPosterCreated time.Time `json:"lastPosterCreated" db:"last_poster_created"`
	Credits           int       `json:"credits" db:"credits"`
	Plan              Plan      `json:"plan" db:"plan"`
}

// Unmetered reports whether the plan is exempt from the daily generation cap.
func (u *UserUsage) Unmetered() bool {
	return u.Plan == PlanPremium || u.Plan == PlanEnterprise
}
