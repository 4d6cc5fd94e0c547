package quota

import (
	"context"
	"fmt"
	"strings"

	"github.com/postersnap/postersnap/internal/metrics"
	"github.com/postersnap/postersnap/internal/store"
	"github.com/postersnap/postersnap/pkg/models"
)

// Rejection codes. Each maps to a distinct client remediation: sign in, buy
// credits, or upgrade.
const (
	CodeFreeLimitReached    = "free-limit-reached"
	CodeInsufficientCredits = "insufficient-credits"
	CodeDailyLimitReached   = "daily-limit-reached"
)

// Error is a quota rejection. It carries enough detail for the API layer to
// build the client-facing payload without re-querying usage.
type Error struct {
	Code             string
	Message          string
	CreditsRequired  int
	CreditsAvailable int
}

func (e *Error) Error() string {
	return fmt.Sprintf("quota: %s", e.Code)
}

// EmailAllowlist holds privileged account identifiers. Entries match the
// account email or id, case-insensitively.
type EmailAllowlist map[string]struct{}

// NewEmailAllowlist builds an allowlist from configured entries.
func NewEmailAllowlist(entries []string) EmailAllowlist {
	list := make(EmailAllowlist, len(entries))
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			list[e] = struct{}{}
		}
	}
	return list
}

// Contains reports whether value is on the allowlist.
func (l EmailAllowlist) Contains(value string) bool {
	_, ok := l[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// Checker admits or rejects generation requests against session, credit and
// daily-limit policies, and settles usage once a job completes.
type Checker struct {
	store            store.Store
	allowlist        EmailAllowlist
	creditsPerPoster int
	dailyLimit       int
	sessionLimit     int
}

// NewChecker creates a quota checker.
func NewChecker(st store.Store, allowlist EmailAllowlist, creditsPerPoster, dailyLimit, sessionLimit int) *Checker {
	return &Checker{
		store:            st,
		allowlist:        allowlist,
		creditsPerPoster: creditsPerPoster,
		dailyLimit:       dailyLimit,
		sessionLimit:     sessionLimit,
	}
}

// Privileged reports whether the identity bypasses all quota checks.
func (c *Checker) Privileged(identity *models.Identity) bool {
	if identity == nil {
		return false
	}
	return c.allowlist.Contains(identity.Email) || c.allowlist.Contains(identity.ID)
}

// Allow checks whether a generation request may proceed. identity is nil for
// anonymous callers. minPages sizes the credit requirement: a request is only
// admitted if the cheapest possible outcome is affordable.
func (c *Checker) Allow(ctx context.Context, identity *models.Identity, sessionID string, minPages int) error {
	if c.Privileged(identity) {
		return nil
	}

	if identity == nil {
		return c.allowAnonymous(ctx, sessionID)
	}
	return c.allowAuthenticated(ctx, identity, minPages)
}

func (c *Checker) allowAnonymous(ctx context.Context, sessionID string) error {
	count, err := c.store.GetSessionCount(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to check session count: %w", err)
	}
	if count >= c.sessionLimit {
		metrics.QuotaRejectionsTotal.WithLabelValues(CodeFreeLimitReached).Inc()
		return &Error{
			Code:    CodeFreeLimitReached,
			Message: "Free limit reached. Please sign in to continue.",
		}
	}
	return nil
}

func (c *Checker) allowAuthenticated(ctx context.Context, identity *models.Identity, minPages int) error {
	usage, err := c.store.GetUserUsage(ctx, identity.ID)
	if err != nil {
		return fmt.Errorf("failed to check user usage: %w", err)
	}
	if usage == nil {
		// Unmaterialized users get the default allotment on first use
		usage = &models.UserUsage{
			UserID:  identity.ID,
			Credits: models.DefaultCredits,
			Plan:    models.PlanFree,
		}
	}

	// Credits meter the free plan only; paid plans answer to the daily limit
	required := c.creditsPerPoster * maxInt(minPages, 1)
	if usage.Plan == models.PlanFree && usage.Credits < required {
		metrics.QuotaRejectionsTotal.WithLabelValues(CodeInsufficientCredits).Inc()
		return &Error{
			Code:             CodeInsufficientCredits,
			Message:          "Insufficient credits. Purchase credits or upgrade to Premium.",
			CreditsRequired:  required,
			CreditsAvailable: usage.Credits,
		}
	}

	if !usage.Unmetered() && usage.PostersCreated >= c.dailyLimit {
		metrics.QuotaRejectionsTotal.WithLabelValues(CodeDailyLimitReached).Inc()
		return &Error{
			Code:             CodeDailyLimitReached,
			Message:          "Daily limit reached. Upgrade to Premium for unlimited access.",
			CreditsAvailable: usage.Credits,
		}
	}

	return nil
}

// Settle records usage for a successfully completed job. Credits are charged
// per delivered page; privileged accounts are counted but never charged.
// Failed jobs are never settled, so a failure costs the caller nothing.
func (c *Checker) Settle(ctx context.Context, poster *models.Poster, artifacts int) error {
	if poster.UserID == "" {
		return c.store.IncrementSessionCount(ctx, poster.SessionID)
	}

	if _, err := c.store.IncrementPostersCreated(ctx, poster.UserID); err != nil {
		return fmt.Errorf("failed to record poster creation: %w", err)
	}

	if c.allowlist.Contains(poster.UserID) {
		return nil
	}

	charge := c.creditsPerPoster * artifacts
	if _, err := c.store.DeductCredits(ctx, poster.UserID, charge); err != nil {
		return fmt.Errorf("failed to deduct credits: %w", err)
	}
	metrics.CreditsDeductedTotal.Add(float64(charge))
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
