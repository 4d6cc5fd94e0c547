// Package store defines the persistence boundary for poster jobs, user usage
// records, and anonymous session counters. Two backends implement it: an
// in-memory map store (tests, standalone mode) and a Postgres store
// (internal/database).
package store

import (
	"context"
	"errors"

	"github.com/postersnap/postersnap/pkg/models"
)

var (
	// ErrNotFound is returned when a poster record does not exist.
	ErrNotFound = errors.New("poster not found")

	// ErrStatusFinal is returned when an update would move a poster out of a
	// terminal state. Status transitions are monotonic: processing may move
	// to completed or failed, terminal states never change.
	ErrStatusFinal = errors.New("poster status is final")
)

// PosterUpdate carries the mutable fields of a poster record. Nil fields are
// left untouched.
type PosterUpdate struct {
	Status     *models.PosterStatus
	PosterURLs []string
	ErrorMsg   *string
}

// Store is the single persistence boundary consumed by the orchestrator and
// the HTTP handlers. All counter mutations are atomic per key: concurrent
// completions for the same user or session must not lose updates.
type Store interface {
	// Posters
	CreatePoster(ctx context.Context, poster *models.Poster) error
	GetPoster(ctx context.Context, id string) (*models.Poster, error)
	UpdatePoster(ctx context.Context, id string, upd PosterUpdate) (*models.Poster, error)

	// User usage. GetUserUsage returns (nil, nil) for an unknown user; a
	// record is materialized lazily with models.DefaultCredits on the first
	// mutation.
	GetUserUsage(ctx context.Context, userID string) (*models.UserUsage, error)
	IncrementPostersCreated(ctx context.Context, userID string) (*models.UserUsage, error)
	DeductCredits(ctx context.Context, userID string, amount int) (*models.UserUsage, error)
	AddCredits(ctx context.Context, userID string, amount int) (*models.UserUsage, error)

	// Anonymous session counters. A counter reads as 0 until the first
	// increment creates it.
	GetSessionCount(ctx context.Context, sessionID string) (int, error)
	IncrementSessionCount(ctx context.Context, sessionID string) error

	// Reset clears all data. Administrative/test use only.
	Reset(ctx context.Context) error
}
