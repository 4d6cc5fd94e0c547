package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/postersnap/postersnap/internal/store"
	"github.com/postersnap/postersnap/pkg/models"
)

// Repository implements store.Store on Postgres. Counter mutations are single
// UPDATE statements so concurrent job completions never lose increments.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

var _ store.Store = (*Repository)(nil)

// Health checks the underlying database connection.
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// CreatePoster creates a new poster record
func (r *Repository) CreatePoster(ctx context.Context, poster *models.Poster) error {
	if poster.ID == "" {
		poster.ID = uuid.New().String()
	}
	if poster.Status == "" {
		poster.Status = models.PosterStatusProcessing
	}

	query := `
		INSERT INTO posters (id, user_id, session_id, input_mode, input_value, style,
		                     content_type, output_format, min_pages, max_pages, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		poster.ID, poster.UserID, poster.SessionID, poster.InputMode, poster.InputValue,
		poster.Style, poster.ContentType, poster.OutputFormat, poster.MinPages,
		poster.MaxPages, poster.Status,
	).Scan(&poster.CreatedAt, &poster.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create poster: %w", err)
	}

	return nil
}

// GetPoster retrieves a poster by ID
func (r *Repository) GetPoster(ctx context.Context, id string) (*models.Poster, error) {
	var poster models.Poster

	query := `
		SELECT id, user_id, session_id, input_mode, input_value, style, content_type,
		       output_format, min_pages, max_pages, status, poster_urls, error_msg,
		       created_at, updated_at
		FROM posters
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&poster.ID, &poster.UserID, &poster.SessionID, &poster.InputMode,
		&poster.InputValue, &poster.Style, &poster.ContentType, &poster.OutputFormat,
		&poster.MinPages, &poster.MaxPages, &poster.Status, &poster.PosterURLs,
		&poster.ErrorMsg, &poster.CreatedAt, &poster.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poster: %w", err)
	}

	return &poster, nil
}

// UpdatePoster applies upd to a poster record. The status guard lives in the
// WHERE clause: once a poster is terminal its status row no longer matches,
// so a late writer cannot revert it.
func (r *Repository) UpdatePoster(ctx context.Context, id string, upd store.PosterUpdate) (*models.Poster, error) {
	current, err := r.GetPoster(ctx, id)
	if err != nil {
		return nil, err
	}

	status := current.Status
	if upd.Status != nil && *upd.Status != current.Status {
		if current.Status.Terminal() {
			return nil, store.ErrStatusFinal
		}
		status = *upd.Status
	}
	urls := current.PosterURLs
	if upd.PosterURLs != nil {
		urls = upd.PosterURLs
	}
	errMsg := current.ErrorMsg
	if upd.ErrorMsg != nil {
		errMsg = *upd.ErrorMsg
	}

	query := `
		UPDATE posters
		SET status = $2, poster_urls = $3, error_msg = $4, updated_at = now()
		WHERE id = $1 AND (status = $5 OR status = $2)
		RETURNING id, user_id, session_id, input_mode, input_value, style, content_type,
		          output_format, min_pages, max_pages, status, poster_urls, error_msg,
		          created_at, updated_at
	`

	var poster models.Poster
	err = r.db.Pool.QueryRow(ctx, query, id, status, urls, errMsg, models.PosterStatusProcessing).Scan(
		&poster.ID, &poster.UserID, &poster.SessionID, &poster.InputMode,
		&poster.InputValue, &poster.Style, &poster.ContentType, &poster.OutputFormat,
		&poster.MinPages, &poster.MaxPages, &poster.Status, &poster.PosterURLs,
		&poster.ErrorMsg, &poster.CreatedAt, &poster.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		// Row existed a moment ago; a concurrent writer finalized it first.
		return nil, store.ErrStatusFinal
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update poster: %w", err)
	}

	return &poster, nil
}

// GetUserUsage retrieves a usage record, or nil if the user is unknown
func (r *Repository) GetUserUsage(ctx context.Context, userID string) (*models.UserUsage, error) {
	var usage models.UserUsage

	query := `
		SELECT user_id, posters_created, last_poster_created, credits, plan
		FROM user_usage
		WHERE user_id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&usage.UserID, &usage.PostersCreated, &usage.LastPosterCreated,
		&usage.Credits, &usage.Plan,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user usage: %w", err)
	}

	return &usage, nil
}

// IncrementPostersCreated bumps the daily generation counter, materializing
// the record with the default credit allotment on first touch. The counter
// restarts when the calendar day rolls over.
func (r *Repository) IncrementPostersCreated(ctx context.Context, userID string) (*models.UserUsage, error) {
	query := `
		INSERT INTO user_usage (user_id, posters_created, last_poster_created, credits, plan)
		VALUES ($1, 1, now(), $2, 'free')
		ON CONFLICT (user_id) DO UPDATE
		SET posters_created = CASE
		        WHEN user_usage.last_poster_created::date = now()::date
		        THEN user_usage.posters_created + 1
		        ELSE 1
		    END,
		    last_poster_created = now()
		RETURNING user_id, posters_created, last_poster_created, credits, plan
	`

	return r.scanUsage(ctx, query, userID, models.DefaultCredits)
}

// DeductCredits subtracts amount, clamping the balance at zero.
func (r *Repository) DeductCredits(ctx context.Context, userID string, amount int) (*models.UserUsage, error) {
	query := `
		INSERT INTO user_usage (user_id, posters_created, last_poster_created, credits, plan)
		VALUES ($1, 0, now(), GREATEST(0, $3 - $2), 'free')
		ON CONFLICT (user_id) DO UPDATE
		SET credits = GREATEST(0, user_usage.credits - $2)
		RETURNING user_id, posters_created, last_poster_created, credits, plan
	`

	return r.scanUsage(ctx, query, userID, amount, models.DefaultCredits)
}

// AddCredits adds amount to the balance.
func (r *Repository) AddCredits(ctx context.Context, userID string, amount int) (*models.UserUsage, error) {
	query := `
		INSERT INTO user_usage (user_id, posters_created, last_poster_created, credits, plan)
		VALUES ($1, 0, now(), $3 + $2, 'free')
		ON CONFLICT (user_id) DO UPDATE
		SET credits = user_usage.credits + $2
		RETURNING user_id, posters_created, last_poster_created, credits, plan
	`

	return r.scanUsage(ctx, query, userID, amount, models.DefaultCredits)
}

func (r *Repository) scanUsage(ctx context.Context, query string, args ...interface{}) (*models.UserUsage, error) {
	var usage models.UserUsage
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&usage.UserID, &usage.PostersCreated, &usage.LastPosterCreated,
		&usage.Credits, &usage.Plan,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update user usage: %w", err)
	}
	return &usage, nil
}

// GetSessionCount returns the generation count for a session, 0 if unseen
func (r *Repository) GetSessionCount(ctx context.Context, sessionID string) (int, error) {
	var count int

	query := `SELECT count FROM session_counts WHERE session_id = $1`

	err := r.db.Pool.QueryRow(ctx, query, sessionID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get session count: %w", err)
	}

	return count, nil
}

// IncrementSessionCount bumps the session counter, creating it lazily
func (r *Repository) IncrementSessionCount(ctx context.Context, sessionID string) error {
	query := `
		INSERT INTO session_counts (session_id, count)
		VALUES ($1, 1)
		ON CONFLICT (session_id) DO UPDATE
		SET count = session_counts.count + 1
	`

	if _, err := r.db.Pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to increment session count: %w", err)
	}
	return nil
}

// Reset truncates all tables. Administrative/test use only.
func (r *Repository) Reset(ctx context.Context) error {
	for _, table := range []string{"posters", "user_usage", "session_counts"} {
		if _, err := r.db.Pool.Exec(ctx, "TRUNCATE "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}
