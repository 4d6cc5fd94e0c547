package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/postersnap/postersnap/pkg/models"
)

// Memory is a map-backed Store used for tests and standalone deployments
// without a database.
type Memory struct {
	mu            sync.RWMutex
	posters       map[string]*models.Poster
	usages        map[string]*models.UserUsage
	sessionCounts map[string]int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		posters:       make(map[string]*models.Poster),
		usages:        make(map[string]*models.UserUsage),
		sessionCounts: make(map[string]int),
	}
}

// CreatePoster assigns an id and creation time and stores the record.
func (m *Memory) CreatePoster(_ context.Context, poster *models.Poster) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if poster.ID == "" {
		poster.ID = uuid.New().String()
	}
	if poster.Status == "" {
		poster.Status = models.PosterStatusProcessing
	}
	now := time.Now()
	poster.CreatedAt = now
	poster.UpdatedAt = now

	stored := *poster
	m.posters[poster.ID] = &stored
	return nil
}

// GetPoster returns a copy of the stored record.
func (m *Memory) GetPoster(_ context.Context, id string) (*models.Poster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	poster, ok := m.posters[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *poster
	copied.PosterURLs = append([]string(nil), poster.PosterURLs...)
	return &copied, nil
}

// UpdatePoster applies upd to the stored record. Terminal posters reject any
// further status change.
func (m *Memory) UpdatePoster(_ context.Context, id string, upd PosterUpdate) (*models.Poster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	poster, ok := m.posters[id]
	if !ok {
		return nil, ErrNotFound
	}

	if upd.Status != nil && *upd.Status != poster.Status {
		if poster.Status.Terminal() {
			return nil, ErrStatusFinal
		}
		poster.Status = *upd.Status
	}
	if upd.PosterURLs != nil {
		poster.PosterURLs = append([]string(nil), upd.PosterURLs...)
	}
	if upd.ErrorMsg != nil {
		poster.ErrorMsg = *upd.ErrorMsg
	}
	poster.UpdatedAt = time.Now()

	copied := *poster
	copied.PosterURLs = append([]string(nil), poster.PosterURLs...)
	return &copied, nil
}

// GetUserUsage returns the usage record for userID, or nil if none exists.
func (m *Memory) GetUserUsage(_ context.Context, userID string) (*models.UserUsage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	usage, ok := m.usages[userID]
	if !ok {
		return nil, nil
	}
	copied := *usage
	return &copied, nil
}

// materialize returns the existing record or creates one with the default
// credit allotment. Caller must hold the write lock.
func (m *Memory) materialize(userID string) *models.UserUsage {
	usage, ok := m.usages[userID]
	if !ok {
		usage = &models.UserUsage{
			UserID:  userID,
			Credits: models.DefaultCredits,
			Plan:    models.PlanFree,
		}
		m.usages[userID] = usage
	}
	return usage
}

// IncrementPostersCreated bumps the daily generation counter and stamps the
// time. The counter restarts when the calendar day rolls over.
func (m *Memory) IncrementPostersCreated(_ context.Context, userID string) (*models.UserUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	usage := m.materialize(userID)
	now := time.Now()
	if !sameDay(usage.LastPosterCreated, now) {
		usage.PostersCreated = 0
	}
	usage.PostersCreated++
	usage.LastPosterCreated = now

	copied := *usage
	return &copied, nil
}

// DeductCredits subtracts amount, clamping the balance at zero.
func (m *Memory) DeductCredits(_ context.Context, userID string, amount int) (*models.UserUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	usage := m.materialize(userID)
	usage.Credits -= amount
	if usage.Credits < 0 {
		usage.Credits = 0
	}

	copied := *usage
	return &copied, nil
}

// AddCredits adds amount to the balance.
func (m *Memory) AddCredits(_ context.Context, userID string, amount int) (*models.UserUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	usage := m.materialize(userID)
	usage.Credits += amount

	copied := *usage
	return &copied, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// GetSessionCount returns the generation count for a session, 0 if unseen.
func (m *Memory) GetSessionCount(_ context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionCounts[sessionID], nil
}

// IncrementSessionCount bumps the session counter, creating it lazily.
func (m *Memory) IncrementSessionCount(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionCounts[sessionID]++
	return nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posters = make(map[string]*models.Poster)
	m.usages = make(map[string]*models.UserUsage)
	m.sessionCounts = make(map[string]int)
	return nil
}
