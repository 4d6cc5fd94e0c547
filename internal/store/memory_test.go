package store

import (
	"context"
	"sync"
	"testing"

	"github.com/postersnap/postersnap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPoster() *models.Poster {
	return &models.Poster{
		SessionID:    "s-1",
		InputMode:    models.InputKeyword,
		InputValue:   "climate change",
		Style:        models.StyleQuote,
		ContentType:  models.ContentTrending,
		OutputFormat: models.FormatSquare,
		MinPages:     1,
		MaxPages:     1,
	}
}

func TestMemory_CreateAndGetPoster(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	poster := newTestPoster()
	require.NoError(t, m.CreatePoster(ctx, poster))

	assert.NotEmpty(t, poster.ID)
	assert.Equal(t, models.PosterStatusProcessing, poster.Status)
	assert.False(t, poster.CreatedAt.IsZero())

	got, err := m.GetPoster(ctx, poster.ID)
	require.NoError(t, err)
	assert.Equal(t, poster.ID, got.ID)
	assert.Equal(t, "climate change", got.InputValue)
	assert.Empty(t, got.PosterURLs)
}

func TestMemory_GetPosterNotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.GetPoster(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_UpdatePoster(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	poster := newTestPoster()
	require.NoError(t, m.CreatePoster(ctx, poster))

	completed := models.PosterStatusCompleted
	urls := []string{"data:image/svg+xml;base64,AAA"}
	got, err := m.UpdatePoster(ctx, poster.ID, PosterUpdate{Status: &completed, PosterURLs: urls})
	require.NoError(t, err)
	assert.Equal(t, models.PosterStatusCompleted, got.Status)
	assert.Equal(t, urls, got.PosterURLs)
}

func TestMemory_StatusIsMonotonic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	poster := newTestPoster()
	require.NoError(t, m.CreatePoster(ctx, poster))

	failed := models.PosterStatusFailed
	msg := "render exploded"
	_, err := m.UpdatePoster(ctx, poster.ID, PosterUpdate{Status: &failed, ErrorMsg: &msg})
	require.NoError(t, err)

	// Terminal state cannot revert to processing
	processing := models.PosterStatusProcessing
	_, err = m.UpdatePoster(ctx, poster.ID, PosterUpdate{Status: &processing})
	assert.ErrorIs(t, err, ErrStatusFinal)

	// Nor flip to the other terminal state
	completed := models.PosterStatusCompleted
	_, err = m.UpdatePoster(ctx, poster.ID, PosterUpdate{Status: &completed})
	assert.ErrorIs(t, err, ErrStatusFinal)

	got, err := m.GetPoster(ctx, poster.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PosterStatusFailed, got.Status)
	assert.Equal(t, "render exploded", got.ErrorMsg)
}

func TestMemory_LazyUsageMaterialization(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	usage, err := m.GetUserUsage(ctx, "u-1")
	require.NoError(t, err)
	assert.Nil(t, usage)

	// First mutation materializes the record with default credits
	usage, err = m.DeductCredits(ctx, "u-1", 1)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCredits-1, usage.Credits)
	assert.Equal(t, models.PlanFree, usage.Plan)
}

func TestMemory_DeductCreditsClampsAtZero(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.DeductCredits(ctx, "u-1", 3)
	require.NoError(t, err)

	usage, err := m.DeductCredits(ctx, "u-1", 100)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Credits)

	// And again from zero
	usage, err = m.DeductCredits(ctx, "u-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Credits)
}

func TestMemory_AddCredits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	usage, err := m.AddCredits(ctx, "u-1", 10)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCredits+10, usage.Credits)
}

func TestMemory_SessionCounts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	count, err := m.GetSessionCount(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, m.IncrementSessionCount(ctx, "s-1"))
	require.NoError(t, m.IncrementSessionCount(ctx, "s-1"))

	count, err = m.GetSessionCount(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Other sessions unaffected
	count, err = m.GetSessionCount(ctx, "s-2")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemory_ConcurrentCounterUpdates(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.IncrementSessionCount(ctx, "s-1")
		}()
		go func() {
			defer wg.Done()
			_, _ = m.IncrementPostersCreated(ctx, "u-1")
		}()
	}
	wg.Wait()

	count, err := m.GetSessionCount(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 50, count)

	usage, err := m.GetUserUsage(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 50, usage.PostersCreated)
}

func TestMemory_Reset(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	poster := newTestPoster()
	require.NoError(t, m.CreatePoster(ctx, poster))
	require.NoError(t, m.IncrementSessionCount(ctx, "s-1"))

	require.NoError(t, m.Reset(ctx))

	_, err := m.GetPoster(ctx, poster.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := m.GetSessionCount(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
