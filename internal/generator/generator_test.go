package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	configpkg "github.com/postersnap/postersnap/internal/config"
	"github.com/postersnap/postersnap/internal/content"
	"github.com/postersnap/postersnap/internal/logging"
	"github.com/postersnap/postersnap/internal/quota"
	"github.com/postersnap/postersnap/internal/render"
	"github.com/postersnap/postersnap/internal/store"
	"github.com/postersnap/postersnap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureDispatcher records dispatched jobs so tests drive Process directly.
type captureDispatcher struct {
	ids []string
	err error
}

func (d *captureDispatcher) Dispatch(_ context.Context, posterID string) error {
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, posterID)
	return nil
}

type stubExtractor struct {
	meta *models.Metadata
	err  error
}

func (s *stubExtractor) Extract(context.Context, string) (*models.Metadata, error) {
	return s.meta, s.err
}

type failingRenderer struct{}

func (failingRenderer) RenderPage(context.Context, string, int, *models.PosterContent, models.PosterStyle, models.OutputFormat) (string, error) {
	return "", errors.New("canvas unavailable")
}

type testEnv struct {
	gen        *Generator
	store      *store.Memory
	dispatcher *captureDispatcher
}

func newTestEnv(t *testing.T, mutate func(*testEnv)) *testEnv {
	t.Helper()

	logger, err := logging.NewDefaultLogger()
	require.NoError(t, err)

	env := &testEnv{
		store:      store.NewMemory(),
		dispatcher: &captureDispatcher{},
	}

	synth := content.New(configpkg.OpenAIConfig{Model: "gpt-4o"}, logger)
	renderer := render.New(nil, logger)
	checker := quota.NewChecker(env.store, quota.NewEmailAllowlist([]string{"admin@example.com"}), 1, 50, 1)

	env.gen = New(env.store, checker, synth, renderer, &stubExtractor{}, env.dispatcher, logger,
		Options{JobTimeout: 30 * time.Second, MaxParallelPages: 3},
		rand.New(rand.NewSource(42)),
	)

	if mutate != nil {
		mutate(env)
	}
	return env
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		SessionID:    "s-1",
		InputMode:    models.InputKeyword,
		InputValue:   "street photography",
		Style:        models.StyleNarrative,
		ContentType:  models.ContentInformative,
		OutputFormat: models.FormatPortrait,
		MinPages:     1,
		MaxPages:     3,
	}
}

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"missing session", func(r *SubmitRequest) { r.SessionID = "" }},
		{"missing input", func(r *SubmitRequest) { r.InputValue = "" }},
		{"bad input mode", func(r *SubmitRequest) { r.InputMode = "telepathy" }},
		{"bad style", func(r *SubmitRequest) { r.Style = "cubist" }},
		{"bad content type", func(r *SubmitRequest) { r.ContentType = "gossip" }},
		{"bad format", func(r *SubmitRequest) { r.OutputFormat = "billboard" }},
		{"pages below bound", func(r *SubmitRequest) { r.MinPages = 0 }},
		{"pages above bound", func(r *SubmitRequest) { r.MaxPages = 6 }},
		{"inverted page range", func(r *SubmitRequest) { r.MinPages = 3; r.MaxPages = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := env.gen.Submit(ctx, nil, req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSubmit_CreatesAndDispatches(t *testing.T) {
	env := newTestEnv(t, nil)

	poster, err := env.gen.Submit(context.Background(), nil, validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, poster.ID)
	assert.Equal(t, models.PosterStatusProcessing, poster.Status)
	assert.Equal(t, []string{poster.ID}, env.dispatcher.ids)

	stored, err := env.store.GetPoster(context.Background(), poster.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PosterStatusProcessing, stored.Status)
}

func TestSubmit_DispatchFailureFailsJob(t *testing.T) {
	env := newTestEnv(t, func(e *testEnv) {
		e.dispatcher.err = errors.New("broker down")
	})

	_, err := env.gen.Submit(context.Background(), nil, validRequest())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestSubmit_FreeLimitOnSecondAnonymousRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	poster, err := env.gen.Submit(ctx, nil, validRequest())
	require.NoError(t, err)
	require.NoError(t, env.gen.Process(ctx, poster.ID))

	_, err = env.gen.Submit(ctx, nil, validRequest())
	var qerr *quota.Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, quota.CodeFreeLimitReached, qerr.Code)
}

func TestSubmit_InsufficientCredits(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.store.DeductCredits(ctx, "u-1", models.DefaultCredits)
	require.NoError(t, err)

	identity := &models.Identity{ID: "u-1", Email: "u1@example.com"}
	_, err = env.gen.Submit(ctx, identity, validRequest())

	var qerr *quota.Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, quota.CodeInsufficientCredits, qerr.Code)
	assert.Equal(t, 1, qerr.CreditsRequired)
	assert.Equal(t, 0, qerr.CreditsAvailable)
}

func TestProcess_ProducesPagesWithinRange(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	req := validRequest()
	req.MinPages = 2
	req.MaxPages = 4

	poster, err := env.gen.Submit(ctx, nil, req)
	require.NoError(t, err)
	require.NoError(t, env.gen.Process(ctx, poster.ID))

	done, err := env.store.GetPoster(ctx, poster.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PosterStatusCompleted, done.Status)
	assert.GreaterOrEqual(t, len(done.PosterURLs), 2)
	assert.LessOrEqual(t, len(done.PosterURLs), 4)
	for _, url := range done.PosterURLs {
		assert.True(t, strings.HasPrefix(url, "data:image/svg+xml;base64,"))
	}
}

func TestProcess_ArtifactsFollowPageOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	req := validRequest()
	req.MinPages = 3
	req.MaxPages = 3

	poster, err := env.gen.Submit(ctx, nil, req)
	require.NoError(t, err)
	require.NoError(t, env.gen.Process(ctx, poster.ID))

	done, err := env.store.GetPoster(ctx, poster.ID)
	require.NoError(t, err)
	require.Len(t, done.PosterURLs, 3)

	// Later pages carry their variation suffix, so order is observable
	pages := make([]string, 3)
	for i, url := range done.PosterURLs {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/svg+xml;base64,"))
		require.NoError(t, err)
		pages[i] = string(raw)
	}
	assert.Contains(t, pages[1], "Advanced Guide")
	assert.Contains(t, pages[2], "Expert Tips")
}

func TestProcess_SettlesCreditsOnSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	req := validRequest()
	req.MinPages = 2
	req.MaxPages = 2

	identity := &models.Identity{ID: "u-1", Email: "u1@example.com"}
	poster, err := env.gen.Submit(ctx, identity, req)
	require.NoError(t, err)
	require.NoError(t, env.gen.Process(ctx, poster.ID))

	usage, err := env.store.GetUserUsage(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCredits-2, usage.Credits)
	assert.Equal(t, 1, usage.PostersCreated)
}

func TestProcess_FailureLeavesUsageUntouched(t *testing.T) {
	env := newTestEnv(t, nil)
	env.gen.renderer = failingRenderer{}
	ctx := context.Background()

	identity := &models.Identity{ID: "u-1", Email: "u1@example.com"}
	poster, err := env.gen.Submit(ctx, identity, validRequest())
	require.NoError(t, err)
	require.NoError(t, env.gen.Process(ctx, poster.ID))

	done, err := env.store.GetPoster(ctx, poster.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PosterStatusFailed, done.Status)
	assert.Contains(t, done.ErrorMsg, "render")
	assert.Empty(t, done.PosterURLs)

	// No settlement on failure
	usage, err := env.store.GetUserUsage(ctx, "u-1")
	require.NoError(t, err)
	assert.Nil(t, usage)
}

func TestProcess_RedeliveryIsNoop(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	poster, err := env.gen.Submit(ctx, nil, validRequest())
	require.NoError(t, err)
	require.NoError(t, env.gen.Process(ctx, poster.ID))

	first, err := env.store.GetPoster(ctx, poster.ID)
	require.NoError(t, err)

	require.NoError(t, env.gen.Process(ctx, poster.ID))

	second, err := env.store.GetPoster(ctx, poster.ID)
	require.NoError(t, err)
	assert.Equal(t, first.PosterURLs, second.PosterURLs)

	// Free limit settled exactly once
	count, err := env.store.GetSessionCount(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcess_UnknownPoster(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.gen.Process(context.Background(), "missing")
	assert.Error(t, err)
}

func TestProcess_URLModeSurvivesExtractionFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.gen.extractor = &stubExtractor{err: fmt.Errorf("fetch blocked")}
	ctx := context.Background()

	req := validRequest()
	req.InputMode = models.InputURL
	req.InputValue = "https://example.com/article"

	poster, err := env.gen.Submit(ctx, nil, req)
	require.NoError(t, err)
	require.NoError(t, env.gen.Process(ctx, poster.ID))

	done, err := env.store.GetPoster(ctx, poster.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PosterStatusCompleted, done.Status)
	assert.NotEmpty(t, done.PosterURLs)
}
