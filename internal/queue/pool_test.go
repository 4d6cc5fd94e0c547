package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/postersnap/postersnap/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu   sync.Mutex
	seen []string
	done chan struct{}
	want int
}

func (r *recordingProcessor) Process(_ context.Context, posterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, posterID)
	if len(r.seen) == r.want {
		close(r.done)
	}
	return nil
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewDefaultLogger()
	require.NoError(t, err)
	return logger
}

func TestPool_DispatchesToProcessor(t *testing.T) {
	proc := &recordingProcessor{done: make(chan struct{}), want: 3}
	pool := NewPool(2, 8, testLogger(t))
	pool.Start(proc)
	defer pool.Stop()

	ctx := context.Background()
	require.NoError(t, pool.Dispatch(ctx, "p-1"))
	require.NoError(t, pool.Dispatch(ctx, "p-2"))
	require.NoError(t, pool.Dispatch(ctx, "p-3"))

	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs not processed in time")
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.ElementsMatch(t, []string{"p-1", "p-2", "p-3"}, proc.seen)
}

func TestPool_DispatchFailsWhenFull(t *testing.T) {
	// Never started, so nothing drains the buffer
	pool := NewPool(1, 1, testLogger(t))

	ctx := context.Background()
	require.NoError(t, pool.Dispatch(ctx, "p-1"))
	assert.Error(t, pool.Dispatch(ctx, "p-2"))
}

func TestPool_StopWaitsForWorkers(t *testing.T) {
	proc := &recordingProcessor{done: make(chan struct{}), want: 1}
	pool := NewPool(1, 4, testLogger(t))
	pool.Start(proc)

	require.NoError(t, pool.Dispatch(context.Background(), "p-1"))
	<-proc.done

	pool.Stop()

	// Stop is idempotent
	pool.Stop()
}
