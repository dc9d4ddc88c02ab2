package writer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableBufferFlushesOnBatchSize(t *testing.T) {
	var mu sync.Mutex
	var written []int
	upsert := func(ctx context.Context, rows []int) error {
		mu.Lock()
		defer mu.Unlock()
		written = append(written, rows...)
		return nil
	}

	buf := NewTableBuffer("ints", 3, 5, upsert)
	ctx := context.Background()
	buf.Add(ctx, 1)
	buf.Add(ctx, 2)
	assert.Equal(t, 2, buf.BufferedCount())
	buf.Add(ctx, 3)

	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, written)
	mu.Unlock()
	assert.Equal(t, 0, buf.BufferedCount())
}

func TestTableBufferFallsBackToPerRowOnBatchFailure(t *testing.T) {
	var succeeded []int
	upsert := func(ctx context.Context, rows []int) error {
		if len(rows) > 1 {
			return fmt.Errorf("batch upsert failed")
		}
		if rows[0] == 2 {
			return fmt.Errorf("row 2 always fails")
		}
		succeeded = append(succeeded, rows[0])
		return nil
	}

	buf := NewTableBuffer("ints", 3, 5, upsert)
	ctx := context.Background()
	buf.Add(ctx, 1)
	buf.Add(ctx, 2)
	buf.Add(ctx, 3)

	assert.ElementsMatch(t, []int{1, 3}, succeeded)
	assert.Equal(t, 1, buf.FailedCount())
}

func TestTableBufferFailedQueueEvictsOldest(t *testing.T) {
	upsert := func(ctx context.Context, rows []int) error {
		return fmt.Errorf("always fails")
	}
	buf := NewTableBuffer("ints", 1, 5, upsert)
	buf.failedCap = 2
	ctx := context.Background()

	buf.Add(ctx, 1)
	buf.Add(ctx, 2)
	buf.Add(ctx, 3)

	assert.Equal(t, 2, buf.FailedCount())
}

func TestTableBufferRetryPendingClearsQueueOnFullSuccess(t *testing.T) {
	attempts := 0
	upsert := func(ctx context.Context, rows []int) error {
		if len(rows) > 1 {
			return fmt.Errorf("batch upsert failed")
		}
		attempts++
		return fmt.Errorf("row always fails individually")
	}
	buf := NewTableBuffer("ints", 1, 5, upsert)
	ctx := context.Background()
	buf.Add(ctx, 1)
	buf.Add(ctx, 2)
	require.Equal(t, 2, buf.FailedCount())
	// With batch size 1 each Add makes a one-row batch call and then a
	// per-row retry of the same row: two calls per row.
	require.Equal(t, 4, attempts)

	buf.nextRetryAt = time.Time{}
	buf.upsert = func(ctx context.Context, rows []int) error {
		return nil
	}
	buf.RetryPending(ctx)

	assert.Equal(t, 0, buf.FailedCount())
	assert.Equal(t, 0, buf.retryAttempts)
}

func TestTableBufferRetryPendingDropsWholeQueueAfterMaxAttempts(t *testing.T) {
	upsert := func(ctx context.Context, rows []int) error {
		return fmt.Errorf("always fails")
	}
	buf := NewTableBuffer("ints", 1, 2, upsert)
	ctx := context.Background()
	buf.Add(ctx, 1)
	buf.Add(ctx, 2)
	require.Equal(t, 2, buf.FailedCount())

	buf.nextRetryAt = time.Time{}
	buf.RetryPending(ctx) // attempt 0 -> fails, retryAttempts=1
	require.Equal(t, 2, buf.FailedCount())
	require.Equal(t, 1, buf.retryAttempts)

	buf.nextRetryAt = time.Time{}
	buf.RetryPending(ctx) // attempt 1 -> fails, retryAttempts=2 == maxAttempts

	buf.nextRetryAt = time.Time{}
	buf.RetryPending(ctx) // retryAttempts >= maxAttempts -> whole queue dropped

	assert.Equal(t, 0, buf.FailedCount())
	assert.Equal(t, 0, buf.retryAttempts)
}

func TestRedditWriterFlushesInFKOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	subStore := &recordingRedditStore{order: &order, mu: &mu}
	w := NewRedditWriter(subStore, 10, 5, 0)

	ctx := context.Background()
	w.Subreddits.Add(ctx, subStore.subredditRow())
	w.Users.Add(ctx, subStore.userRow())
	w.Posts.Add(ctx, subStore.postRow())

	w.FlushAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3)
	assert.Equal(t, []string{"subreddits", "users", "posts"}, order)
}

func TestRedditWriterFlushAllIgnoresConcurrentCaller(t *testing.T) {
	var mu sync.Mutex
	var order []string
	subStore := &recordingRedditStore{order: &order, mu: &mu}
	w := NewRedditWriter(subStore, 1, 5, 0)
	w.flushing = 1 // simulate an in-progress flush

	w.FlushAll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, order)
}
