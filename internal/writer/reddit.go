package writer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/b9dashboard/harvester/internal/store"
)

// RedditStore is the subset of store.Store the Reddit writer needs.
type RedditStore interface {
	UpsertSubreddits(ctx context.Context, rows []store.Subreddit) error
	UpsertUsers(ctx context.Context, rows []store.RedditUser) error
	UpsertPosts(ctx context.Context, rows []store.Post) error
}

// RedditWriter buffers subreddits/users/posts and flushes them in the
// FK-safe order subreddits → users → posts (§4.7, §8 invariant 5).
type RedditWriter struct {
	Subreddits *TableBuffer[store.Subreddit]
	Users      *TableBuffer[store.RedditUser]
	Posts      *TableBuffer[store.Post]

	flushInterval time.Duration
	flushing      int32 // guards FlushAll against concurrent double-flush

	done chan struct{}
	wg   sync.WaitGroup
}

// NewRedditWriter wires a RedditWriter to its store and buffering config.
func NewRedditWriter(db RedditStore, batchSize, maxAttempts int, flushInterval time.Duration) *RedditWriter {
	return &RedditWriter{
		Subreddits: NewTableBuffer("reddit_subreddits", batchSize, maxAttempts, db.UpsertSubreddits),
		Users:      NewTableBuffer("reddit_users", batchSize, maxAttempts, db.UpsertUsers),
		Posts:      NewTableBuffer("reddit_posts", batchSize, maxAttempts, db.UpsertPosts),
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
}

// FlushAll flushes subreddits, then users, then posts. Concurrent callers
// while a flush is in progress return immediately without double-flushing.
func (w *RedditWriter) FlushAll(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&w.flushing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&w.flushing, 0)

	w.Subreddits.Flush(ctx)
	w.Users.Flush(ctx)
	w.Posts.Flush(ctx)
}

// Start launches the background flush loop (every flushInterval) and the
// retry-drain loop (every 30 s), per §4.7 and §5.
func (w *RedditWriter) Start(ctx context.Context) {
	w.wg.Add(2)
	go w.flushLoop(ctx)
	go w.retryLoop(ctx)
}

// Shutdown stops the background loops and performs a best-effort final
// flush, per §5's "partial work persisted best-effort via flush_all on
// shutdown".
func (w *RedditWriter) Shutdown(ctx context.Context) {
	close(w.done)
	w.wg.Wait()
	w.FlushAll(ctx)
}

func (w *RedditWriter) flushLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.FlushAll(ctx)
		}
	}
}

func (w *RedditWriter) retryLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.Subreddits.RetryPending(ctx)
			w.Users.RetryPending(ctx)
			w.Posts.RetryPending(ctx)
		}
	}
}

// Totals returns a snapshot of all three tables' stats.
func (w *RedditWriter) Totals() map[string]Stats {
	return map[string]Stats{
		"reddit_subreddits": w.Subreddits.StatsSnapshot(),
		"reddit_users":      w.Users.StatsSnapshot(),
		"reddit_posts":      w.Posts.StatsSnapshot(),
	}
}
