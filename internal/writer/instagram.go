package writer

import (
	"context"
	"sync"
	"time"

	"github.com/b9dashboard/harvester/internal/store"
)

// InstagramStore is the subset of store.Store the Instagram writer needs.
type InstagramStore interface {
	UpsertCreators(ctx context.Context, rows []store.InstagramCreator) error
	UpsertReels(ctx context.Context, rows []store.Reel) error
	UpsertInstagramPosts(ctx context.Context, rows []store.InstagramPost) error
}

// InstagramWriter buffers creators/reels/posts. Unlike the Reddit writer,
// no FK ordering is required between these three tables (§4.7 only names
// the Reddit-side ordering), but each table gets the identical
// buffer/retry machinery.
type InstagramWriter struct {
	Creators *TableBuffer[store.InstagramCreator]
	Reels    *TableBuffer[store.Reel]
	Posts    *TableBuffer[store.InstagramPost]

	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
}

// NewInstagramWriter wires an InstagramWriter to its store and config.
func NewInstagramWriter(db InstagramStore, batchSize, maxAttempts int, flushInterval time.Duration) *InstagramWriter {
	return &InstagramWriter{
		Creators:      NewTableBuffer("instagram_creators", batchSize, maxAttempts, db.UpsertCreators),
		Reels:         NewTableBuffer("instagram_reels", batchSize, maxAttempts, db.UpsertReels),
		Posts:         NewTableBuffer("instagram_posts", batchSize, maxAttempts, db.UpsertInstagramPosts),
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
}

// FlushAll flushes every table; order is irrelevant here.
func (w *InstagramWriter) FlushAll(ctx context.Context) {
	w.Creators.Flush(ctx)
	w.Reels.Flush(ctx)
	w.Posts.Flush(ctx)
}

// Start launches the background flush and retry loops.
func (w *InstagramWriter) Start(ctx context.Context) {
	w.wg.Add(2)
	go w.flushLoop(ctx)
	go w.retryLoop(ctx)
}

// Shutdown stops the background loops and flushes what remains.
func (w *InstagramWriter) Shutdown(ctx context.Context) {
	close(w.done)
	w.wg.Wait()
	w.FlushAll(ctx)
}

func (w *InstagramWriter) flushLoop(ctx context.Context) {
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

func (w *InstagramWriter) retryLoop(ctx context.Context) {
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
			w.Creators.RetryPending(ctx)
			w.Reels.RetryPending(ctx)
			w.Posts.RetryPending(ctx)
		}
	}
}

// Totals returns a snapshot of all three tables' stats.
func (w *InstagramWriter) Totals() map[string]Stats {
	return map[string]Stats{
		"instagram_creators": w.Creators.StatsSnapshot(),
		"instagram_reels":    w.Reels.StatsSnapshot(),
		"instagram_posts":    w.Posts.StatsSnapshot(),
	}
}
