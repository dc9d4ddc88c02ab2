// Package writer implements C10: per-table buffered upserts with
// size/interval-triggered flush, per-row fallback on batch failure, and a
// bounded delayed-retry queue with exponential backoff, grounded on
// batch_writer.py's BatchWriter and generalized with Go generics since
// both harvesters need the identical buffering/retry machinery over
// different row types.
package writer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// UpsertFunc performs one batch (or single-row, when len==1) upsert call.
type UpsertFunc[T any] func(ctx context.Context, rows []T) error

// Stats tracks per-table counters (§4.7 invariant list).
type Stats struct {
	TotalRecords     int64
	TotalBatches     int64
	SuccessfulWrites int64
	FailedWrites     int64
	LastFlush        time.Time
}

const (
	defaultFailedCap     = 500
	maxRetryBackoff      = 60 * time.Second
	retryBackoffBaseSecs = 10
)

// TableBuffer buffers rows destined for one table/upsert call. Safe for
// concurrent Add calls; Flush and the retry drain run outside the
// enqueue lock so a slow upsert never blocks producers (§4.7 invariant:
// "never blocks a producer longer than a lock acquisition").
//
// The failed-records retry tracks a single attempt counter and backoff
// clock per table, not per row — mirroring batch_writer.py's
// _retry_attempts[table_name]/_failed_records[table_name]: a retry
// attempts the whole queue as one batch, and either clears it entirely
// (success, or attempts exhausted) or leaves it entirely for the next
// backoff window.
type TableBuffer[T any] struct {
	name        string
	batchSize   int
	maxAttempts int
	upsert      UpsertFunc[T]

	mu     sync.Mutex
	buffer []T

	failedMu      sync.Mutex
	failed        []T
	failedCap     int
	retryAttempts int
	nextRetryAt   time.Time

	statsMu sync.Mutex
	stats   Stats
}

// NewTableBuffer builds a buffer for one table.
func NewTableBuffer[T any](name string, batchSize, maxAttempts int, upsert UpsertFunc[T]) *TableBuffer[T] {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &TableBuffer[T]{
		name:        name,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		upsert:      upsert,
		failedCap:   defaultFailedCap,
	}
}

// Add enqueues one row. If the buffer reaches batch_size, a flush of this
// table only is triggered after releasing the enqueue lock.
func (b *TableBuffer[T]) Add(ctx context.Context, row T) {
	b.mu.Lock()
	b.buffer = append(b.buffer, row)
	shouldFlush := len(b.buffer) >= b.batchSize
	b.mu.Unlock()

	b.statsMu.Lock()
	b.stats.TotalRecords++
	b.statsMu.Unlock()

	if shouldFlush {
		b.Flush(ctx)
	}
}

// Flush drains the current buffer and attempts one batch upsert. On
// failure it retries row-by-row; rows that still fail join the bounded
// failed_records queue.
func (b *TableBuffer[T]) Flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.buffer
	b.buffer = nil
	b.mu.Unlock()

	b.statsMu.Lock()
	b.stats.TotalBatches++
	b.stats.LastFlush = time.Now()
	b.statsMu.Unlock()

	if err := b.upsert(ctx, batch); err != nil {
		log.Warn().Err(err).Str("table", b.name).Int("rows", len(batch)).Msg("batch upsert failed, retrying per-row")
		b.flushIndividually(ctx, batch)
		return
	}

	b.statsMu.Lock()
	b.stats.SuccessfulWrites += int64(len(batch))
	b.statsMu.Unlock()
}

func (b *TableBuffer[T]) flushIndividually(ctx context.Context, rows []T) {
	for _, row := range rows {
		if err := b.upsert(ctx, []T{row}); err != nil {
			b.enqueueFailed(row)
			b.statsMu.Lock()
			b.stats.FailedWrites++
			b.statsMu.Unlock()
			continue
		}
		b.statsMu.Lock()
		b.stats.SuccessfulWrites++
		b.statsMu.Unlock()
	}
}

func (b *TableBuffer[T]) enqueueFailed(row T) {
	b.failedMu.Lock()
	defer b.failedMu.Unlock()

	b.failed = append(b.failed, row)
	if len(b.failed) > b.failedCap {
		dropped := len(b.failed) - b.failedCap
		b.failed = b.failed[dropped:]
		log.Warn().Str("table", b.name).Int("dropped", dropped).Msg("failed_records queue over capacity, evicted oldest")
	}
}

// RetryPending attempts the entire failed_records queue for this table as
// one batch, gated by a table-level backoff clock. On full success the
// queue is cleared and the attempt counter reset. On failure the attempt
// counter increments and the whole queue is retried again on the next
// backoff window; once retryAttempts reaches maxAttempts the entire queue
// is dropped and the counter reset, matching batch_writer.py's
// retry_failed_records (a per-table _retry_attempts counter, not a
// per-record one — the queue is an atomic unit, never partially evicted).
func (b *TableBuffer[T]) RetryPending(ctx context.Context) {
	b.failedMu.Lock()
	if len(b.failed) == 0 {
		b.failedMu.Unlock()
		return
	}
	now := time.Now()
	if now.Before(b.nextRetryAt) {
		b.failedMu.Unlock()
		return
	}
	if b.retryAttempts >= b.maxAttempts {
		dropped := len(b.failed)
		b.failed = nil
		b.retryAttempts = 0
		b.nextRetryAt = time.Time{}
		b.failedMu.Unlock()
		log.Error().Str("table", b.name).Int("dropped", dropped).Msg("failed_records queue reached max retry attempts, clearing")
		b.statsMu.Lock()
		b.stats.FailedWrites += int64(dropped)
		b.statsMu.Unlock()
		return
	}
	rows := b.failed
	attempt := b.retryAttempts
	b.failedMu.Unlock()

	log.Info().Str("table", b.name).Int("rows", len(rows)).Int("attempt", attempt+1).Int("max_attempts", b.maxAttempts).Msg("retrying failed_records queue")

	if err := b.upsert(ctx, rows); err != nil {
		b.failedMu.Lock()
		b.retryAttempts++
		backoff := time.Duration(retryBackoffBaseSecs) * time.Second * time.Duration(1<<b.retryAttempts)
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
		b.nextRetryAt = time.Now().Add(backoff)
		b.failedMu.Unlock()
		log.Warn().Err(err).Str("table", b.name).Int("rows", len(rows)).Msg("failed_records retry still failing")
		return
	}

	b.failedMu.Lock()
	b.failed = nil
	b.retryAttempts = 0
	b.nextRetryAt = time.Time{}
	b.failedMu.Unlock()

	b.statsMu.Lock()
	b.stats.SuccessfulWrites += int64(len(rows))
	b.statsMu.Unlock()
	log.Info().Str("table", b.name).Int("rows", len(rows)).Msg("failed_records queue recovered")
}

// FailedCount reports how many rows currently sit in failed_records
// (used by the writer tests).
func (b *TableBuffer[T]) FailedCount() int {
	b.failedMu.Lock()
	defer b.failedMu.Unlock()
	return len(b.failed)
}

// BufferedCount reports how many rows are currently buffered.
func (b *TableBuffer[T]) BufferedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// StatsSnapshot returns a snapshot of the table's counters.
func (b *TableBuffer[T]) StatsSnapshot() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}
