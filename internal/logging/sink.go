package logging

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Entry is one row of the append-only system_logs table (spec.md §3).
type Entry struct {
	Timestamp      time.Time
	Source         string
	ScriptName     string
	Level          Level
	Message        string
	Context        map[string]any
	UserID         string
	DurationMS     *int64
	ItemsProcessed *int
}

// Store is the subset of the Store contract (§6.1) the sink needs: an
// append-only insert of system_logs rows.
type Store interface {
	InsertSystemLogs(ctx context.Context, entries []Entry) error
}

// Sink is C13: every call is mirrored to stdout (zerolog) and queued for a
// batched insert into system_logs. sync=true callers bypass the queue and
// insert immediately, matching spec.md's "exceptions/critical failures
// bypass the buffer" rule.
type Sink struct {
	store         Store
	source        string
	scriptName    string
	batchSize     int
	batchInterval time.Duration

	queue chan Entry
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewSink constructs a Sink for one script/source pair. queueSize bounds the
// channel; an overflowing queue falls back to a synchronous insert so a log
// entry is never silently dropped (spec.md §5, "Log queue: bounded; overflow
// inserts synchronously").
func NewSink(store Store, source, scriptName string, batchSize int, batchInterval time.Duration, queueSize int) *Sink {
	if batchSize <= 0 {
		batchSize = 50
	}
	if batchInterval <= 0 {
		batchInterval = 5 * time.Second
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	s := &Sink{
		store:         store,
		source:        source,
		scriptName:    scriptName,
		batchSize:     batchSize,
		batchInterval: batchInterval,
		queue:         make(chan Entry, queueSize),
		done:          make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Log mirrors an entry to stdout and enqueues it for batched persistence. If
// sync is true, it bypasses the queue and inserts immediately.
func (s *Sink) Log(ctx context.Context, level Level, message string, fields map[string]any, sync bool) {
	entry := Entry{
		Timestamp:  time.Now().UTC(),
		Source:     s.source,
		ScriptName: s.scriptName,
		Level:      level,
		Message:    message,
		Context:    fields,
	}
	s.mirrorToStdout(entry)

	if sync {
		if err := s.store.InsertSystemLogs(ctx, []Entry{entry}); err != nil {
			log.Error().Err(err).Msg("synchronous system_logs insert failed, entry kept in stdout only")
		}
		return
	}

	select {
	case s.queue <- entry:
	default:
		// Queue full: insert synchronously rather than drop the entry.
		if err := s.store.InsertSystemLogs(context.Background(), []Entry{entry}); err != nil {
			log.Error().Err(err).Msg("overflow system_logs insert failed, entry kept in stdout only")
		}
	}
}

func (s *Sink) mirrorToStdout(e Entry) {
	le := log.With().Str("source", e.Source).Str("script", e.ScriptName).Fields(e.Context).Logger()
	switch e.Level {
	case LevelDebug:
		le.Debug().Msg(e.Message)
	case LevelWarning:
		le.Warn().Msg(e.Message)
	case LevelError:
		le.Error().Msg(e.Message)
	case LevelCritical:
		le.Error().Bool("critical", true).Msg(e.Message)
	default:
		le.Info().Msg(e.Message)
	}
}

// run is the sink's single background worker: it batches up to batchSize
// entries or waits up to batchInterval, whichever comes first.
func (s *Sink) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.batchInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, s.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.store.InsertSystemLogs(context.Background(), batch); err != nil {
			log.Error().Err(err).Int("count", len(batch)).Msg("batched system_logs insert failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-s.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			// Drain remaining queued entries before exiting.
			for {
				select {
				case e := <-s.queue:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Shutdown drains the queue and stops the background worker.
func (s *Sink) Shutdown() {
	close(s.done)
	s.wg.Wait()
}
