package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b9dashboard/harvester/internal/store"
)

type fakeSupervisorStore struct {
	mu            sync.Mutex
	enabled       bool
	heartbeats    int
	lastStatus    string
	latestLog     time.Time
	hasLatestLog  bool
}

func (s *fakeSupervisorStore) GetSystemControl(ctx context.Context, scriptName string) (*store.SystemControl, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &store.SystemControl{ScriptName: scriptName, Enabled: s.enabled}, nil
}

func (s *fakeSupervisorStore) UpdateHeartbeat(ctx context.Context, scriptName string, pid int, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats++
	return nil
}

func (s *fakeSupervisorStore) SetSystemControlStatus(ctx context.Context, scriptName, status string, lastError *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStatus = status
	return nil
}

func (s *fakeSupervisorStore) GetLatestLogTimestamp(ctx context.Context, source string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestLog, s.hasLatestLog, nil
}

func (s *fakeSupervisorStore) setEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = v
}

type countingEngine struct {
	starts int32
	block  chan struct{}
}

func (e *countingEngine) Run(ctx context.Context) error {
	atomic.AddInt32(&e.starts, 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.block:
		return nil
	}
}

func TestSupervisorStartsEngineWhenEnabled(t *testing.T) {
	db := &fakeSupervisorStore{enabled: true}
	engine := &countingEngine{block: make(chan struct{})}
	sv := New(db, engine, "test-script", "", 10*time.Millisecond, time.Hour)

	sv.tick(context.Background())
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&engine.starts))
	close(engine.block)
}

func TestSupervisorStopsEngineWhenDisabled(t *testing.T) {
	db := &fakeSupervisorStore{enabled: true}
	engine := &countingEngine{block: make(chan struct{})}
	sv := New(db, engine, "test-script", "", 10*time.Millisecond, time.Hour)

	sv.tick(context.Background())
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&engine.starts))

	db.setEnabled(false)
	sv.tick(context.Background())

	assert.Equal(t, statusStopped, db.lastStatus)
	assert.Nil(t, sv.cancelRun)
}

func TestSupervisorHangWatchdogForcesRestart(t *testing.T) {
	db := &fakeSupervisorStore{
		enabled:      true,
		latestLog:    time.Now().Add(-2 * time.Hour),
		hasLatestLog: true,
	}
	engine := &countingEngine{block: make(chan struct{})}
	sv := New(db, engine, "test-script", "reddit_scraper", 10*time.Millisecond, time.Minute)
	sv.restartDelay = 10 * time.Millisecond

	sv.tick(context.Background())
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&engine.starts))

	sv.tick(context.Background())
	time.Sleep(60 * time.Millisecond)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&engine.starts), int32(2))
}

func TestIsHungFalseWhenNoLogsYet(t *testing.T) {
	db := &fakeSupervisorStore{hasLatestLog: false}
	sv := New(db, nil, "test-script", "reddit_scraper", time.Second, time.Minute)
	assert.False(t, sv.isHung(context.Background()))
}

func TestIsHungFalseWhenFresh(t *testing.T) {
	db := &fakeSupervisorStore{latestLog: time.Now(), hasLatestLog: true}
	sv := New(db, nil, "test-script", "reddit_scraper", time.Second, time.Minute)
	assert.False(t, sv.isHung(context.Background()))
}
