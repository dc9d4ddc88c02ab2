// Package supervisor implements C12: the process-level control loop that
// lets an operator start/stop a harvester by flipping a row in
// system_control, rather than killing the OS process, generalized from
// this module's ancestor's pkg/queue worker-pool poll/cancel shape.
package supervisor

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/harvester/internal/store"
)

// Store is the subset of store.Store the supervisor needs.
type Store interface {
	GetSystemControl(ctx context.Context, scriptName string) (*store.SystemControl, error)
	UpdateHeartbeat(ctx context.Context, scriptName string, pid int, status string) error
	SetSystemControlStatus(ctx context.Context, scriptName, status string, lastError *string) error
	GetLatestLogTimestamp(ctx context.Context, source string) (time.Time, bool, error)
}

const (
	statusRunning = "running"
	statusStopped = "stopped"
	statusError   = "error"
)

// Engine is anything the supervisor can start/stop: a harvester's Run
// blocks until its context is cancelled or it gives up.
type Engine interface {
	Run(ctx context.Context) error
}

// Supervisor polls system_control.enabled and starts/stops an Engine in
// response, writing heartbeats while it runs and, for sources that log to
// system_logs, force-restarting a hung run (§4.8).
type Supervisor struct {
	db         Store
	engine     Engine
	scriptName string
	logSource  string // empty disables the hang watchdog (Instagram has none)

	checkInterval time.Duration
	hangThreshold time.Duration
	restartDelay  time.Duration

	cancelRun context.CancelFunc
	runDone   chan struct{}
}

// New builds a Supervisor for one script_name. logSource, when non-empty,
// enables the log-freshness hang watchdog against that system_logs source
// (spec.md §4.8 names this Reddit-only).
func New(db Store, engine Engine, scriptName, logSource string, checkInterval, hangThreshold time.Duration) *Supervisor {
	return &Supervisor{
		db:            db,
		engine:        engine,
		scriptName:    scriptName,
		logSource:     logSource,
		checkInterval: checkInterval,
		hangThreshold: hangThreshold,
		restartDelay:  5 * time.Second,
	}
}

// Run is the supervisor's own loop: poll system_control every
// checkInterval, start the engine when enabled becomes true, stop it when
// enabled becomes false, and watch for a hung run in between. Returns when
// ctx is cancelled, having written a terminal status row first.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopRun(context.Background())
			_ = s.db.SetSystemControlStatus(context.Background(), s.scriptName, statusStopped, nil)
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Supervisor) tick(ctx context.Context) {
	control, err := s.db.GetSystemControl(ctx, s.scriptName)
	if err != nil || control == nil {
		// Fail closed: an unreadable or missing control row means not running.
		log.Error().Err(err).Str("script", s.scriptName).Msg("failed to read system_control")
		if s.runDone != nil {
			s.stopRun(ctx)
		}
		return
	}

	running := s.runDone != nil
	switch {
	case control.Enabled && !running:
		s.startRun(ctx)
	case !control.Enabled && running:
		s.stopRun(ctx)
		_ = s.db.SetSystemControlStatus(ctx, s.scriptName, statusStopped, nil)
	case control.Enabled && running:
		_ = s.db.UpdateHeartbeat(ctx, s.scriptName, os.Getpid(), statusRunning)
		if s.logSource != "" && s.isHung(ctx) {
			log.Warn().Str("script", s.scriptName).Dur("threshold", s.hangThreshold).Msg("no fresh logs, forcing restart")
			s.stopRun(ctx)
			time.Sleep(s.restartDelay)
			s.startRun(ctx)
		}
	}
}

// isHung reports whether the freshest system_logs row for logSource is
// older than hangThreshold — the watchdog's sole signal that a run has
// wedged without crashing (§4.8).
func (s *Supervisor) isHung(ctx context.Context) bool {
	latest, found, err := s.db.GetLatestLogTimestamp(ctx, s.logSource)
	if err != nil || !found {
		return false
	}
	return time.Since(latest) > s.hangThreshold
}

func (s *Supervisor) startRun(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancelRun = cancel
	s.runDone = make(chan struct{})

	go func() {
		defer close(s.runDone)
		err := s.engine.Run(runCtx)
		if err != nil && err != context.Canceled {
			msg := err.Error()
			_ = s.db.SetSystemControlStatus(context.Background(), s.scriptName, statusError, &msg)
			log.Error().Err(err).Str("script", s.scriptName).Msg("engine run exited with error")
		}
	}()

	_ = s.db.UpdateHeartbeat(ctx, s.scriptName, os.Getpid(), statusRunning)
	log.Info().Str("script", s.scriptName).Msg("engine started")
}

func (s *Supervisor) stopRun(ctx context.Context) {
	if s.cancelRun == nil {
		return
	}
	s.cancelRun()
	<-s.runDone
	s.cancelRun = nil
	s.runDone = nil
	log.Info().Str("script", s.scriptName).Msg("engine stopped")
}
