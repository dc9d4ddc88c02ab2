package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/b9dashboard/harvester/internal/logging"
)

// InsertSystemLogs appends a batch of log rows (C13's store side). A
// failure inserting one entry in the batch does not block the others.
func (p *Postgres) InsertSystemLogs(ctx context.Context, entries []logging.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := p.db.PrepareContext(ctx, `
		INSERT INTO system_logs (timestamp, source, script_name, level, message, context, user_id, duration_ms, items_processed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`)
	if err != nil {
		return fmt.Errorf("prepare log insert: %w", err)
	}
	defer stmt.Close()

	var firstErr error
	for _, e := range entries {
		ctxBytes, marshalErr := json.Marshal(e.Context)
		if marshalErr != nil {
			ctxBytes = []byte("{}")
		}
		var userID any
		if e.UserID != "" {
			userID = e.UserID
		}
		if _, err := stmt.ExecContext(ctx, e.Timestamp, e.Source, e.ScriptName, string(e.Level),
			e.Message, ctxBytes, userID, e.DurationMS, e.ItemsProcessed); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("insert log entry: %w", err)
		}
	}
	return firstErr
}

// GetLatestLogTimestamp backs the supervisor's log-freshness watchdog
// (§4.8): the freshest system_logs row timestamp for a source.
func (p *Postgres) GetLatestLogTimestamp(ctx context.Context, source string) (time.Time, bool, error) {
	var ts sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT timestamp FROM system_logs WHERE source = $1 ORDER BY timestamp DESC LIMIT 1
	`, source).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get latest log timestamp: %w", err)
	}
	return ts.Time, ts.Valid, nil
}
