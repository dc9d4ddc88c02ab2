package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/b9dashboard/harvester/internal/store"
)

// GetSystemControl reads the one control row for a script. Per spec.md §7,
// the caller (supervisor) treats a read failure as fail-closed (not
// running), so this only ever returns the error to let it do that. A
// missing row returns (nil, nil), which the supervisor treats the same way.
func (p *Postgres) GetSystemControl(ctx context.Context, scriptName string) (*store.SystemControl, error) {
	var (
		sc          store.SystemControl
		pid         sql.NullInt64
		heartbeat   sql.NullTime
		startedAt   sql.NullTime
		stoppedAt   sql.NullTime
		lastError   sql.NullString
		configBytes []byte
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT script_name, enabled, status, pid, last_heartbeat, started_at, stopped_at, last_error, config
		FROM system_control
		WHERE script_name = $1
	`, scriptName).Scan(&sc.ScriptName, &sc.Enabled, &sc.Status, &pid, &heartbeat, &startedAt, &stoppedAt, &lastError, &configBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get system control: %w", err)
	}

	if pid.Valid {
		v := int(pid.Int64)
		sc.PID = &v
	}
	if heartbeat.Valid {
		sc.LastHeartbeat = &heartbeat.Time
	}
	if startedAt.Valid {
		sc.StartedAt = &startedAt.Time
	}
	if stoppedAt.Valid {
		sc.StoppedAt = &stoppedAt.Time
	}
	if lastError.Valid {
		sc.LastError = &lastError.String
	}
	if len(configBytes) > 0 {
		_ = json.Unmarshal(configBytes, &sc.Config)
	}
	return &sc, nil
}

// UpdateHeartbeat implements C12 step 4: last_heartbeat=now, pid, status.
func (p *Postgres) UpdateHeartbeat(ctx context.Context, scriptName string, pid int, status string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE system_control
		SET last_heartbeat = $1, pid = $2, status = $3
		WHERE script_name = $4
	`, time.Now().UTC(), pid, status, scriptName)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// SetSystemControlStatus records a terminal or error status, matching the
// controller's shutdown and fatal-startup-failure paths (§4.8, §7).
func (p *Postgres) SetSystemControlStatus(ctx context.Context, scriptName, status string, lastError *string) error {
	now := time.Now().UTC()
	var err error
	if status == "stopped" {
		_, err = p.db.ExecContext(ctx, `
			UPDATE system_control SET status = $1, pid = NULL, stopped_at = $2 WHERE script_name = $3
		`, status, now, scriptName)
	} else {
		_, err = p.db.ExecContext(ctx, `
			UPDATE system_control SET status = $1, last_error = $2, stopped_at = $3 WHERE script_name = $4
		`, status, lastError, now, scriptName)
	}
	if err != nil {
		return fmt.Errorf("set system control status: %w", err)
	}
	return nil
}
