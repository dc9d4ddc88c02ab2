package postgres

import (
	"context"
	"fmt"

	"github.com/b9dashboard/harvester/internal/store"
)

// LoadActiveProxies returns every is_active proxy ordered by priority desc,
// matching §4.1's Load() contract.
func (p *Postgres) LoadActiveProxies(ctx context.Context) ([]store.Proxy, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, service, proxy_url, username, password, display_name,
		       priority, max_threads, is_active, success_count, error_count
		FROM reddit_proxies
		WHERE is_active = true
		ORDER BY priority DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("load active proxies: %w", err)
	}
	defer rows.Close()

	var out []store.Proxy
	for rows.Next() {
		var pr store.Proxy
		if err := rows.Scan(&pr.ID, &pr.Service, &pr.URL, &pr.Username, &pr.Password,
			&pr.DisplayName, &pr.Priority, &pr.MaxThreads, &pr.IsActive,
			&pr.SuccessCount, &pr.ErrorCount); err != nil {
			return nil, fmt.Errorf("scan proxy row: %w", err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// UpdateProxyStats increments success_count or error_count for one proxy.
// Failures here are the caller's concern to swallow (§4.1: best-effort
// telemetry) — this method still returns the error so the caller can decide.
func (p *Postgres) UpdateProxyStats(ctx context.Context, proxyID int64, success bool) error {
	column := "error_count"
	if success {
		column = "success_count"
	}
	query := fmt.Sprintf(`UPDATE reddit_proxies SET %s = %s + 1 WHERE id = $1`, column, column)
	_, err := p.db.ExecContext(ctx, query, proxyID)
	return err
}
