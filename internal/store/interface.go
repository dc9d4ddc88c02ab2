package store

import (
	"context"
	"time"

	"github.com/b9dashboard/harvester/internal/logging"
)

// Store is the persistence contract of spec.md §6.1. The Postgres
// implementation in store/postgres is the only backend shipped, but any
// type honoring this interface (including a test fake) can stand in for it.
type Store interface {
	// Proxies (C1).
	LoadActiveProxies(ctx context.Context) ([]Proxy, error)
	UpdateProxyStats(ctx context.Context, proxyID int64, success bool) error

	// Reddit (C7).
	GetSubredditNamesByReview(ctx context.Context, review Review) ([]string, error)
	GetSubredditNamesWithNullReview(ctx context.Context) ([]string, error)
	GetAllSubredditNames(ctx context.Context) ([]string, error)
	GetSubredditMetadata(ctx context.Context, names []string) (map[string]SubredditMetadata, error)
	UpsertSubreddits(ctx context.Context, rows []Subreddit) error
	UpsertUsers(ctx context.Context, rows []RedditUser) error
	UpsertPosts(ctx context.Context, rows []Post) error

	// Instagram (C8).
	GetApprovedCreators(ctx context.Context) ([]InstagramCreator, error)
	GetCreatorContentCounts(ctx context.Context, creatorID string) (reels int, posts int, err error)
	GetExistingMediaURL(ctx context.Context, table, mediaPK string) (url string, found bool, err error)
	GetFollowerHistorySince(ctx context.Context, creatorID string, since time.Time) ([]FollowerHistory, error)
	InsertFollowerHistory(ctx context.Context, row FollowerHistory) error
	UpsertCreators(ctx context.Context, rows []InstagramCreator) error
	UpsertReels(ctx context.Context, rows []Reel) error
	UpsertInstagramPosts(ctx context.Context, rows []InstagramPost) error

	// Process supervisor (C12).
	GetSystemControl(ctx context.Context, scriptName string) (*SystemControl, error)
	UpdateHeartbeat(ctx context.Context, scriptName string, pid int, status string) error
	SetSystemControlStatus(ctx context.Context, scriptName, status string, lastError *string) error

	// Logging sink (C13) — satisfies logging.Store structurally.
	InsertSystemLogs(ctx context.Context, entries []logging.Entry) error
	GetLatestLogTimestamp(ctx context.Context, source string) (time.Time, bool, error)
}
