// Package cache implements C6: the Reddit engine's in-memory, per-cycle and
// cross-cycle caches that let discovery filtering run with zero database
// round-trips, grounded on reddit_scraper.py's session-level set attributes
// and the teacher's preference for small focused structs over a shared
// global dict.
package cache

import (
	"sync"
	"time"

	"github.com/b9dashboard/harvester/internal/store"
)

// StringSet is a lock-guarded set of names, used for every skip/membership
// cache in §4.4.2. All mutation happens under lock; Contains is safe for
// concurrent readers.
type StringSet struct {
	mu   sync.RWMutex
	data map[string]struct{}
}

// NewStringSet builds an empty set, optionally pre-sized.
func NewStringSet(capacity int) *StringSet {
	return &StringSet{data: make(map[string]struct{}, capacity)}
}

// Add inserts name into the set.
func (s *StringSet) Add(name string) {
	s.mu.Lock()
	s.data[name] = struct{}{}
	s.mu.Unlock()
}

// AddAll inserts every name in names.
func (s *StringSet) AddAll(names []string) {
	s.mu.Lock()
	for _, n := range names {
		s.data[n] = struct{}{}
	}
	s.mu.Unlock()
}

// Contains reports whether name is present.
func (s *StringSet) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[name]
	return ok
}

// Len reports set size.
func (s *StringSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Reset replaces the set's contents wholesale, used to reload
// all_subreddits_cache each cycle.
func (s *StringSet) Reset(names []string) {
	fresh := make(map[string]struct{}, len(names))
	for _, n := range names {
		fresh[n] = struct{}{}
	}
	s.mu.Lock()
	s.data = fresh
	s.mu.Unlock()
}

// ReviewCaches bundles the six per-review-status name sets from §4.4.2.
type ReviewCaches struct {
	NonRelated *StringSet
	UserFeed   *StringSet
	Banned     *StringSet
	Ok         *StringSet
	NoSeller   *StringSet
	NullReview *StringSet
}

// NewReviewCaches builds an empty bundle.
func NewReviewCaches() *ReviewCaches {
	return &ReviewCaches{
		NonRelated: NewStringSet(0),
		UserFeed:   NewStringSet(0),
		Banned:     NewStringSet(0),
		Ok:         NewStringSet(0),
		NoSeller:   NewStringSet(0),
		NullReview: NewStringSet(0),
	}
}

// ForReview returns the set matching a review value, or nil for an unknown
// value (caller should treat that as "no cache entry").
func (c *ReviewCaches) ForReview(r *store.Review) *StringSet {
	if r == nil {
		return c.NullReview
	}
	switch *r {
	case store.ReviewNonRelated:
		return c.NonRelated
	case store.ReviewUserFeed:
		return c.UserFeed
	case store.ReviewBanned:
		return c.Banned
	case store.ReviewOk:
		return c.Ok
	case store.ReviewNoSeller:
		return c.NoSeller
	default:
		return nil
	}
}

// MetadataCache preserves manually curated subreddit fields across upserts
// (the "critical invariant" of §3). Keyed by lowercase subreddit name.
type MetadataCache struct {
	mu   sync.RWMutex
	data map[string]store.SubredditMetadata
}

// NewMetadataCache builds an empty cache.
func NewMetadataCache() *MetadataCache {
	return &MetadataCache{data: make(map[string]store.SubredditMetadata)}
}

// Set stores or replaces the cached metadata for name.
func (m *MetadataCache) Set(name string, meta store.SubredditMetadata) {
	m.mu.Lock()
	m.data[name] = meta
	m.mu.Unlock()
}

// SetAll bulk-loads a map, used at cycle start.
func (m *MetadataCache) SetAll(all map[string]store.SubredditMetadata) {
	m.mu.Lock()
	m.data = all
	m.mu.Unlock()
}

// Get returns the cached metadata for name, if present.
func (m *MetadataCache) Get(name string) (store.SubredditMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.data[name]
	return meta, ok
}

// Session bundles the two session-scoped (single-cycle) caches.
type Session struct {
	Processed    *StringSet
	FetchedUsers *StringSet
}

// NewSession builds a fresh, empty session cache set — callers create one
// per cycle.
func NewSession() *Session {
	return &Session{
		Processed:    NewStringSet(0),
		FetchedUsers: NewStringSet(0),
	}
}

// Engine bundles every cache the Reddit engine needs, with TTL-aware
// refresh for the cross-cycle portions (§4.4.2: skip caches at cache_ttl,
// all_subreddits_cache every cycle).
type Engine struct {
	mu               sync.Mutex
	AllSubreddits    *StringSet
	Review           *ReviewCaches
	Metadata         *MetadataCache
	lastSkipRefresh  time.Time
	cacheTTL         time.Duration
}

// NewEngine builds the cross-cycle cache bundle.
func NewEngine(cacheTTL time.Duration) *Engine {
	return &Engine{
		AllSubreddits: NewStringSet(0),
		Review:        NewReviewCaches(),
		Metadata:      NewMetadataCache(),
		cacheTTL:      cacheTTL,
	}
}

// SkipCachesStale reports whether the per-review-status caches are older
// than cache_ttl and need a reload.
func (e *Engine) SkipCachesStale(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSkipRefresh.IsZero() || now.Sub(e.lastSkipRefresh) >= e.cacheTTL
}

// MarkSkipCachesRefreshed records that the skip caches were just reloaded.
func (e *Engine) MarkSkipCachesRefreshed(now time.Time) {
	e.mu.Lock()
	e.lastSkipRefresh = now
	e.mu.Unlock()
}

// FilterUsingCacheOnly implements §4.4.4 step 3: subtract all_subreddits,
// the session-processed set, and every skip cache from discovered, with
// zero database calls.
func FilterUsingCacheOnly(discovered []string, all *StringSet, processed *StringSet, skip ...*StringSet) []string {
	var survivors []string
	for _, name := range discovered {
		if all.Contains(name) || processed.Contains(name) {
			continue
		}
		skipped := false
		for _, s := range skip {
			if s != nil && s.Contains(name) {
				skipped = true
				break
			}
		}
		if !skipped {
			survivors = append(survivors, name)
		}
	}
	return survivors
}
