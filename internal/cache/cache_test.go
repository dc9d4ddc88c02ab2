package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/b9dashboard/harvester/internal/store"
)

func TestStringSetAddContains(t *testing.T) {
	s := NewStringSet(0)
	s.Add("foo")
	assert.True(t, s.Contains("foo"))
	assert.False(t, s.Contains("bar"))
}

func TestStringSetResetReplacesContents(t *testing.T) {
	s := NewStringSet(0)
	s.Add("old")
	s.Reset([]string{"new1", "new2"})
	assert.False(t, s.Contains("old"))
	assert.True(t, s.Contains("new1"))
	assert.Equal(t, 2, s.Len())
}

func TestReviewCachesForReviewNull(t *testing.T) {
	rc := NewReviewCaches()
	assert.Same(t, rc.NullReview, rc.ForReview(nil))
}

func TestReviewCachesForReviewKnown(t *testing.T) {
	rc := NewReviewCaches()
	ok := store.ReviewOk
	assert.Same(t, rc.Ok, rc.ForReview(&ok))
}

func TestMetadataCacheGetSet(t *testing.T) {
	m := NewMetadataCache()
	cat := "fitness"
	m.Set("bar", store.SubredditMetadata{PrimaryCategory: &cat})
	meta, ok := m.Get("bar")
	assert.True(t, ok)
	assert.Equal(t, "fitness", *meta.PrimaryCategory)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestEngineSkipCachesStaleInitially(t *testing.T) {
	e := NewEngine(time.Hour)
	assert.True(t, e.SkipCachesStale(time.Now()))
}

func TestEngineSkipCachesFreshAfterMark(t *testing.T) {
	e := NewEngine(time.Hour)
	now := time.Now()
	e.MarkSkipCachesRefreshed(now)
	assert.False(t, e.SkipCachesStale(now.Add(time.Minute)))
	assert.True(t, e.SkipCachesStale(now.Add(2*time.Hour)))
}

func TestFilterUsingCacheOnly(t *testing.T) {
	all := NewStringSet(0)
	all.Add("known")
	processed := NewStringSet(0)
	processed.Add("already_done")
	banned := NewStringSet(0)
	banned.Add("baz")

	discovered := []string{"known", "already_done", "baz", "fresh"}
	survivors := FilterUsingCacheOnly(discovered, all, processed, banned)

	assert.Equal(t, []string{"fresh"}, survivors)
}
