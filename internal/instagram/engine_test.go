package instagram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b9dashboard/harvester/internal/config"
	"github.com/b9dashboard/harvester/internal/store"
)

type fakeInstagramStore struct {
	creators       []store.InstagramCreator
	reelsCount     int
	postsCount     int
	existingURLs   map[string]string
	historyCalls   []time.Duration
	insertedHist   []store.FollowerHistory
}

func (s *fakeInstagramStore) GetApprovedCreators(ctx context.Context) ([]store.InstagramCreator, error) {
	return s.creators, nil
}

func (s *fakeInstagramStore) GetCreatorContentCounts(ctx context.Context, creatorID string) (int, int, error) {
	return s.reelsCount, s.postsCount, nil
}

func (s *fakeInstagramStore) GetExistingMediaURL(ctx context.Context, table, mediaPK string) (string, bool, error) {
	url, found := s.existingURLs[table+":"+mediaPK]
	return url, found, nil
}

func (s *fakeInstagramStore) GetFollowerHistorySince(ctx context.Context, creatorID string, since time.Time) ([]store.FollowerHistory, error) {
	return nil, nil
}

func (s *fakeInstagramStore) InsertFollowerHistory(ctx context.Context, row store.FollowerHistory) error {
	s.insertedHist = append(s.insertedHist, row)
	return nil
}

type fakeInstagramWriter struct {
	creators []store.InstagramCreator
	reels    []store.Reel
	posts    []store.InstagramPost
}

func (w *fakeInstagramWriter) AddCreator(ctx context.Context, row store.InstagramCreator) {
	w.creators = append(w.creators, row)
}
func (w *fakeInstagramWriter) AddReel(ctx context.Context, row store.Reel) {
	w.reels = append(w.reels, row)
}
func (w *fakeInstagramWriter) AddPost(ctx context.Context, row store.InstagramPost) {
	w.posts = append(w.posts, row)
}

func TestPersistReelsPreservesExistingCDNURL(t *testing.T) {
	db := &fakeInstagramStore{existingURLs: map[string]string{
		"instagram_reels:abc123": "https://media.b9dashboard.com/migrated/abc123.mp4",
	}}
	wr := &fakeInstagramWriter{}
	e := NewEngine(db, NewFacade("key", "host", 10), wr, config.InstagramConfig{})

	e.persistReels(context.Background(), "creator-1", []Media{
		{MediaPK: "abc123", VideoURL: "https://rapidapi-sourced.example/abc123.mp4"},
	})

	require.Len(t, wr.reels, 1)
	assert.Equal(t, "https://media.b9dashboard.com/migrated/abc123.mp4", wr.reels[0].VideoURL)
}

func TestPersistReelsTakesFreshURLWhenExistingNotMigrated(t *testing.T) {
	db := &fakeInstagramStore{existingURLs: map[string]string{
		"instagram_reels:abc123": "https://rocketapi-upstream.example/raw/abc123.mp4",
	}}
	wr := &fakeInstagramWriter{}
	e := NewEngine(db, NewFacade("key", "host", 10), wr, config.InstagramConfig{})

	e.persistReels(context.Background(), "creator-1", []Media{
		{MediaPK: "abc123", VideoURL: "https://rapidapi-sourced.example/abc123.mp4"},
	})

	require.Len(t, wr.reels, 1)
	assert.Equal(t, "https://rapidapi-sourced.example/abc123.mp4", wr.reels[0].VideoURL)
}

func TestPersistReelsKeepsFreshURLWhenNoExistingRow(t *testing.T) {
	db := &fakeInstagramStore{existingURLs: map[string]string{}}
	wr := &fakeInstagramWriter{}
	e := NewEngine(db, NewFacade("key", "host", 10), wr, config.InstagramConfig{})

	e.persistReels(context.Background(), "creator-1", []Media{
		{MediaPK: "xyz789", VideoURL: "https://rapidapi-sourced.example/xyz789.mp4"},
	})

	require.Len(t, wr.reels, 1)
	assert.Equal(t, "https://rapidapi-sourced.example/xyz789.mp4", wr.reels[0].VideoURL)
}

func TestPersistPostsPreservesExistingCDNImageURL(t *testing.T) {
	db := &fakeInstagramStore{existingURLs: map[string]string{
		"instagram_posts:p1": "https://media.b9dashboard.com/migrated/p1.jpg",
	}}
	wr := &fakeInstagramWriter{}
	e := NewEngine(db, NewFacade("key", "host", 10), wr, config.InstagramConfig{})

	e.persistPosts(context.Background(), "creator-1", []Media{
		{MediaPK: "p1", ImageURLs: []string{"https://rapidapi-sourced.example/p1.jpg"}},
	})

	require.Len(t, wr.posts, 1)
	assert.Equal(t, []string{"https://media.b9dashboard.com/migrated/p1.jpg"}, wr.posts[0].ImageURLs)
}

func TestPersistPostsTakesFreshImageURLWhenExistingNotMigrated(t *testing.T) {
	db := &fakeInstagramStore{existingURLs: map[string]string{
		"instagram_posts:p1": "https://rocketapi-upstream.example/raw/p1.jpg",
	}}
	wr := &fakeInstagramWriter{}
	e := NewEngine(db, NewFacade("key", "host", 10), wr, config.InstagramConfig{})

	e.persistPosts(context.Background(), "creator-1", []Media{
		{MediaPK: "p1", ImageURLs: []string{"https://rapidapi-sourced.example/p1.jpg"}},
	})

	require.Len(t, wr.posts, 1)
	assert.Equal(t, []string{"https://rapidapi-sourced.example/p1.jpg"}, wr.posts[0].ImageURLs)
}

func TestGrowthRateZeroPriorIsZero(t *testing.T) {
	assert.Zero(t, growthRate(0, 5000))
}

func TestGrowthRatePositive(t *testing.T) {
	assert.InDelta(t, 10.0, growthRate(1000, 1100), 0.0001)
}

func TestIsNewDepthSelection(t *testing.T) {
	cfg := config.InstagramConfig{
		NewCreatorReelsCount:      90,
		NewCreatorPostsCount:      30,
		ExistingCreatorReelsCount: 30,
		ExistingCreatorPostsCount: 10,
	}

	reelsLimit, postsLimit := depthForCounts(cfg, 0, 0)
	assert.Equal(t, 90, reelsLimit)
	assert.Equal(t, 30, postsLimit)

	reelsLimit, postsLimit = depthForCounts(cfg, 12, 4)
	assert.Equal(t, 30, reelsLimit)
	assert.Equal(t, 10, postsLimit)
}
