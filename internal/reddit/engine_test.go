package reddit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b9dashboard/harvester/internal/cache"
	"github.com/b9dashboard/harvester/internal/config"
	"github.com/b9dashboard/harvester/internal/store"
)

type fakeRedditStore struct{}

func (fakeRedditStore) GetSubredditNamesByReview(ctx context.Context, review store.Review) ([]string, error) {
	return nil, nil
}
func (fakeRedditStore) GetAllSubredditNames(ctx context.Context) ([]string, error) { return nil, nil }
func (fakeRedditStore) GetSubredditMetadata(ctx context.Context, names []string) (map[string]store.SubredditMetadata, error) {
	return nil, nil
}

type fakeEngineWriter struct {
	mu         sync.Mutex
	subreddits []store.Subreddit
	users      []store.RedditUser
	posts      []store.Post
}

func (w *fakeEngineWriter) AddSubreddit(ctx context.Context, row store.Subreddit) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subreddits = append(w.subreddits, row)
}
func (w *fakeEngineWriter) AddUser(ctx context.Context, row store.RedditUser) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.users = append(w.users, row)
}
func (w *fakeEngineWriter) AddPost(ctx context.Context, row store.Post) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posts = append(w.posts, row)
}

// fakeFacade lets each test script the facade responses per subreddit name
// without any live HTTP, so processSubreddit can be driven directly.
type fakeFacade struct {
	info      map[string]*SubredditInfo
	infoErr   map[string]error
	rules     map[string][]Rule
	topPosts  map[string][]PostSummary
	userPosts map[string][]PostSummary

	mu           sync.Mutex
	rulesCalls   []string
	topCalls     []string
	userCalls    []string
}

func (f *fakeFacade) GetSubredditInfo(ctx context.Context, name string) (*SubredditInfo, error) {
	if err, ok := f.infoErr[name]; ok {
		return nil, err
	}
	return f.info[name], nil
}

func (f *fakeFacade) GetSubredditRules(ctx context.Context, name string) []Rule {
	f.mu.Lock()
	f.rulesCalls = append(f.rulesCalls, name)
	f.mu.Unlock()
	return f.rules[name]
}

func (f *fakeFacade) GetSubredditTopPosts(ctx context.Context, name, timeFilter string, limit int) []PostSummary {
	f.mu.Lock()
	f.topCalls = append(f.topCalls, name)
	f.mu.Unlock()
	return f.topPosts[name]
}

func (f *fakeFacade) GetUserPosts(ctx context.Context, name string, limit int) []PostSummary {
	f.mu.Lock()
	f.userCalls = append(f.userCalls, name)
	f.mu.Unlock()
	return f.userPosts[name]
}

func newTestEngine(facade *fakeFacade, wr *fakeEngineWriter) *Engine {
	return NewEngine(fakeRedditStore{}, facade, nil, wr, cache.NewEngine(time.Hour), config.RedditConfig{})
}

// Scenario A: Ok subreddit, happy path (spec §8.A).
func TestProcessSubredditOkHappyPath(t *testing.T) {
	facade := &fakeFacade{
		info: map[string]*SubredditInfo{
			"foo": {Name: "foo", Subscribers: 1000, Description: "welcome"},
		},
		topPosts: map[string][]PostSummary{
			"foo": {{ID: "p1", Score: 10, NumComments: 2, CreatedUTC: 1_700_000_000, Author: "alice", IsSelf: true}},
		},
		userPosts: map[string][]PostSummary{
			"alice": {{ID: "p2", Subreddit: "otherplace", Author: "alice"}},
		},
	}
	wr := &fakeEngineWriter{}
	e := newTestEngine(facade, wr)
	session := cache.NewSession()

	discovered := e.processSubreddit(context.Background(), "foo", session, processOptions{allowAuthors: true, allowDiscovery: true})

	// foo itself, then a stub for "otherplace" written ahead of alice's post.
	require.Len(t, wr.subreddits, 2)
	sub := wr.subreddits[0]
	assert.Equal(t, "foo", sub.Name)
	assert.InDelta(t, 10.0, sub.AvgUpvotesPerPost, 0.0001)
	assert.InDelta(t, 0.2, sub.Engagement, 0.0001)
	assert.InDelta(t, 44.72, sub.SubredditScore, 0.01)
	assert.Nil(t, sub.PrimaryCategory)
	stub := wr.subreddits[1]
	assert.Equal(t, "otherplace", stub.Name)
	assert.Nil(t, stub.Review)
	assert.Nil(t, stub.LastScrapedAt)

	require.Len(t, wr.users, 1)
	assert.Equal(t, "alice", wr.users[0].Username)
	assert.True(t, wr.users[0].Minimal)

	require.Len(t, wr.posts, 2)
	post := wr.posts[0]
	assert.Equal(t, "p1", post.RedditID)
	assert.Equal(t, store.ContentType("text"), post.ContentType)
	assert.Nil(t, post.SubPrimaryCategory)
	assert.Equal(t, "p2", wr.posts[1].RedditID)
	assert.Equal(t, "otherplace", wr.posts[1].Subreddit)

	assert.Equal(t, []string{"otherplace"}, discovered)
}

// Scenario B: Auto-classification (spec §8.B).
func TestProcessSubredditAutoClassifiesNonRelated(t *testing.T) {
	facade := &fakeFacade{
		info: map[string]*SubredditInfo{
			"new": {Name: "new", Subscribers: 50},
		},
		rules: map[string][]Rule{
			"new": {{ShortName: "r1", Description: "hentai only"}},
		},
	}
	wr := &fakeEngineWriter{}
	e := newTestEngine(facade, wr)
	session := cache.NewSession()

	discovered := e.processSubreddit(context.Background(), "new", session, processOptions{allowAuthors: false, allowDiscovery: false})

	require.Len(t, wr.subreddits, 1)
	sub := wr.subreddits[0]
	require.NotNil(t, sub.Review)
	assert.Equal(t, store.ReviewNonRelated, *sub.Review)
	assert.True(t, e.caches.Review.NonRelated.Contains("new"))

	assert.Empty(t, discovered)
	assert.Empty(t, facade.userCalls)
	assert.Empty(t, wr.users)
}

// Scenario C: Manual curation preserved (spec §8.C).
func TestProcessSubredditPreservesManualCuration(t *testing.T) {
	ok := store.ReviewOk
	fitness := "fitness"
	facade := &fakeFacade{
		info: map[string]*SubredditInfo{
			"bar": {Name: "bar", Subscribers: 500},
		},
		rules: map[string][]Rule{
			"bar": {{ShortName: "r1", Description: "contains hentai"}},
		},
	}
	wr := &fakeEngineWriter{}
	e := newTestEngine(facade, wr)
	e.caches.Metadata.Set("bar", store.SubredditMetadata{
		Review:          &ok,
		PrimaryCategory: &fitness,
		Tags:            []string{"foo"},
	})
	session := cache.NewSession()

	e.processSubreddit(context.Background(), "bar", session, processOptions{allowAuthors: false, allowDiscovery: false})

	require.Len(t, wr.subreddits, 1)
	sub := wr.subreddits[0]
	require.NotNil(t, sub.Review)
	assert.Equal(t, store.ReviewOk, *sub.Review)
	require.NotNil(t, sub.PrimaryCategory)
	assert.Equal(t, "fitness", *sub.PrimaryCategory)
	assert.Equal(t, []string{"foo"}, sub.Tags)
	assert.False(t, e.caches.Review.NonRelated.Contains("bar"))
}

// Scenario D: Banned subreddit (spec §8.D).
func TestProcessSubredditBanned(t *testing.T) {
	facade := &fakeFacade{
		infoErr: map[string]error{
			"baz": &FacadeError{Kind: ErrBanned},
		},
	}
	wr := &fakeEngineWriter{}
	e := newTestEngine(facade, wr)
	session := cache.NewSession()

	discovered := e.processSubreddit(context.Background(), "baz", session, processOptions{allowAuthors: true, allowDiscovery: true})

	require.Len(t, wr.subreddits, 1)
	sub := wr.subreddits[0]
	require.NotNil(t, sub.Review)
	assert.Equal(t, store.ReviewBanned, *sub.Review)
	assert.True(t, e.caches.Review.Banned.Contains("baz"))

	assert.Empty(t, wr.posts)
	assert.Empty(t, wr.users)
	assert.Empty(t, discovered)
	assert.Empty(t, facade.rulesCalls)
	assert.Empty(t, facade.topCalls)
}
