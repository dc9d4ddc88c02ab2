package writer

import (
	"context"
	"sync"

	"github.com/b9dashboard/harvester/internal/store"
)

type recordingRedditStore struct {
	order *[]string
	mu    *sync.Mutex
}

func (r *recordingRedditStore) UpsertSubreddits(ctx context.Context, rows []store.Subreddit) error {
	r.mu.Lock()
	*r.order = append(*r.order, "subreddits")
	r.mu.Unlock()
	return nil
}

func (r *recordingRedditStore) UpsertUsers(ctx context.Context, rows []store.RedditUser) error {
	r.mu.Lock()
	*r.order = append(*r.order, "users")
	r.mu.Unlock()
	return nil
}

func (r *recordingRedditStore) UpsertPosts(ctx context.Context, rows []store.Post) error {
	r.mu.Lock()
	*r.order = append(*r.order, "posts")
	r.mu.Unlock()
	return nil
}

func (r *recordingRedditStore) subredditRow() store.Subreddit { return store.Subreddit{Name: "foo"} }
func (r *recordingRedditStore) userRow() store.RedditUser     { return store.RedditUser{Username: "alice"} }
func (r *recordingRedditStore) postRow() store.Post           { return store.Post{RedditID: "p1"} }
