package reddit

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/b9dashboard/harvester/internal/cache"
	"github.com/b9dashboard/harvester/internal/config"
	"github.com/b9dashboard/harvester/internal/proxypool"
	"github.com/b9dashboard/harvester/internal/store"
	"github.com/b9dashboard/harvester/internal/writer"
)

// Store is the subset of store.Store the Reddit engine reads directly
// (writes go through the Writer).
type Store interface {
	GetSubredditNamesByReview(ctx context.Context, review store.Review) ([]string, error)
	GetAllSubredditNames(ctx context.Context) ([]string, error)
	GetSubredditMetadata(ctx context.Context, names []string) (map[string]store.SubredditMetadata, error)
}

// Writer is the subset of writer.RedditWriter the engine needs, expressed
// as an interface so tests can substitute a fake.
type Writer interface {
	AddSubreddit(ctx context.Context, row store.Subreddit)
	AddUser(ctx context.Context, row store.RedditUser)
	AddPost(ctx context.Context, row store.Post)
}

// Facade is the subset of *reddit.Facade the engine calls, expressed as an
// interface so tests can drive processSubreddit/runBatch/RunCycle against a
// fake instead of live HTTP (*Facade satisfies this implicitly).
type Facade interface {
	GetSubredditInfo(ctx context.Context, name string) (*SubredditInfo, error)
	GetSubredditRules(ctx context.Context, name string) []Rule
	GetSubredditTopPosts(ctx context.Context, name, timeFilter string, limit int) []PostSummary
	GetUserPosts(ctx context.Context, name string, limit int) []PostSummary
}

// liveWriter adapts *writer.RedditWriter to the Writer interface.
type liveWriter struct{ w *writer.RedditWriter }

func (l liveWriter) AddSubreddit(ctx context.Context, row store.Subreddit) { l.w.Subreddits.Add(ctx, row) }
func (l liveWriter) AddUser(ctx context.Context, row store.RedditUser)     { l.w.Users.Add(ctx, row) }
func (l liveWriter) AddPost(ctx context.Context, row store.Post)           { l.w.Posts.Add(ctx, row) }

// NewLiveWriter wraps a real RedditWriter for engine use.
func NewLiveWriter(w *writer.RedditWriter) Writer { return liveWriter{w} }

// Engine is the Reddit scraper's cycle-driven crawl state machine (C7).
type Engine struct {
	db      Store
	facade  Facade
	proxies *proxypool.Pool
	wr      Writer
	caches  *cache.Engine
	cfg     config.RedditConfig
}

// NewEngine builds a Reddit scraper engine.
func NewEngine(db Store, facade Facade, proxies *proxypool.Pool, wr Writer, caches *cache.Engine, cfg config.RedditConfig) *Engine {
	return &Engine{db: db, facade: facade, proxies: proxies, wr: wr, caches: caches, cfg: cfg}
}

// Run drives the cycle loop until ctx is cancelled (§4.4.1 step 6: sleep
// is interruptible by stop signal).
func (e *Engine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := e.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("reddit cycle aborted")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.CycleCooldown):
		}
	}
}

// RunCycle executes one full Pass A + Pass B cycle (§4.4.1).
func (e *Engine) RunCycle(ctx context.Context) error {
	if err := e.proxies.Load(ctx); err != nil {
		return err
	}
	if passed := e.proxies.TestAll(ctx); passed == 0 {
		return errAllProxiesFailed
	}

	if e.caches.SkipCachesStale(time.Now()) {
		if err := e.loadSkipCaches(ctx); err != nil {
			return err
		}
		e.caches.MarkSkipCachesRefreshed(time.Now())
	}
	if err := e.loadAllSubredditsCache(ctx); err != nil {
		return err
	}

	okList, err := e.db.GetSubredditNamesByReview(ctx, store.ReviewOk)
	if err != nil {
		return err
	}
	noSellerList, err := e.db.GetSubredditNamesByReview(ctx, store.ReviewNoSeller)
	if err != nil {
		return err
	}
	shuffle(okList)
	shuffle(noSellerList)

	session := cache.NewSession()

	if err := e.runPassA(ctx, okList, session); err != nil {
		return err
	}
	if err := e.runPassB(ctx, noSellerList, session); err != nil {
		return err
	}
	return nil
}

var errAllProxiesFailed = &FacadeError{Kind: ErrNetwork}

func shuffle(items []string) {
	rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
}

func (e *Engine) loadSkipCaches(ctx context.Context) error {
	reviews := map[store.Review]*cache.StringSet{
		store.ReviewNonRelated: e.caches.Review.NonRelated,
		store.ReviewUserFeed:   e.caches.Review.UserFeed,
		store.ReviewBanned:     e.caches.Review.Banned,
		store.ReviewOk:         e.caches.Review.Ok,
		store.ReviewNoSeller:   e.caches.Review.NoSeller,
	}
	for review, set := range reviews {
		names, err := e.db.GetSubredditNamesByReview(ctx, review)
		if err != nil {
			return err
		}
		set.Reset(names)
	}
	return nil
}

func (e *Engine) loadAllSubredditsCache(ctx context.Context) error {
	names, err := e.db.GetAllSubredditNames(ctx)
	if err != nil {
		return err
	}
	e.caches.AllSubreddits.Reset(names)
	meta, err := e.db.GetSubredditMetadata(ctx, names)
	if err != nil {
		return err
	}
	if meta == nil {
		meta = map[string]store.SubredditMetadata{}
	}
	e.caches.Metadata.SetAll(meta)
	return nil
}

// runPassA processes the "Ok" work-list in batches of OkBatchSize with
// staggered starts (§4.4.1 step 4).
func (e *Engine) runPassA(ctx context.Context, names []string, session *cache.Session) error {
	batchSize := e.cfg.OkBatchSize
	for start := 0; start < len(names); start += batchSize {
		end := start + batchSize
		if end > len(names) {
			end = len(names)
		}
		batch := names[start:end]

		discovered, err := e.runBatch(ctx, batch, session)
		if err != nil {
			return err
		}
		if err := e.handleBatchDiscovery(ctx, discovered, session); err != nil {
			log.Error().Err(err).Msg("batch discovery handling failed")
		}
	}
	return nil
}

// runPassB refreshes metadata for "No Seller" subreddits sequentially,
// skipping author expansion and discovery (§4.4.6).
func (e *Engine) runPassB(ctx context.Context, names []string, session *cache.Session) error {
	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.processSubreddit(ctx, name, session, processOptions{allowAuthors: false, allowDiscovery: false})
	}
	return nil
}

// runBatch launches one staggered-concurrent batch of Ok subreddits and
// returns the union of their discovered names (§4.4.3, §4.4.4 step 1).
func (e *Engine) runBatch(ctx context.Context, names []string, session *cache.Session) ([]string, error) {
	results := make([][]string, len(names))
	g, gctx := errgroup.WithContext(ctx)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			delay := time.Duration(i)*e.cfg.OkStaggerBase + jitter(e.cfg.OkStaggerJitter)
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-time.After(delay):
			}
			results[i] = e.processSubreddit(gctx, name, session, processOptions{allowAuthors: true, allowDiscovery: true})
			return nil
		})
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Warn().Err(err).Msg("batch processing ended early")
	}

	var union []string
	seen := map[string]struct{}{}
	for _, r := range results {
		for _, name := range r {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				union = append(union, name)
			}
		}
	}
	return union, nil
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

type processOptions struct {
	allowAuthors   bool
	allowDiscovery bool
}

// processSubreddit implements §4.4.3/§4.4.6's per-subreddit flow (state
// machine summarized in §4.4.7) and returns discovered subreddit names
// when author expansion is enabled (opts.allowAuthors); opts.allowDiscovery
// is not read here.
func (e *Engine) processSubreddit(ctx context.Context, name string, session *cache.Session, opts processOptions) []string {
	name = strings.ToLower(name)
	preloaded, _ := e.caches.Metadata.Get(name)

	fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	info, err := e.facade.GetSubredditInfo(fetchCtx, name)
	if err != nil {
		if fe, ok := err.(*FacadeError); ok {
			switch fe.Kind {
			case ErrBanned, ErrForbidden, ErrNotFound:
				e.wr.AddSubreddit(ctx, store.Subreddit{
					Name:   name,
					Review: reviewPtr(store.ReviewBanned),
				})
				e.caches.Review.Banned.Add(name)
				session.Processed.Add(name)
				return nil
			}
		}
		log.Warn().Err(err).Str("subreddit", name).Msg("subreddit info fetch failed, skipping")
		session.Processed.Add(name)
		return nil
	}

	rules := e.facade.GetSubredditRules(fetchCtx, name)
	topWeekly := e.facade.GetSubredditTopPosts(fetchCtx, name, "week", 10)

	rulesText := CombineRuleText(rules)
	var review *store.Review
	if preloaded.Review == nil {
		if matched, keyword := ClassifyNonRelated(rulesText, info.Description); matched {
			nonRelated := store.ReviewNonRelated
			review = &nonRelated
			e.caches.Review.NonRelated.Add(name)
			log.Info().Str("subreddit", name).Str("keyword", keyword).Msg("auto-classified as Non Related")
		}
	} else {
		review = preloaded.Review
	}

	metrics := ComputeMetrics(topWeekly)
	verificationRequired := RequiresVerification(rulesText, info.Description)

	now := time.Now().UTC()
	sub := store.Subreddit{
		Name:                  name,
		Subscribers:           info.Subscribers,
		CreatedUTC:            info.CreatedUTC,
		Description:           info.Description,
		Rules:                 rulesText,
		AllowImages:           info.AllowImages,
		Over18:                info.Over18,
		AvgUpvotesPerPost:     metrics.AvgUpvotesPerPost,
		Engagement:            metrics.Engagement,
		SubredditScore:        metrics.SubredditScore,
		VerificationRequired:  verificationRequired,
		Review:                review,
		PrimaryCategory:       preloaded.PrimaryCategory,
		Tags:                  preloaded.Tags,
		LastScrapedAt:         &now,
	}
	e.wr.AddSubreddit(ctx, sub)
	e.caches.Metadata.Set(name, store.SubredditMetadata{
		Review:          sub.Review,
		PrimaryCategory: sub.PrimaryCategory,
		Tags:            sub.Tags,
		Over18:          sub.Over18,
	})

	e.savePosts(ctx, name, topWeekly, preloaded)

	var discovered []string
	if opts.allowAuthors {
		authors := extractAuthors(topWeekly)
		discovered = e.fetchAuthors(ctx, authors, session)
	}

	session.Processed.Add(name)
	return discovered
}

func reviewPtr(r store.Review) *store.Review { return &r }

func extractAuthors(posts []PostSummary) []string {
	seen := map[string]struct{}{}
	var authors []string
	for _, p := range posts {
		a := strings.ToLower(p.Author)
		if a == "" || a == "[deleted]" || a == "automoderator" {
			continue
		}
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			authors = append(authors, a)
		}
	}
	return authors
}

// fetchAuthors implements §4.4.3 step 9: staggered concurrent per-author
// fetch of their last 10 submitted posts; an empty response is retried up
// to twice more (after 100ms, then 300ms).
func (e *Engine) fetchAuthors(ctx context.Context, authors []string, session *cache.Session) []string {
	var toFetch []string
	for _, a := range authors {
		if !session.FetchedUsers.Contains(a) {
			toFetch = append(toFetch, a)
		}
	}
	if len(toFetch) == 0 {
		return nil
	}

	results := make([][]PostSummary, len(toFetch))
	g, gctx := errgroup.WithContext(ctx)
	for i, author := range toFetch {
		i, author := i, author
		g.Go(func() error {
			delay := time.Duration(i)*e.cfg.UserStaggerBase + jitter(e.cfg.UserStaggerJitter)
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(delay):
			}
			posts := e.facade.GetUserPosts(gctx, author, 10)
			if len(posts) == 0 {
				posts = retryOnEmpty(gctx, func() []PostSummary { return e.facade.GetUserPosts(gctx, author, 10) }, 2)
			}
			results[i] = posts
			session.FetchedUsers.Add(author)
			return nil
		})
	}
	_ = g.Wait()

	users := make([]store.RedditUser, 0, len(toFetch))
	now := time.Now().UTC()
	for _, author := range toFetch {
		users = append(users, store.RedditUser{Username: author, Minimal: true, LastScrapedAt: now})
	}
	for _, u := range chunk(users, 100) {
		for _, row := range u {
			e.wr.AddUser(ctx, row)
		}
	}

	var discovered []string
	seen := map[string]struct{}{}
	for _, posts := range results {
		e.saveAuthorPosts(ctx, posts)
		for _, p := range posts {
			if p.Subreddit == "" {
				continue
			}
			if _, ok := seen[p.Subreddit]; !ok {
				seen[p.Subreddit] = struct{}{}
				discovered = append(discovered, p.Subreddit)
			}
		}
	}
	return discovered
}

// saveAuthorPosts writes posts pulled from an author's submission history.
// When a post's subreddit is unknown to the metadata cache, a stub row is
// inserted first — review="User Feed" if the name starts with u_,
// otherwise NULL — with no last_scraped_at, so a later cycle treats it as
// needing a full scrape (§4.4.5).
func (e *Engine) saveAuthorPosts(ctx context.Context, posts []PostSummary) {
	for _, p := range posts {
		if p.Subreddit == "" {
			continue
		}
		meta, known := e.caches.Metadata.Get(p.Subreddit)
		if !known {
			var review *store.Review
			if strings.HasPrefix(p.Subreddit, "u_") {
				review = reviewPtr(store.ReviewUserFeed)
			}
			e.wr.AddSubreddit(ctx, store.Subreddit{Name: p.Subreddit, Review: review})
			meta = store.SubredditMetadata{Review: review}
			e.caches.Metadata.Set(p.Subreddit, meta)
		}
		e.savePosts(ctx, p.Subreddit, []PostSummary{p}, meta)
	}
}

func retryOnEmpty(ctx context.Context, fn func() []PostSummary, attempts int) []PostSummary {
	delay := 100 * time.Millisecond
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		if posts := fn(); len(posts) > 0 {
			return posts
		}
		delay = delay * 3
	}
	return nil
}

func chunk(users []store.RedditUser, size int) [][]store.RedditUser {
	var out [][]store.RedditUser
	for i := 0; i < len(users); i += size {
		end := i + size
		if end > len(users) {
			end = len(users)
		}
		out = append(out, users[i:end])
	}
	return out
}

// savePosts writes the subreddit's post batch with denormalized category
// fields and content-type derivation (§4.4.5).
func (e *Engine) savePosts(ctx context.Context, subredditName string, posts []PostSummary, meta store.SubredditMetadata) {
	for _, p := range posts {
		created := time.Unix(p.CreatedUTC, 0).UTC()
		row := store.Post{
			RedditID:             p.ID,
			Subreddit:            subredditName,
			Author:               p.Author,
			Title:                p.Title,
			Score:                p.Score,
			NumComments:          p.NumComments,
			CreatedUTC:           p.CreatedUTC,
			IsSelf:               p.IsSelf,
			IsVideo:              p.IsVideo,
			IsGallery:            p.IsGallery,
			URL:                  p.URL,
			PostLength:           len(p.Title),
			PostingHour:          created.Hour(),
			PostingDay:           int(created.Weekday()),
			ContentType:          store.ContentType(ContentTypeFor(p.IsGallery, p.IsVideo, p.IsSelf, p.URL)),
			SubPrimaryCategory:   meta.PrimaryCategory,
			SubTags:              meta.Tags,
			SubOver18:            meta.Over18,
			CommentToUpvoteRatio: ratio(p.NumComments, p.Score),
		}
		e.wr.AddPost(ctx, row)
	}
}

func ratio(a, b int64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// handleBatchDiscovery implements §4.4.4: union, session-mark, cache-only
// filter, split into user_feed vs regular, and the second staggered wave.
func (e *Engine) handleBatchDiscovery(ctx context.Context, discovered []string, session *cache.Session) error {
	if len(discovered) == 0 {
		return nil
	}

	survivors := cache.FilterUsingCacheOnly(discovered, e.caches.AllSubreddits, session.Processed,
		e.caches.Review.NonRelated, e.caches.Review.UserFeed, e.caches.Review.Banned,
		e.caches.Review.Ok, e.caches.Review.NoSeller)
	session.Processed.AddAll(discovered)

	var userFeed, regular []string
	for _, name := range survivors {
		if strings.HasPrefix(name, "u_") {
			userFeed = append(userFeed, name)
		} else {
			regular = append(regular, name)
		}
	}

	for _, name := range userFeed {
		e.wr.AddSubreddit(ctx, store.Subreddit{Name: name, Review: reviewPtr(store.ReviewUserFeed)})
		e.caches.Review.UserFeed.Add(name)
		e.caches.AllSubreddits.Add(name)
	}

	shuffle(regular)
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range regular {
		i, name := i, name
		g.Go(func() error {
			delay := time.Duration(i)*e.cfg.DiscoveryStaggerBase + jitter(e.cfg.DiscoveryStaggerJitter)
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(delay):
			}
			e.processSubreddit(gctx, name, session, processOptions{allowAuthors: false, allowDiscovery: false})
			e.caches.AllSubreddits.Add(name)
			return nil
		})
	}
	return g.Wait()
}
