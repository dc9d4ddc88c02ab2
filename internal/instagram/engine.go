package instagram

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/b9dashboard/harvester/internal/config"
	"github.com/b9dashboard/harvester/internal/store"
	"github.com/b9dashboard/harvester/internal/writer"
)

// cdnDomain is the migrated-media host: an existing DB row's URL is only
// worth preserving over a fresh scrape URL once it actually points here,
// not merely because a row already exists.
const cdnDomain = "media.b9dashboard.com"

func isMigratedCDNURL(url string) bool {
	return url != "" && strings.Contains(url, cdnDomain)
}

// Store is the subset of store.Store the Instagram engine reads directly.
type Store interface {
	GetApprovedCreators(ctx context.Context) ([]store.InstagramCreator, error)
	GetCreatorContentCounts(ctx context.Context, creatorID string) (int, int, error)
	GetExistingMediaURL(ctx context.Context, table, mediaPK string) (string, bool, error)
	GetFollowerHistorySince(ctx context.Context, creatorID string, since time.Time) ([]store.FollowerHistory, error)
	InsertFollowerHistory(ctx context.Context, row store.FollowerHistory) error
}

// Writer is the subset of writer.InstagramWriter the engine needs.
type Writer interface {
	AddCreator(ctx context.Context, row store.InstagramCreator)
	AddReel(ctx context.Context, row store.Reel)
	AddPost(ctx context.Context, row store.InstagramPost)
}

type liveWriter struct{ w *writer.InstagramWriter }

func (l liveWriter) AddCreator(ctx context.Context, row store.InstagramCreator) { l.w.Creators.Add(ctx, row) }
func (l liveWriter) AddReel(ctx context.Context, row store.Reel)                { l.w.Reels.Add(ctx, row) }
func (l liveWriter) AddPost(ctx context.Context, row store.InstagramPost)       { l.w.Posts.Add(ctx, row) }

// NewLiveWriter adapts a concrete *writer.InstagramWriter to the Writer
// interface this package depends on.
func NewLiveWriter(w *writer.InstagramWriter) Writer { return liveWriter{w} }

// Engine is the Instagram creator-list crawl (C8).
type Engine struct {
	db     Store
	facade *Facade
	wr     Writer
	cfg    config.InstagramConfig
}

// NewEngine builds an Instagram scraper engine.
func NewEngine(db Store, facade *Facade, wr Writer, cfg config.InstagramConfig) *Engine {
	return &Engine{db: db, facade: facade, wr: wr, cfg: cfg}
}

// Run drives the cycle loop: one pass over every approved creator,
// followed by the configured cool-down (§4.5.1).
func (e *Engine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("instagram cycle aborted")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.CycleCooldown):
		}
	}
}

// RunCycle processes every approved, shuffled creator through a bounded
// pool of ConcurrentCreators tasks, each staggered by 0.05s (§4.5.1).
func (e *Engine) RunCycle(ctx context.Context) error {
	creators, err := e.db.GetApprovedCreators(ctx)
	if err != nil {
		return err
	}
	rand.Shuffle(len(creators), func(i, j int) { creators[i], creators[j] = creators[j], creators[i] })

	sem := make(chan struct{}, e.cfg.ConcurrentCreators)
	g, gctx := errgroup.WithContext(ctx)

	for i, creator := range creators {
		i, creator := i, creator
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(time.Duration(i) * 50 * time.Millisecond):
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			taskCtx, cancel := context.WithTimeout(gctx, 300*time.Second)
			defer cancel()

			if err := e.processCreator(taskCtx, creator); err != nil {
				log.Warn().Err(err).Str("creator", creator.Username).Msg("creator pass failed")
			}
			return nil
		})
	}
	return g.Wait()
}

// processCreator implements §4.5.2's per-creator flow.
func (e *Engine) processCreator(ctx context.Context, creator store.InstagramCreator) error {
	reelsCount, postsCount, err := e.db.GetCreatorContentCounts(ctx, creator.IGUserID)
	if err != nil {
		return err
	}
	reelsLimit, postsLimit := depthForCounts(e.cfg, reelsCount, postsCount)

	profile, err := e.facade.GetProfile(ctx, creator.Username)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if err := e.db.InsertFollowerHistory(ctx, store.FollowerHistory{
		CreatorID:      profile.IGUserID,
		RecordedAt:     now,
		FollowerCount:  profile.FollowerCount,
		FollowingCount: profile.FollowingCount,
		MediaCount:     profile.MediaCount,
	}); err != nil {
		log.Warn().Err(err).Str("creator", creator.Username).Msg("failed to insert follower history")
	}

	dailyGrowth, weeklyGrowth := e.growthRates(ctx, profile.IGUserID, profile.FollowerCount, now)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	reels, err := FetchWithEmptyRetry(ctx, e.cfg.RetryEmptyResponse, func() ([]Media, error) {
		return e.facade.GetReels(ctx, profile.IGUserID, reelsLimit)
	})
	if err != nil {
		log.Debug().Err(err).Str("creator", creator.Username).Msg("no reels after retry, accepting empty")
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	posts, err := FetchWithEmptyRetry(ctx, e.cfg.RetryEmptyResponse, func() ([]Media, error) {
		return e.facade.GetPosts(ctx, profile.IGUserID, postsLimit)
	})
	if err != nil {
		log.Debug().Err(err).Str("creator", creator.Username).Msg("no posts after retry, accepting empty")
	}

	analytics := ComputeAnalytics(AnalyticsInput{
		Reels:                    reels,
		Posts:                    posts,
		FollowerCount:            profile.FollowerCount,
		ViralMinViews:            e.cfg.ViralMinViews,
		ViralMultiplier:          e.cfg.ViralMultiplier,
		DailyFollowerGrowthRate:  dailyGrowth,
		WeeklyFollowerGrowthRate: weeklyGrowth,
		Now:                      now,
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}

	extType := ClassifyExternalURL(profile.ExternalURL)
	updated := store.InstagramCreator{
		IGUserID:              profile.IGUserID,
		Username:              profile.Username,
		FullName:              profile.FullName,
		Biography:             profile.Biography,
		FollowerCount:         profile.FollowerCount,
		FollowingCount:        profile.FollowingCount,
		MediaCount:            profile.MediaCount,
		IsVerified:            profile.IsVerified,
		IsBusinessAccount:     profile.IsBusinessAccount,
		IsProfessionalAccount: profile.IsProfessionalAccount,
		IsPrivate:             profile.IsPrivate,
		ExternalURL:           profile.ExternalURL,
		ExternalURLType:       store.ExternalLinkType(extType),
		BioLinks:              ExtractBioLinks(profile.Biography),
		ReviewStatus:          creator.ReviewStatus,
		Analytics:             analytics,
		FollowersLastUpdated:  now,
	}
	e.wr.AddCreator(ctx, updated)

	e.persistReels(ctx, profile.IGUserID, reels)
	e.persistPosts(ctx, profile.IGUserID, posts)

	log.Info().
		Str("creator", creator.Username).
		Int("reels", len(reels)).
		Int("posts", len(posts)).
		Float64("engagement_rate", analytics.EngagementRate).
		Msg("instagram creator pass complete")

	return nil
}

// growthRates computes daily (24h) and weekly (7d) follower growth rate
// from prior history rows (§4.5.2 step 3).
func (e *Engine) growthRates(ctx context.Context, creatorID string, currentFollowers int64, now time.Time) (daily, weekly float64) {
	dayHistory, err := e.db.GetFollowerHistorySince(ctx, creatorID, now.Add(-24*time.Hour))
	if err == nil && len(dayHistory) > 0 {
		daily = growthRate(dayHistory[0].FollowerCount, currentFollowers)
	}
	weekHistory, err := e.db.GetFollowerHistorySince(ctx, creatorID, now.Add(-7*24*time.Hour))
	if err == nil && len(weekHistory) > 0 {
		weekly = growthRate(weekHistory[0].FollowerCount, currentFollowers)
	}
	return daily, weekly
}

// depthForCounts picks the new-vs-existing fetch depth per §4.5.2 step 2:
// a creator with zero recorded reels and posts is "new" and gets the
// deeper initial backfill.
func depthForCounts(cfg config.InstagramConfig, reelsCount, postsCount int) (reelsLimit, postsLimit int) {
	if reelsCount == 0 && postsCount == 0 {
		return cfg.NewCreatorReelsCount, cfg.NewCreatorPostsCount
	}
	return cfg.ExistingCreatorReelsCount, cfg.ExistingCreatorPostsCount
}

func growthRate(prior, current int64) float64 {
	if prior == 0 {
		return 0
	}
	return (float64(current) - float64(prior)) / float64(prior) * 100
}

// persistReels upserts the fetched reels, preserving an existing video_url
// over the freshly-scraped source URL only when that existing URL is
// already on cdnDomain (§4.5.2 step 7, §8 scenario E) — a row that exists
// but was never migrated off the upstream CDN still takes the fresh URL.
func (e *Engine) persistReels(ctx context.Context, creatorID string, media []Media) {
	for _, m := range media {
		videoURL := m.VideoURL
		if existing, found, err := e.db.GetExistingMediaURL(ctx, "instagram_reels", m.MediaPK); err == nil && found && isMigratedCDNURL(existing) {
			videoURL = existing
		}
		e.wr.AddReel(ctx, store.Reel{
			MediaPK:       m.MediaPK,
			CreatorID:     creatorID,
			Caption:       m.Caption,
			Hashtags:      extractHashtags(m.Caption),
			Mentions:      extractMentions(m.Caption),
			PlayCount:     m.PlayCount,
			LikeCount:     m.LikeCount,
			CommentCount:  m.CommentCount,
			SaveCount:     m.SaveCount,
			ShareCount:    m.ShareCount,
			VideoURL:      videoURL,
			ThumbnailURL:  m.ThumbnailURL,
			PostedAt:      m.PostedAt,
			IsCarousel:    m.IsCarousel,
			CarouselCount: m.CarouselCount,
		})
	}
}

// persistPosts upserts the fetched posts with the same CDN-URL dedup
// policy applied to image_urls.
func (e *Engine) persistPosts(ctx context.Context, creatorID string, media []Media) {
	for _, m := range media {
		imageURLs := m.ImageURLs
		if existing, found, err := e.db.GetExistingMediaURL(ctx, "instagram_posts", m.MediaPK); err == nil && found && isMigratedCDNURL(existing) {
			imageURLs = []string{existing}
		}
		e.wr.AddPost(ctx, store.InstagramPost{
			MediaPK:       m.MediaPK,
			CreatorID:     creatorID,
			Caption:       m.Caption,
			Hashtags:      extractHashtags(m.Caption),
			Mentions:      extractMentions(m.Caption),
			LikeCount:     m.LikeCount,
			CommentCount:  m.CommentCount,
			SaveCount:     m.SaveCount,
			ShareCount:    m.ShareCount,
			ImageURLs:     imageURLs,
			PostedAt:      m.PostedAt,
			IsCarousel:    m.IsCarousel,
			CarouselCount: m.CarouselCount,
		})
	}
}
