package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/b9dashboard/harvester/internal/store"
)

// GetApprovedCreators returns creators with review_status="ok" and a
// non-null ig_user_id, the Instagram engine's per-cycle work-list (§4.5.1).
func (p *Postgres) GetApprovedCreators(ctx context.Context) ([]store.InstagramCreator, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT ig_user_id, username, full_name, biography, follower_count, following_count,
		       media_count, is_verified, is_business_account, is_professional_account, is_private,
		       external_url, external_url_type, bio_links, review_status, followers_last_updated
		FROM instagram_creators
		WHERE review_status = 'ok' AND ig_user_id IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("query approved creators: %w", err)
	}
	defer rows.Close()

	var out []store.InstagramCreator
	for rows.Next() {
		var c store.InstagramCreator
		var extType string
		var lastUpdated sql.NullTime
		if err := rows.Scan(&c.IGUserID, &c.Username, &c.FullName, &c.Biography, &c.FollowerCount,
			&c.FollowingCount, &c.MediaCount, &c.IsVerified, &c.IsBusinessAccount, &c.IsProfessionalAccount,
			&c.IsPrivate, &c.ExternalURL, &extType, pq.Array(&c.BioLinks), &c.ReviewStatus, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan creator: %w", err)
		}
		c.ExternalURLType = store.ExternalLinkType(extType)
		if lastUpdated.Valid {
			c.FollowersLastUpdated = lastUpdated.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCreatorContentCounts backs the is_new decision in §4.5.2 step 2.
func (p *Postgres) GetCreatorContentCounts(ctx context.Context, creatorID string) (int, int, error) {
	var reels, posts int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instagram_reels WHERE creator_id = $1`, creatorID).Scan(&reels)
	if err != nil {
		return 0, 0, fmt.Errorf("count reels: %w", err)
	}
	err = p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instagram_posts WHERE creator_id = $1`, creatorID).Scan(&posts)
	if err != nil {
		return 0, 0, fmt.Errorf("count posts: %w", err)
	}
	return reels, posts, nil
}

// GetExistingMediaURL reads whatever URL is currently stored for a media
// row, if any (§4.5.2 step 7, §8 scenario E). It does not judge whether
// that URL is a migrated CDN path — the caller decides whether to keep it
// over a freshly-scraped source URL.
func (p *Postgres) GetExistingMediaURL(ctx context.Context, table, mediaPK string) (string, bool, error) {
	var column string
	switch table {
	case "instagram_reels":
		column = "video_url"
	case "instagram_posts":
		column = "image_urls[1]"
	default:
		return "", false, fmt.Errorf("unknown media table %q", table)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE media_pk = $1`, column, table)
	var url sql.NullString
	err := p.db.QueryRowContext(ctx, query, mediaPK).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup existing media url: %w", err)
	}
	return url.String, url.Valid && url.String != "", nil
}

// GetFollowerHistorySince backs the daily/weekly growth-rate computation in
// §4.5.2 step 3.
func (p *Postgres) GetFollowerHistorySince(ctx context.Context, creatorID string, since time.Time) ([]store.FollowerHistory, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT creator_id, recorded_at, follower_count, following_count, media_count
		FROM instagram_follower_history
		WHERE creator_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
	`, creatorID, since)
	if err != nil {
		return nil, fmt.Errorf("query follower history: %w", err)
	}
	defer rows.Close()

	var out []store.FollowerHistory
	for rows.Next() {
		var h store.FollowerHistory
		if err := rows.Scan(&h.CreatorID, &h.RecordedAt, &h.FollowerCount, &h.FollowingCount, &h.MediaCount); err != nil {
			return nil, fmt.Errorf("scan follower history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// InsertFollowerHistory appends one row; history is never mutated (§3).
func (p *Postgres) InsertFollowerHistory(ctx context.Context, row store.FollowerHistory) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO instagram_follower_history (creator_id, recorded_at, follower_count, following_count, media_count)
		VALUES ($1,$2,$3,$4,$5)
	`, row.CreatorID, row.RecordedAt, row.FollowerCount, row.FollowingCount, row.MediaCount)
	if err != nil {
		return fmt.Errorf("insert follower history: %w", err)
	}
	return nil
}

// UpsertCreators upserts by ig_user_id, writing the cached analytics fields
// engagement_rate, viral_content_count and posting_frequency_per_week
// atomically with the profile snapshot (§3 InstagramCreator invariant); the
// other CreatorAnalytics fields are not persisted here.
func (p *Postgres) UpsertCreators(ctx context.Context, rows []store.InstagramCreator) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin creator upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instagram_creators (
			ig_user_id, username, full_name, biography, follower_count, following_count, media_count,
			is_verified, is_business_account, is_professional_account, is_private,
			external_url, external_url_type, bio_links, review_status,
			engagement_rate, viral_content_count, posting_frequency_per_week, followers_last_updated
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (ig_user_id) DO UPDATE SET
			username = EXCLUDED.username,
			full_name = EXCLUDED.full_name,
			biography = EXCLUDED.biography,
			follower_count = EXCLUDED.follower_count,
			following_count = EXCLUDED.following_count,
			media_count = EXCLUDED.media_count,
			is_verified = EXCLUDED.is_verified,
			is_business_account = EXCLUDED.is_business_account,
			is_professional_account = EXCLUDED.is_professional_account,
			is_private = EXCLUDED.is_private,
			external_url = EXCLUDED.external_url,
			external_url_type = EXCLUDED.external_url_type,
			bio_links = EXCLUDED.bio_links,
			engagement_rate = EXCLUDED.engagement_rate,
			viral_content_count = EXCLUDED.viral_content_count,
			posting_frequency_per_week = EXCLUDED.posting_frequency_per_week,
			followers_last_updated = EXCLUDED.followers_last_updated
	`)
	if err != nil {
		return fmt.Errorf("prepare creator upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range rows {
		if _, err := stmt.ExecContext(ctx, c.IGUserID, c.Username, c.FullName, c.Biography, c.FollowerCount,
			c.FollowingCount, c.MediaCount, c.IsVerified, c.IsBusinessAccount, c.IsProfessionalAccount,
			c.IsPrivate, c.ExternalURL, string(c.ExternalURLType), pq.Array(c.BioLinks), c.ReviewStatus,
			c.Analytics.EngagementRate, c.Analytics.ViralContentCount, c.Analytics.PostingFrequencyPerWeek,
			c.FollowersLastUpdated); err != nil {
			return fmt.Errorf("upsert creator %s: %w", c.Username, err)
		}
	}
	return tx.Commit()
}

// UpsertReels upserts by media_pk.
func (p *Postgres) UpsertReels(ctx context.Context, rows []store.Reel) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reel upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instagram_reels (
			media_pk, creator_id, caption, hashtags, mentions, play_count, like_count,
			comment_count, save_count, share_count, video_url, thumbnail_url, posted_at,
			is_carousel, carousel_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (media_pk) DO UPDATE SET
			play_count = EXCLUDED.play_count,
			like_count = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			save_count = EXCLUDED.save_count,
			share_count = EXCLUDED.share_count,
			video_url = EXCLUDED.video_url,
			thumbnail_url = EXCLUDED.thumbnail_url
	`)
	if err != nil {
		return fmt.Errorf("prepare reel upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.MediaPK, r.CreatorID, r.Caption, pq.Array(r.Hashtags),
			pq.Array(r.Mentions), r.PlayCount, r.LikeCount, r.CommentCount, r.SaveCount, r.ShareCount,
			r.VideoURL, r.ThumbnailURL, r.PostedAt, r.IsCarousel, r.CarouselCount); err != nil {
			return fmt.Errorf("upsert reel %s: %w", r.MediaPK, err)
		}
	}
	return tx.Commit()
}

// UpsertInstagramPosts upserts by media_pk.
func (p *Postgres) UpsertInstagramPosts(ctx context.Context, rows []store.InstagramPost) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ig post upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instagram_posts (
			media_pk, creator_id, caption, hashtags, mentions, like_count, comment_count,
			save_count, share_count, image_urls, posted_at, is_carousel, carousel_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (media_pk) DO UPDATE SET
			like_count = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			save_count = EXCLUDED.save_count,
			share_count = EXCLUDED.share_count,
			image_urls = EXCLUDED.image_urls
	`)
	if err != nil {
		return fmt.Errorf("prepare ig post upsert: %w", err)
	}
	defer stmt.Close()

	for _, pst := range rows {
		if _, err := stmt.ExecContext(ctx, pst.MediaPK, pst.CreatorID, pst.Caption, pq.Array(pst.Hashtags),
			pq.Array(pst.Mentions), pst.LikeCount, pst.CommentCount, pst.SaveCount, pst.ShareCount,
			pq.Array(pst.ImageURLs), pst.PostedAt, pst.IsCarousel, pst.CarouselCount); err != nil {
			return fmt.Errorf("upsert ig post %s: %w", pst.MediaPK, err)
		}
	}
	return tx.Commit()
}
