package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/b9dashboard/harvester/internal/store"
)

// GetSubredditNamesByReview backs the Ok/No Seller target lists (§4.4.1)
// and the per-status skip caches (§4.4.2).
func (p *Postgres) GetSubredditNamesByReview(ctx context.Context, review store.Review) ([]string, error) {
	return p.queryNames(ctx, `SELECT name FROM reddit_subreddits WHERE review = $1`, string(review))
}

// GetSubredditNamesWithNullReview implements the "IS NULL filtering for the
// NULL-review subreddit scan" capability required by §6.1.
func (p *Postgres) GetSubredditNamesWithNullReview(ctx context.Context) ([]string, error) {
	return p.queryNames(ctx, `SELECT name FROM reddit_subreddits WHERE review IS NULL`)
}

// GetAllSubredditNames backs all_subreddits_cache (§4.4.2): every subreddit
// name currently in the store, loaded once per cycle.
func (p *Postgres) GetAllSubredditNames(ctx context.Context) ([]string, error) {
	return p.queryNames(ctx, `SELECT name FROM reddit_subreddits`)
}

func (p *Postgres) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subreddit names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan subreddit name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// GetSubredditMetadata loads the curated fields (review, primary_category,
// tags, over18) for a set of names, powering subreddit_metadata_cache, which
// the engine loads at cycle start and reads as its per-subreddit preload.
func (p *Postgres) GetSubredditMetadata(ctx context.Context, names []string) (map[string]store.SubredditMetadata, error) {
	out := make(map[string]store.SubredditMetadata, len(names))
	if len(names) == 0 {
		return out, nil
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT name, review, primary_category, tags, over18
		FROM reddit_subreddits
		WHERE name = ANY($1)
	`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("query subreddit metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name            string
			review          *string
			primaryCategory *string
			tags            []string
			over18          bool
		)
		if err := rows.Scan(&name, &review, &primaryCategory, pq.Array(&tags), &over18); err != nil {
			return nil, fmt.Errorf("scan subreddit metadata: %w", err)
		}
		meta := store.SubredditMetadata{PrimaryCategory: primaryCategory, Tags: tags, Over18: over18}
		if review != nil {
			r := store.Review(*review)
			meta.Review = &r
		}
		out[name] = meta
	}
	return out, rows.Err()
}

// UpsertSubreddits upserts by name, preserving whatever curated fields the
// caller has already merged in (invariant 1, §8): this method writes
// exactly the Subreddit values it is given and never re-derives them.
func (p *Postgres) UpsertSubreddits(ctx context.Context, rows []store.Subreddit) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin subreddit upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reddit_subreddits (
			name, subscribers, created_utc, description, rules, allow_images, over18,
			avg_upvotes_per_post, engagement, subreddit_score, verification_required,
			review, primary_category, tags, last_scraped_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (name) DO UPDATE SET
			subscribers = EXCLUDED.subscribers,
			created_utc = EXCLUDED.created_utc,
			description = EXCLUDED.description,
			rules = EXCLUDED.rules,
			allow_images = EXCLUDED.allow_images,
			over18 = EXCLUDED.over18,
			avg_upvotes_per_post = EXCLUDED.avg_upvotes_per_post,
			engagement = EXCLUDED.engagement,
			subreddit_score = EXCLUDED.subreddit_score,
			verification_required = EXCLUDED.verification_required,
			review = EXCLUDED.review,
			primary_category = EXCLUDED.primary_category,
			tags = EXCLUDED.tags,
			last_scraped_at = COALESCE(EXCLUDED.last_scraped_at, reddit_subreddits.last_scraped_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare subreddit upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range rows {
		var review *string
		if s.Review != nil {
			r := string(*s.Review)
			review = &r
		}
		if _, err := stmt.ExecContext(ctx, s.Name, s.Subscribers, s.CreatedUTC, s.Description, s.Rules,
			s.AllowImages, s.Over18, s.AvgUpvotesPerPost, s.Engagement, s.SubredditScore,
			s.VerificationRequired, review, s.PrimaryCategory, pq.Array(s.Tags), s.LastScrapedAt); err != nil {
			return fmt.Errorf("upsert subreddit %s: %w", s.Name, err)
		}
	}
	return tx.Commit()
}

// UpsertUsers upserts by username; minimal records only set username and
// last_scraped_at, satisfying a post's author FK (§3 RedditUser).
func (p *Postgres) UpsertUsers(ctx context.Context, rows []store.RedditUser) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reddit_users (username, comment_karma, link_karma, account_age_utc, last_scraped_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (username) DO UPDATE SET
			comment_karma = CASE WHEN EXCLUDED.comment_karma = 0 AND reddit_users.comment_karma != 0
				THEN reddit_users.comment_karma ELSE EXCLUDED.comment_karma END,
			link_karma = CASE WHEN EXCLUDED.link_karma = 0 AND reddit_users.link_karma != 0
				THEN reddit_users.link_karma ELSE EXCLUDED.link_karma END,
			account_age_utc = CASE WHEN EXCLUDED.account_age_utc = 0 AND reddit_users.account_age_utc != 0
				THEN reddit_users.account_age_utc ELSE EXCLUDED.account_age_utc END,
			last_scraped_at = EXCLUDED.last_scraped_at
	`)
	if err != nil {
		return fmt.Errorf("prepare user upsert: %w", err)
	}
	defer stmt.Close()

	for _, u := range rows {
		if _, err := stmt.ExecContext(ctx, u.Username, u.CommentKarma, u.LinkKarma, u.AccountAgeUTC, u.LastScrapedAt); err != nil {
			return fmt.Errorf("upsert user %s: %w", u.Username, err)
		}
	}
	return tx.Commit()
}

// UpsertPosts upserts by reddit_id, carrying the denormalized
// sub_primary_category/sub_tags/sub_over18 fields (§3 Post, §4.4.5).
func (p *Postgres) UpsertPosts(ctx context.Context, rows []store.Post) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin post upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reddit_posts (
			reddit_id, subreddit_name, author_username, title, score, num_comments,
			created_utc, is_self, is_video, is_gallery, url,
			post_length, posting_hour, posting_day, comment_to_upvote_ratio, content_type,
			sub_primary_category, sub_tags, sub_over18
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (reddit_id) DO UPDATE SET
			score = EXCLUDED.score,
			num_comments = EXCLUDED.num_comments,
			comment_to_upvote_ratio = EXCLUDED.comment_to_upvote_ratio,
			sub_primary_category = EXCLUDED.sub_primary_category,
			sub_tags = EXCLUDED.sub_tags,
			sub_over18 = EXCLUDED.sub_over18
	`)
	if err != nil {
		return fmt.Errorf("prepare post upsert: %w", err)
	}
	defer stmt.Close()

	for _, post := range rows {
		if _, err := stmt.ExecContext(ctx, post.RedditID, post.Subreddit, post.Author, post.Title,
			post.Score, post.NumComments, post.CreatedUTC, post.IsSelf, post.IsVideo, post.IsGallery,
			post.URL, post.PostLength, post.PostingHour, post.PostingDay, post.CommentToUpvoteRatio,
			string(post.ContentType), post.SubPrimaryCategory, pq.Array(post.SubTags), post.SubOver18); err != nil {
			return fmt.Errorf("upsert post %s: %w", post.RedditID, err)
		}
	}
	return tx.Commit()
}
