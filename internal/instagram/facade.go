// Package instagram implements C5 (the typed Instagram API facade), C9
// (the pure analytics computer), and C8 (the per-creator scraper engine),
// grounded on the teacher's RocketAPI client (pkg/external/rocketapi.go)
// for the rate-limited HTTP + retry-with-backoff shape, generalized to the
// three Instagram-proxy endpoints spec.md §6.2 names.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rs/zerolog/log"
)

// Facade wraps an Instagram-proxy HTTP API (x-rapidapi-key/host headers)
// behind a global requests-per-second gate (§4.5.1, §5).
type Facade struct {
	client              *http.Client
	limiter             *rate.Limiter
	apiKey              string
	apiHost             string
	baseURL             string
	rateLimitMaxRetries int
	retryBaseDelay      time.Duration
}

const (
	defaultRateLimitMaxRetries = 5
	defaultRetryBaseDelay      = 2 * time.Second
)

// NewFacade builds a Facade with the given global RPS cap and 429 retry
// budget.
func NewFacade(apiKey, apiHost string, requestsPerSecond int, rateLimitMaxRetries ...int) *Facade {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 55
	}
	maxRetries := defaultRateLimitMaxRetries
	if len(rateLimitMaxRetries) > 0 && rateLimitMaxRetries[0] > 0 {
		maxRetries = rateLimitMaxRetries[0]
	}
	return &Facade{
		client:              &http.Client{Timeout: 30 * time.Second},
		limiter:             rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		apiKey:              apiKey,
		apiHost:             apiHost,
		baseURL:             fmt.Sprintf("https://%s", apiHost),
		rateLimitMaxRetries: maxRetries,
		retryBaseDelay:      defaultRetryBaseDelay,
	}
}

// Profile is the typed result of GetProfile.
type Profile struct {
	IGUserID              string
	Username              string
	FullName              string
	Biography             string
	FollowerCount         int64
	FollowingCount        int64
	MediaCount            int64
	IsVerified            bool
	IsBusinessAccount     bool
	IsProfessionalAccount bool
	IsPrivate             bool
	ExternalURL           string
}

// Media is one reel or post entry, returned by GetReels/GetPosts.
type Media struct {
	MediaPK       string
	Caption       string
	PlayCount     int64
	LikeCount     int64
	CommentCount  int64
	SaveCount     int64
	ShareCount    int64
	VideoURL      string
	ThumbnailURL  string
	ImageURLs     []string
	PostedAt      time.Time
	IsCarousel    bool
	CarouselCount int
}

// ErrRateLimited signals a 429. do retries internally with exponential
// backoff up to rateLimitMaxRetries (§5 "Instagram... 429 triggers
// RateLimitError which is retried with exponential backoff up to
// retry_max_attempts"); callers only see it once that budget is spent.
var ErrRateLimited = fmt.Errorf("instagram: rate limited")

func (f *Facade) do(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	delay := f.retryBaseDelay
	if delay <= 0 {
		delay = defaultRetryBaseDelay
	}
	var lastErr error
	for attempt := 0; attempt <= f.rateLimitMaxRetries; attempt++ {
		body, err := f.doOnce(ctx, path, query)
		if err == nil {
			return body, nil
		}
		if err != ErrRateLimited {
			return nil, err
		}
		lastErr = err
		if attempt == f.rateLimitMaxRetries {
			break
		}
		log.Warn().Int("attempt", attempt+1).Dur("delay", delay).Msg("instagram rate limited, retrying with backoff")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func (f *Facade) doOnce(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("x-rapidapi-key", f.apiKey)
	req.Header.Set("x-rapidapi-host", f.apiHost)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("instagram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instagram request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read instagram response body: %w", err)
	}
	return body, nil
}

type profileResponse struct {
	Data struct {
		ID                    string `json:"id"`
		Username              string `json:"username"`
		FullName              string `json:"full_name"`
		Biography             string `json:"biography"`
		FollowerCount         int64  `json:"follower_count"`
		FollowingCount        int64  `json:"following_count"`
		MediaCount            int64  `json:"media_count"`
		IsVerified            bool   `json:"is_verified"`
		IsBusinessAccount     bool   `json:"is_business_account"`
		IsProfessionalAccount bool   `json:"is_professional_account"`
		IsPrivate             bool   `json:"is_private"`
		ExternalURL           string `json:"external_url"`
	} `json:"data"`
}

// GetProfile fetches a creator's profile by username.
func (f *Facade) GetProfile(ctx context.Context, username string) (*Profile, error) {
	body, err := f.do(ctx, "/v1/profile", map[string]string{"username": username})
	if err != nil {
		return nil, err
	}
	var resp profileResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &Profile{
		IGUserID:              resp.Data.ID,
		Username:              resp.Data.Username,
		FullName:              resp.Data.FullName,
		Biography:             resp.Data.Biography,
		FollowerCount:         resp.Data.FollowerCount,
		FollowingCount:        resp.Data.FollowingCount,
		MediaCount:            resp.Data.MediaCount,
		IsVerified:            resp.Data.IsVerified,
		IsBusinessAccount:     resp.Data.IsBusinessAccount,
		IsProfessionalAccount: resp.Data.IsProfessionalAccount,
		IsPrivate:             resp.Data.IsPrivate,
		ExternalURL:           resp.Data.ExternalURL,
	}, nil
}

type mediaItem struct {
	Media *mediaItem `json:"media,omitempty"` // nested wrapper some endpoints use
	PK         string `json:"pk"`
	Caption    string `json:"caption_text"`
	PlayCount  int64  `json:"play_count"`
	LikeCount  int64  `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	SaveCount    int64 `json:"save_count"`
	ShareCount   int64 `json:"share_count"`
	VideoURL     string `json:"video_url"`
	ImageURL     string `json:"image_url"`
	TakenAt      int64  `json:"taken_at"`
	CarouselMedia []struct {
		ImageURL string `json:"image_url"`
	} `json:"carousel_media"`
}

func (m mediaItem) unwrap() mediaItem {
	if m.Media != nil {
		return *m.Media
	}
	return m
}

func (m mediaItem) toMedia() Media {
	m = m.unwrap()
	out := Media{
		MediaPK:      m.PK,
		Caption:      m.Caption,
		PlayCount:    m.PlayCount,
		LikeCount:    m.LikeCount,
		CommentCount: m.CommentCount,
		SaveCount:    m.SaveCount,
		ShareCount:   m.ShareCount,
		VideoURL:     m.VideoURL,
		ThumbnailURL: m.ImageURL,
		PostedAt:     time.Unix(m.TakenAt, 0).UTC(),
	}
	if len(m.CarouselMedia) > 0 {
		out.IsCarousel = true
		out.CarouselCount = len(m.CarouselMedia)
		for _, c := range m.CarouselMedia {
			out.ImageURLs = append(out.ImageURLs, c.ImageURL)
		}
	} else if m.ImageURL != "" {
		out.ImageURLs = []string{m.ImageURL}
	}
	return out
}

type pagedResponse struct {
	Items []mediaItem `json:"items"`
	Paging struct {
		MoreAvailable bool   `json:"more_available"`
		MaxID         string `json:"max_id"`
	} `json:"paging_info"`
}

// GetReels fetches up to `limit` reels for an IG user id, paginating by
// max_id with the page size taken from the first response, and stopping
// when more_available is false, a short page arrives, or the limit is
// reached (§4.5.2 step 4, §6.1's "server-side page size... stop when a
// short page arrives").
func (f *Facade) GetReels(ctx context.Context, igUserID string, limit int) ([]Media, error) {
	return f.paginate(ctx, "/v1/reels", igUserID, limit)
}

// GetPosts fetches up to `limit` posts for an IG user id.
func (f *Facade) GetPosts(ctx context.Context, igUserID string, limit int) ([]Media, error) {
	return f.paginate(ctx, "/v1/posts", igUserID, limit)
}

func (f *Facade) paginate(ctx context.Context, path, igUserID string, limit int) ([]Media, error) {
	var out []Media
	maxID := ""
	pageSize := 0

	for len(out) < limit {
		query := map[string]string{"user_id": igUserID}
		if maxID != "" {
			query["max_id"] = maxID
		}
		body, err := f.do(ctx, path, query)
		if err != nil {
			return out, err
		}
		var resp pagedResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return out, fmt.Errorf("decode media page: %w", err)
		}

		if pageSize == 0 {
			pageSize = len(resp.Items)
		}
		for _, item := range resp.Items {
			out = append(out, item.toMedia())
		}

		if !resp.Paging.MoreAvailable || resp.Paging.MaxID == "" {
			break
		}
		if pageSize > 0 && len(resp.Items) < pageSize {
			break
		}
		maxID = resp.Paging.MaxID
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FetchWithEmptyRetry wraps a fetch call with the empty-response retry
// policy of §4.5.2 step 4: up to `attempts` calls in total, sleeping
// 2s → 5s → 12.5s (each delay 2.5x the last) between consecutive calls.
func FetchWithEmptyRetry(ctx context.Context, attempts int, fetch func() ([]Media, error)) ([]Media, error) {
	delay := 2 * time.Second
	var lastErr error
	for i := 0; i < attempts; i++ {
		media, err := fetch()
		if err != nil {
			lastErr = err
		} else if len(media) > 0 {
			return media, nil
		}
		if i == attempts-1 {
			break
		}
		log.Debug().Int("attempt", i+1).Dur("delay", delay).Msg("empty instagram media response, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * 2.5)
	}
	return nil, lastErr
}
