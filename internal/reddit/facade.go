// Package reddit implements C4 (the typed Reddit API facade), C7 (the
// scraper engine state machine), and C11 (the rule-based auto-classifier),
// grounded on reddit_scraper.py and reddit_controller.py from the original
// source and generalized from the teacher's RocketAPI client style
// (pkg/external/rocketapi.go).
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/b9dashboard/harvester/internal/httpclient"
)

// ErrKind tags a facade-level failure so the engine can branch on it
// without inspecting error strings (§4.3, §7).
type ErrKind string

const (
	ErrBanned    ErrKind = "banned"
	ErrForbidden ErrKind = "forbidden"
	ErrNotFound  ErrKind = "not_found"
	ErrTimeout   ErrKind = "timeout"
	ErrNetwork   ErrKind = "network"
)

// FacadeError wraps an ErrKind so callers can use errors.As.
type FacadeError struct {
	Kind ErrKind
}

func (e *FacadeError) Error() string {
	return fmt.Sprintf("reddit: %s", e.Kind)
}

func fromOutcome(o httpclient.Outcome) error {
	var kind ErrKind
	switch o {
	case httpclient.OutcomeBanned:
		kind = ErrBanned
	case httpclient.OutcomeForbidden:
		kind = ErrForbidden
	case httpclient.OutcomeNotFound:
		kind = ErrNotFound
	case httpclient.OutcomeTimeout:
		kind = ErrTimeout
	default:
		kind = ErrNetwork
	}
	return &FacadeError{Kind: kind}
}

// SubredditInfo is the typed result of GetSubredditInfo.
type SubredditInfo struct {
	Name        string
	Subscribers int64
	CreatedUTC  int64
	Description string
	AllowImages bool
	Over18      bool
}

// Rule is one entry from GetSubredditRules.
type Rule struct {
	ShortName   string
	Description string
}

// PostSummary is one entry from a post listing (hot/top/user submitted).
type PostSummary struct {
	ID          string
	Subreddit   string
	Author      string
	Title       string
	Score       int64
	NumComments int64
	CreatedUTC  int64
	IsSelf      bool
	IsVideo     bool
	IsGallery   bool
	URL         string
}

// UserInfo is the typed result of GetUserInfo.
type UserInfo struct {
	Username      string
	CommentKarma  int64
	LinkKarma     int64
	AccountAgeUTC int64
}

// Facade is the thin typed wrapper around the proxied HTTP client (C4).
type Facade struct {
	http *httpclient.Client
}

// NewFacade builds a Facade over an already-configured httpclient.Client.
func NewFacade(client *httpclient.Client) *Facade {
	return &Facade{http: client}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type subredditAboutResponse struct {
	Data struct {
		DisplayName           string `json:"display_name"`
		Subscribers           int64  `json:"subscribers"`
		CreatedUTC            int64  `json:"created_utc"`
		PublicDescription     string `json:"public_description"`
		Description           string `json:"description"`
		SubmitTextHTML        string `json:"submit_text_html"`
		Over18                bool   `json:"over18"`
		AllowImages           bool   `json:"allow_images"`
		Reason                string `json:"reason"`
	} `json:"data"`
	Reason string `json:"reason"`
}

type postData struct {
	ID          string `json:"id"`
	Subreddit   string `json:"subreddit"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Score       int64  `json:"score"`
	NumComments int64  `json:"num_comments"`
	CreatedUTC  int64  `json:"created_utc"`
	IsSelf      bool   `json:"is_self"`
	IsVideo     bool   `json:"is_video"`
	IsGallery   bool   `json:"is_gallery"`
	URL         string `json:"url"`
}

type userAboutResponse struct {
	Data struct {
		Name         string `json:"name"`
		CommentKarma int64  `json:"comment_karma"`
		LinkKarma    int64  `json:"link_karma"`
		CreatedUTC   int64  `json:"created_utc"`
	} `json:"data"`
}

// GetSubredditInfo fetches /r/{name}/about.json.
func (f *Facade) GetSubredditInfo(ctx context.Context, name string) (*SubredditInfo, error) {
	url := fmt.Sprintf("https://www.reddit.com/r/%s/about.json", name)
	result, err := f.http.Get(ctx, url, httpclient.NotFoundIsBanned)
	if err != nil {
		return nil, err
	}
	if result.Outcome != httpclient.OutcomeOK {
		return nil, fromOutcome(result.Outcome)
	}

	var resp subredditAboutResponse
	if err := httpclient.DecodeJSON(result.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode subreddit info: %w", err)
	}
	if strings.EqualFold(resp.Reason, "banned") {
		return nil, &FacadeError{Kind: ErrBanned}
	}

	desc := resp.Data.PublicDescription
	if desc == "" {
		desc = resp.Data.Description
	}
	return &SubredditInfo{
		Name:        strings.ToLower(name),
		Subscribers: resp.Data.Subscribers,
		CreatedUTC:  resp.Data.CreatedUTC,
		Description: desc,
		AllowImages: resp.Data.AllowImages,
		Over18:      resp.Data.Over18,
	}, nil
}

// GetSubredditRules fetches /r/{name}/about/rules.json. Returns an empty
// slice (not an error) on any failure, per §4.3's tolerant-decode policy.
func (f *Facade) GetSubredditRules(ctx context.Context, name string) []Rule {
	url := fmt.Sprintf("https://www.reddit.com/r/%s/about/rules.json", name)
	result, err := f.http.Get(ctx, url, httpclient.NotFoundIsBanned)
	if err != nil || result.Outcome != httpclient.OutcomeOK {
		return nil
	}

	var resp struct {
		Rules []struct {
			ShortName         string `json:"short_name"`
			Description       string `json:"description"`
			ViolationReason   string `json:"violation_reason"`
		} `json:"rules"`
	}
	if err := httpclient.DecodeJSON(result.Body, &resp); err != nil {
		return nil
	}

	rules := make([]Rule, 0, len(resp.Rules))
	for _, r := range resp.Rules {
		rules = append(rules, Rule{ShortName: r.ShortName, Description: r.Description})
	}
	return rules
}

// GetSubredditHotPosts fetches /r/{name}/hot.json?limit=N.
func (f *Facade) GetSubredditHotPosts(ctx context.Context, name string, limit int) []PostSummary {
	url := fmt.Sprintf("https://www.reddit.com/r/%s/hot.json?limit=%d", name, limit)
	return f.fetchPostListing(ctx, url)
}

// GetSubredditTopPosts fetches /r/{name}/top.json?t={timeFilter}&limit=N.
func (f *Facade) GetSubredditTopPosts(ctx context.Context, name, timeFilter string, limit int) []PostSummary {
	url := fmt.Sprintf("https://www.reddit.com/r/%s/top.json?t=%s&limit=%d", name, timeFilter, limit)
	return f.fetchPostListing(ctx, url)
}

// GetUserInfo fetches /user/{name}/about.json.
func (f *Facade) GetUserInfo(ctx context.Context, name string) (*UserInfo, error) {
	url := fmt.Sprintf("https://www.reddit.com/user/%s/about.json", name)
	result, err := f.http.Get(ctx, url, httpclient.NotFoundIsBanned)
	if err != nil {
		return nil, err
	}
	if result.Outcome != httpclient.OutcomeOK {
		return nil, fromOutcome(result.Outcome)
	}

	var resp userAboutResponse
	if err := httpclient.DecodeJSON(result.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &UserInfo{
		Username:      strings.ToLower(resp.Data.Name),
		CommentKarma:  resp.Data.CommentKarma,
		LinkKarma:     resp.Data.LinkKarma,
		AccountAgeUTC: resp.Data.CreatedUTC,
	}, nil
}

// GetUserPosts fetches /user/{name}/submitted.json?limit=N. Returns an
// empty slice on any failure.
func (f *Facade) GetUserPosts(ctx context.Context, name string, limit int) []PostSummary {
	url := fmt.Sprintf("https://www.reddit.com/user/%s/submitted.json?limit=%d", name, limit)
	return f.fetchPostListing(ctx, url)
}

func (f *Facade) fetchPostListing(ctx context.Context, url string) []PostSummary {
	result, err := f.http.Get(ctx, url, httpclient.NotFoundIsContent)
	if err != nil || result.Outcome != httpclient.OutcomeOK {
		return nil
	}

	var listing redditListing
	if err := httpclient.DecodeJSON(result.Body, &listing); err != nil {
		return nil
	}

	posts := make([]PostSummary, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		var pd postData
		if err := json.Unmarshal(child.Data, &pd); err != nil {
			continue
		}
		posts = append(posts, PostSummary{
			ID:          pd.ID,
			Subreddit:   strings.ToLower(pd.Subreddit),
			Author:      strings.ToLower(pd.Author),
			Title:       pd.Title,
			Score:       pd.Score,
			NumComments: pd.NumComments,
			CreatedUTC:  pd.CreatedUTC,
			IsSelf:      pd.IsSelf,
			IsVideo:     pd.IsVideo,
			IsGallery:   pd.IsGallery,
			URL:         pd.URL,
		})
	}
	return posts
}
