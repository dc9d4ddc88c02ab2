// Package store defines the persistence contract (spec.md §6.1) shared by
// both harvesters, and the domain records that cross it. The concrete
// implementation lives in store/postgres; any backend honoring this
// interface is a valid Store.
package store

import "time"

// Proxy is one entry in the rotation pool (C1). Counters are mutated only
// via UpdateProxyStats; is_active=false proxies are never loaded by
// LoadActiveProxies.
type Proxy struct {
	ID           int64
	Service      string
	URL          string
	Username     string
	Password     string
	DisplayName  string
	Priority     int
	MaxThreads   int
	IsActive     bool
	SuccessCount int64
	ErrorCount   int64
}

// Review is the human curation field on a subreddit (GLOSSARY).
type Review string

const (
	ReviewOk         Review = "Ok"
	ReviewNoSeller   Review = "No Seller"
	ReviewNonRelated Review = "Non Related"
	ReviewUserFeed   Review = "User Feed"
	ReviewBanned     Review = "Banned"
)

// Subreddit is keyed by lowercase name (spec.md §3).
type Subreddit struct {
	Name string

	// Upstream-derived.
	Subscribers   int64
	CreatedUTC    int64
	Description   string
	Rules         string
	AllowImages   bool
	Over18        bool

	// Computed.
	AvgUpvotesPerPost     float64
	Engagement            float64
	SubredditScore        float64
	VerificationRequired  bool

	// Manually curated — preserved across upserts unless Review is nil.
	Review          *Review
	PrimaryCategory *string
	Tags            []string

	// Lifecycle.
	LastScrapedAt *time.Time
}

// SubredditMetadata is the slice of Subreddit preserved across upserts
// (subreddit_metadata_cache in spec.md §4.4.2).
type SubredditMetadata struct {
	Review          *Review
	PrimaryCategory *string
	Tags            []string
	Over18          bool
}

// ContentType classifies a Post's primary media (spec.md §3).
type ContentType string

const (
	ContentText    ContentType = "text"
	ContentImage   ContentType = "image"
	ContentVideo   ContentType = "video"
	ContentLink    ContentType = "link"
	ContentGallery ContentType = "gallery"
)

// Post is keyed by reddit_id; must never be written before its subreddit.
type Post struct {
	RedditID   string
	Subreddit  string
	Author     string
	Title      string
	Score      int64
	NumComments int64
	CreatedUTC int64
	IsSelf     bool
	IsVideo    bool
	IsGallery  bool
	URL        string

	PostLength            int
	PostingHour           int
	PostingDay            int
	CommentToUpvoteRatio  float64
	ContentType           ContentType

	SubPrimaryCategory *string
	SubTags            []string
	SubOver18          bool
}

// RedditUser is keyed by lowercase username. Minimal records (no karma/age)
// exist solely to satisfy a post's author FK.
type RedditUser struct {
	Username      string
	Minimal       bool
	CommentKarma  int64
	LinkKarma     int64
	AccountAgeUTC int64
	LastScrapedAt time.Time
}

// ExternalLinkType is C8's §4.5.3 classification.
type ExternalLinkType string

const (
	LinkOnlyFans     ExternalLinkType = "onlyfans"
	LinkLinktree     ExternalLinkType = "linktree"
	LinkAllMyLinks   ExternalLinkType = "allmylinks"
	LinkBeacons      ExternalLinkType = "beacons"
	LinkBiolink      ExternalLinkType = "biolink"
	LinkFansly       ExternalLinkType = "fansly"
	LinkMym          ExternalLinkType = "mym"
	LinkPatreon      ExternalLinkType = "patreon"
	LinkCashapp      ExternalLinkType = "cashapp"
	LinkPaypal       ExternalLinkType = "paypal"
	LinkTwitter      ExternalLinkType = "twitter"
	LinkYoutube      ExternalLinkType = "youtube"
	LinkTiktok       ExternalLinkType = "tiktok"
	LinkSnapchat     ExternalLinkType = "snapchat"
	LinkTelegram     ExternalLinkType = "telegram"
	LinkDiscord      ExternalLinkType = "discord"
	LinkPersonalSite ExternalLinkType = "personal_site"
	LinkOther        ExternalLinkType = "other"
)

// InstagramCreator is keyed by ig_user_id (and a unique username).
type InstagramCreator struct {
	IGUserID   string
	Username   string
	FullName   string
	Biography  string

	FollowerCount  int64
	FollowingCount int64
	MediaCount     int64

	IsVerified            bool
	IsBusinessAccount     bool
	IsProfessionalAccount bool
	IsPrivate             bool

	ExternalURL     string
	ExternalURLType ExternalLinkType
	BioLinks        []string

	ReviewStatus string

	// Cached analytics, updated atomically at the end of a successful pass.
	Analytics CreatorAnalytics

	FollowersLastUpdated time.Time
}

// CreatorAnalytics is the cached result of C9's pure computation.
type CreatorAnalytics struct {
	AvgReelViews    float64
	AvgReelLikes    float64
	AvgReelComments float64
	AvgReelSaves    float64
	AvgReelShares   float64

	AvgPostLikes    float64
	AvgPostComments float64
	AvgPostSaves    float64
	AvgPostShares   float64
	AvgPostEngagement float64

	TotalViews    int64
	TotalLikes    int64
	TotalComments int64
	TotalSaves    int64
	TotalShares   int64
	TotalEngagement int64

	EngagementRate         float64
	CommentToLikeRatio     float64
	SaveToLikeRatio        float64
	ReelsVsPostsPerformance float64

	ViralContentCount int
	ViralContentRate  float64

	BestContentType string

	PostingFrequencyPerWeek  float64
	PostingConsistencyScore  float64
	MostActiveDay            *int
	MostActiveHour           *int
	DaysSinceLastPost        *int

	DailyFollowerGrowthRate  float64
	WeeklyFollowerGrowthRate float64
}

// Reel is keyed by media_pk.
type Reel struct {
	MediaPK    string
	CreatorID  string
	Caption    string
	Hashtags   []string
	Mentions   []string
	PlayCount  int64
	LikeCount  int64
	CommentCount int64
	SaveCount  int64
	ShareCount int64
	VideoURL   string
	ThumbnailURL string
	PostedAt   time.Time
	IsCarousel bool
	CarouselCount int
}

// InstagramPost is keyed by media_pk.
type InstagramPost struct {
	MediaPK      string
	CreatorID    string
	Caption      string
	Hashtags     []string
	Mentions     []string
	LikeCount    int64
	CommentCount int64
	SaveCount    int64
	ShareCount   int64
	ImageURLs    []string
	PostedAt     time.Time
	IsCarousel   bool
	CarouselCount int
}

// FollowerHistory is append-only, one row per creator pass.
type FollowerHistory struct {
	CreatorID      string
	RecordedAt     time.Time
	FollowerCount  int64
	FollowingCount int64
	MediaCount     int64
}

// SystemControl is one row per script_name (spec.md §3).
type SystemControl struct {
	ScriptName     string
	Enabled        bool
	Status         string
	PID            *int
	LastHeartbeat  *time.Time
	StartedAt      *time.Time
	StoppedAt      *time.Time
	LastError      *string
	Config         map[string]any
}
