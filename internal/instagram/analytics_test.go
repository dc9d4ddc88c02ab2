package instagram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeAnalyticsZeroInputIsSafe(t *testing.T) {
	out := ComputeAnalytics(AnalyticsInput{FollowerCount: 1000, Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.Zero(t, out.AvgReelViews)
	assert.Zero(t, out.EngagementRate)
	assert.Zero(t, out.ViralContentCount)
	assert.Nil(t, out.MostActiveDay)
	assert.Nil(t, out.DaysSinceLastPost)
}

func TestComputeAnalyticsDeterministic(t *testing.T) {
	in := AnalyticsInput{
		Reels:         []Media{{PlayCount: 100, LikeCount: 10, PostedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}},
		Posts:         []Media{{LikeCount: 20, CommentCount: 2, PostedAt: time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC)}},
		FollowerCount: 1000,
		Now:           time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	a := ComputeAnalytics(in)
	b := ComputeAnalytics(in)
	assert.Equal(t, a, b)
}

func TestViralDetectionMonotonicity(t *testing.T) {
	in := AnalyticsInput{
		Reels: []Media{
			{PlayCount: 200000, PostedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			{PlayCount: 10000, PostedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		},
		ViralMinViews: 50000,
		Now:           time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}

	in.ViralMultiplier = 2.0
	low := ComputeAnalytics(in)

	in.ViralMultiplier = 10.0
	high := ComputeAnalytics(in)

	assert.GreaterOrEqual(t, low.ViralContentCount, high.ViralContentCount)
}

func TestEngagementRateDecreasesWithMoreFollowers(t *testing.T) {
	base := AnalyticsInput{
		Posts:         []Media{{LikeCount: 100, CommentCount: 10}},
		Now:           time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}

	base.FollowerCount = 1000
	low := ComputeAnalytics(base)

	base.FollowerCount = 10000
	high := ComputeAnalytics(base)

	assert.Greater(t, low.EngagementRate, high.EngagementRate)
}

func TestBestContentTypeUnknownWhenBothZero(t *testing.T) {
	assert.Equal(t, "unknown", bestContentType(0, 0))
}

func TestBestContentTypeReelsDominance(t *testing.T) {
	assert.Equal(t, "reels", bestContentType(30, 10))
}

func TestBestContentTypeMixed(t *testing.T) {
	assert.Equal(t, "mixed", bestContentType(12, 10))
}

func TestClassifyExternalURLPriority(t *testing.T) {
	assert.Equal(t, LinkOnlyFans, ClassifyExternalURL("https://onlyfans.com/creator"))
	assert.Equal(t, LinkLinktree, ClassifyExternalURL("https://linktr.ee/creator"))
	assert.Equal(t, LinkPersonal, ClassifyExternalURL("https://mywebsite.example"))
	assert.Equal(t, LinkOther, ClassifyExternalURL(""))
}

func TestExtractBioLinksFindsURLs(t *testing.T) {
	links := ExtractBioLinks("check me out: https://linktr.ee/me and also https://onlyfans.com/me")
	assert.Equal(t, []string{"https://linktr.ee/me", "https://onlyfans.com/me"}, links)
}
