package instagram

import (
	"math"
	"sort"
	"time"

	"github.com/b9dashboard/harvester/internal/store"
)

// AnalyticsInput bundles the pure inputs to ComputeAnalytics (§4.6).
type AnalyticsInput struct {
	Reels         []Media
	Posts         []Media
	FollowerCount int64

	ViralMinViews   int64
	ViralMultiplier float64

	DailyFollowerGrowthRate  float64
	WeeklyFollowerGrowthRate float64

	// Now anchors days_since_last_post so the function stays pure and
	// deterministic given its inputs (§4.6, §8 invariant 8).
	Now time.Time
}

// ComputeAnalytics is C9: a pure function over reels+posts+profile
// producing engagement/viral/posting-pattern metrics. No I/O, zero-safe on
// empty input (§8 boundary test), and deterministic when in.Now is set; a
// zero in.Now falls back to the current time.
func ComputeAnalytics(in AnalyticsInput) store.CreatorAnalytics {
	var out store.CreatorAnalytics
	out.DailyFollowerGrowthRate = in.DailyFollowerGrowthRate
	out.WeeklyFollowerGrowthRate = in.WeeklyFollowerGrowthRate

	reelCount := len(in.Reels)
	postCount := len(in.Posts)

	var sumReelViews, sumReelLikes, sumReelComments, sumReelSaves, sumReelShares int64
	for _, r := range in.Reels {
		sumReelViews += r.PlayCount
		sumReelLikes += r.LikeCount
		sumReelComments += r.CommentCount
		sumReelSaves += r.SaveCount
		sumReelShares += r.ShareCount
	}
	if reelCount > 0 {
		out.AvgReelViews = float64(sumReelViews) / float64(reelCount)
		out.AvgReelLikes = float64(sumReelLikes) / float64(reelCount)
		out.AvgReelComments = float64(sumReelComments) / float64(reelCount)
		out.AvgReelSaves = float64(sumReelSaves) / float64(reelCount)
		out.AvgReelShares = float64(sumReelShares) / float64(reelCount)
	}

	var sumPostLikes, sumPostComments, sumPostSaves, sumPostShares int64
	for _, p := range in.Posts {
		sumPostLikes += p.LikeCount
		sumPostComments += p.CommentCount
		sumPostSaves += p.SaveCount
		sumPostShares += p.ShareCount
	}
	if postCount > 0 {
		out.AvgPostLikes = float64(sumPostLikes) / float64(postCount)
		out.AvgPostComments = float64(sumPostComments) / float64(postCount)
		out.AvgPostSaves = float64(sumPostSaves) / float64(postCount)
		out.AvgPostShares = float64(sumPostShares) / float64(postCount)
		out.AvgPostEngagement = out.AvgPostLikes + out.AvgPostComments + out.AvgPostSaves + out.AvgPostShares
	}

	out.TotalViews = sumReelViews
	out.TotalLikes = sumReelLikes + sumPostLikes
	out.TotalComments = sumReelComments + sumPostComments
	out.TotalSaves = sumReelSaves + sumPostSaves
	out.TotalShares = sumReelShares + sumPostShares
	out.TotalEngagement = out.TotalLikes + out.TotalComments + out.TotalSaves + out.TotalShares

	totalItems := reelCount + postCount
	var avgEngagementPerItem float64
	if totalItems > 0 {
		avgEngagementPerItem = float64(out.TotalEngagement) / float64(totalItems)
	}
	if in.FollowerCount > 0 {
		out.EngagementRate = (avgEngagementPerItem / float64(in.FollowerCount)) * 100
	}

	if out.AvgReelLikes+out.AvgPostLikes > 0 {
		out.CommentToLikeRatio = (out.AvgReelComments + out.AvgPostComments) / (out.AvgReelLikes + out.AvgPostLikes)
		out.SaveToLikeRatio = (out.AvgReelSaves + out.AvgPostSaves) / (out.AvgReelLikes + out.AvgPostLikes)
	}

	reelEngagementAvg := out.AvgReelLikes + out.AvgReelComments + out.AvgReelSaves + out.AvgReelShares
	if out.AvgPostEngagement > 0 {
		out.ReelsVsPostsPerformance = reelEngagementAvg / out.AvgPostEngagement
	}

	viralMultiplier := in.ViralMultiplier
	if viralMultiplier <= 0 {
		viralMultiplier = 5.0
	}
	viralMinViews := in.ViralMinViews
	if viralMinViews <= 0 {
		viralMinViews = 50000
	}

	var viralCount int
	for _, r := range in.Reels {
		if r.PlayCount >= viralMinViews && float64(r.PlayCount) >= out.AvgReelViews*viralMultiplier {
			viralCount++
		}
	}
	for _, p := range in.Posts {
		engagement := float64(p.LikeCount + p.CommentCount + p.SaveCount + p.ShareCount)
		if engagement >= out.AvgPostEngagement*viralMultiplier {
			viralCount++
		}
	}
	out.ViralContentCount = viralCount
	if totalItems > 0 {
		out.ViralContentRate = float64(viralCount) / float64(totalItems) * 100
	}

	out.BestContentType = bestContentType(reelEngagementAvg, out.AvgPostEngagement)

	timestamps := collectTimestamps(in.Reels, in.Posts)
	out.PostingFrequencyPerWeek = postingFrequencyPerWeek(timestamps)
	out.PostingConsistencyScore = postingConsistencyScore(timestamps)
	day, hour := mostActive(timestamps)
	out.MostActiveDay = day
	out.MostActiveHour = hour
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	out.DaysSinceLastPost = daysSinceLastPost(timestamps, now)

	return out
}

// bestContentType applies a 1.5x dominance rule: reels win if their
// engagement average exceeds posts' by 1.5x (and vice versa); otherwise
// "mixed", or "unknown" if both are zero.
func bestContentType(reelEngagement, postEngagement float64) string {
	switch {
	case reelEngagement == 0 && postEngagement == 0:
		return "unknown"
	case postEngagement == 0 || reelEngagement >= postEngagement*1.5:
		return "reels"
	case reelEngagement == 0 || postEngagement >= reelEngagement*1.5:
		return "posts"
	default:
		return "mixed"
	}
}

func collectTimestamps(reels, posts []Media) []time.Time {
	var ts []time.Time
	for _, r := range reels {
		if !r.PostedAt.IsZero() {
			ts = append(ts, r.PostedAt)
		}
	}
	for _, p := range posts {
		if !p.PostedAt.IsZero() {
			ts = append(ts, p.PostedAt)
		}
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	return ts
}

func postingFrequencyPerWeek(ts []time.Time) float64 {
	if len(ts) < 2 {
		return 0
	}
	span := ts[len(ts)-1].Sub(ts[0])
	if span <= 0 {
		return 0
	}
	weeks := span.Hours() / (24 * 7)
	if weeks <= 0 {
		return 0
	}
	return float64(len(ts)) / weeks
}

func postingConsistencyScore(ts []time.Time) float64 {
	if len(ts) < 3 {
		return 0
	}
	intervals := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		intervals = append(intervals, ts[i].Sub(ts[i-1]).Hours())
	}
	avg := mean(intervals)
	if avg == 0 {
		return 0
	}
	sd := stddev(intervals, avg)
	score := 100 - (sd/avg)*100
	if score < 0 {
		return 0
	}
	return score
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, avg float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - avg
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// mostActive picks the histogram-mode weekday and hour-of-day across all
// posted timestamps.
func mostActive(ts []time.Time) (*int, *int) {
	if len(ts) == 0 {
		return nil, nil
	}
	dayCounts := make(map[int]int)
	hourCounts := make(map[int]int)
	for _, t := range ts {
		dayCounts[int(t.Weekday())]++
		hourCounts[t.Hour()]++
	}
	day := modeKey(dayCounts)
	hour := modeKey(hourCounts)
	return &day, &hour
}

func modeKey(counts map[int]int) int {
	bestKey, bestCount := 0, -1
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			bestKey, bestCount = k, counts[k]
		}
	}
	return bestKey
}

func daysSinceLastPost(ts []time.Time, now time.Time) *int {
	if len(ts) == 0 {
		return nil
	}
	days := int(now.Sub(ts[len(ts)-1]).Hours() / 24)
	return &days
}
