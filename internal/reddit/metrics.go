package reddit

import (
	"math"
	"strings"
)

// SubredditMetrics holds the computed fields from §4.4.3 step 6.
type SubredditMetrics struct {
	AvgUpvotesPerPost float64
	Engagement        float64
	SubredditScore    float64
}

// ComputeMetrics derives subreddit metrics from a set of top-weekly posts.
// Zero-safe: an empty post list yields all-zero metrics (§8 boundary test).
func ComputeMetrics(posts []PostSummary) SubredditMetrics {
	if len(posts) == 0 {
		return SubredditMetrics{}
	}

	var sumScore, sumComments int64
	for _, p := range posts {
		sumScore += p.Score
		sumComments += p.NumComments
	}

	avgUpvotes := float64(sumScore) / float64(len(posts))

	var engagement float64
	if sumScore != 0 {
		engagement = float64(sumComments) / float64(sumScore)
	}

	score := math.Sqrt(engagement * avgUpvotes * 1000)
	if math.IsNaN(score) {
		score = 0
	}

	return SubredditMetrics{
		AvgUpvotesPerPost: avgUpvotes,
		Engagement:        engagement,
		SubredditScore:    score,
	}
}

// ContentTypeFor derives a post's content_type per §4.4.5's derivation
// order: gallery → video → self-text → image-by-extension → link.
func ContentTypeFor(isGallery, isVideo, isSelf bool, url string) string {
	switch {
	case isGallery:
		return "gallery"
	case isVideo:
		return "video"
	case isSelf:
		return "text"
	case hasImageExtension(url):
		return "image"
	default:
		return "link"
	}
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}

func hasImageExtension(url string) bool {
	lower := strings.ToLower(url)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
