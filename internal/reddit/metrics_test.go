package reddit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMetricsHappyPath(t *testing.T) {
	posts := []PostSummary{{Score: 10, NumComments: 2}}
	m := ComputeMetrics(posts)
	assert.Equal(t, 10.0, m.AvgUpvotesPerPost)
	assert.InDelta(t, 0.2, m.Engagement, 0.0001)
	assert.InDelta(t, 44.72, m.SubredditScore, 0.01)
}

func TestComputeMetricsZeroPosts(t *testing.T) {
	m := ComputeMetrics(nil)
	assert.Zero(t, m.AvgUpvotesPerPost)
	assert.Zero(t, m.Engagement)
	assert.Zero(t, m.SubredditScore)
}

func TestComputeMetricsZeroScoreIsSafe(t *testing.T) {
	posts := []PostSummary{{Score: 0, NumComments: 5}}
	m := ComputeMetrics(posts)
	assert.Zero(t, m.Engagement)
}

func TestContentTypeForPriorityOrder(t *testing.T) {
	assert.Equal(t, "gallery", ContentTypeFor(true, true, true, "x.jpg"))
	assert.Equal(t, "video", ContentTypeFor(false, true, true, "x.jpg"))
	assert.Equal(t, "text", ContentTypeFor(false, false, true, "x.jpg"))
	assert.Equal(t, "image", ContentTypeFor(false, false, false, "http://x.com/a.PNG"))
	assert.Equal(t, "link", ContentTypeFor(false, false, false, "http://x.com/article"))
}
