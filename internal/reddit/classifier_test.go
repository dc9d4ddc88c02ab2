package reddit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyNonRelatedMatches(t *testing.T) {
	matched, keyword := ClassifyNonRelated("no rule34 content allowed here", "")
	assert.True(t, matched)
	assert.Equal(t, "rule34", keyword)
}

func TestClassifyNonRelatedNoMatch(t *testing.T) {
	matched, keyword := ClassifyNonRelated("be respectful, no spam", "a friendly community")
	assert.False(t, matched)
	assert.Empty(t, keyword)
}

func TestClassifyNonRelatedCaseInsensitive(t *testing.T) {
	matched, keyword := ClassifyNonRelated("", "Welcome to our HENTAI fan page")
	assert.True(t, matched)
	assert.Equal(t, "hentai", keyword)
}

func TestRequiresVerificationTrue(t *testing.T) {
	assert.True(t, RequiresVerification("you must be verified to post", ""))
}

func TestRequiresVerificationFalse(t *testing.T) {
	assert.False(t, RequiresVerification("be nice", "a subreddit about cats"))
}

func TestCombineRuleTextSkipsEmpty(t *testing.T) {
	text := CombineRuleText([]Rule{{Description: "rule one"}, {Description: ""}, {Description: "rule two"}})
	assert.Equal(t, "rule one rule two", text)
}
