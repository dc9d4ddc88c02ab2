package instagram

import "strings"

// ExternalLinkType mirrors store.ExternalLinkType without importing the
// store package — the classifier is a pure string function with no
// persistence dependency.
type ExternalLinkType string

const (
	LinkOnlyFans    ExternalLinkType = "onlyfans"
	LinkLinktree    ExternalLinkType = "linktree"
	LinkAllMyLinks  ExternalLinkType = "allmylinks"
	LinkBeacons     ExternalLinkType = "beacons"
	LinkBiolink     ExternalLinkType = "biolink"
	LinkFansly      ExternalLinkType = "fansly"
	LinkMym         ExternalLinkType = "mym"
	LinkPatreon     ExternalLinkType = "patreon"
	LinkCashapp     ExternalLinkType = "cashapp"
	LinkPaypal      ExternalLinkType = "paypal"
	LinkTwitter     ExternalLinkType = "twitter"
	LinkYoutube     ExternalLinkType = "youtube"
	LinkTiktok      ExternalLinkType = "tiktok"
	LinkSnapchat    ExternalLinkType = "snapchat"
	LinkTelegram    ExternalLinkType = "telegram"
	LinkDiscord     ExternalLinkType = "discord"
	LinkPersonal    ExternalLinkType = "personal_site"
	LinkOther       ExternalLinkType = "other"
)

// classificationOrder is the fixed priority order §4.5.3 requires:
// case-insensitive substring matching, first match wins.
var classificationOrder = []struct {
	substr string
	tag    ExternalLinkType
}{
	{"onlyfans.com", LinkOnlyFans},
	{"linktr.ee", LinkLinktree},
	{"allmylinks.com", LinkAllMyLinks},
	{"beacons.ai", LinkBeacons},
	{"bio.link", LinkBiolink},
	{"fansly.com", LinkFansly},
	{"mym.fans", LinkMym},
	{"patreon.com", LinkPatreon},
	{"cash.app", LinkCashapp},
	{"paypal.com", LinkPaypal},
	{"paypal.me", LinkPaypal},
	{"twitter.com", LinkTwitter},
	{"x.com", LinkTwitter},
	{"youtube.com", LinkYoutube},
	{"youtu.be", LinkYoutube},
	{"tiktok.com", LinkTiktok},
	{"snapchat.com", LinkSnapchat},
	{"t.me", LinkTelegram},
	{"telegram.me", LinkTelegram},
	{"discord.gg", LinkDiscord},
	{"discord.com", LinkDiscord},
}

// ClassifyExternalURL maps a bio external_url to a tag by case-insensitive
// substring matching in fixed priority order, falling back to
// personal_site for a non-empty URL with no known host, or other
// otherwise (§4.5.3).
func ClassifyExternalURL(url string) ExternalLinkType {
	if url == "" {
		return LinkOther
	}
	lower := strings.ToLower(url)
	for _, entry := range classificationOrder {
		if strings.Contains(lower, entry.substr) {
			return entry.tag
		}
	}
	return LinkPersonal
}

// ExtractBioLinks pulls bare URLs out of a biography string — Instagram
// bios often contain link-in-bio style text with one or more URLs.
func ExtractBioLinks(biography string) []string {
	var links []string
	for _, word := range strings.Fields(biography) {
		if strings.HasPrefix(word, "http://") || strings.HasPrefix(word, "https://") {
			links = append(links, word)
		}
	}
	return links
}

// extractHashtags pulls #tag tokens out of a caption.
func extractHashtags(caption string) []string {
	return extractTokens(caption, '#')
}

// extractMentions pulls @user tokens out of a caption.
func extractMentions(caption string) []string {
	return extractTokens(caption, '@')
}

func extractTokens(text string, marker byte) []string {
	var tokens []string
	for _, word := range strings.Fields(text) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r == '_' || byte(r) == marker)
		})
		if len(word) > 1 && word[0] == marker {
			tokens = append(tokens, word)
		}
	}
	return tokens
}
