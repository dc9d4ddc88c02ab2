package reddit

import "strings"

// nonRelatedKeywords is the curated keyword list C11 scans for, spanning
// nine categories of content irrelevant to creator-promotion subreddits,
// grounded on analyze_rules_for_review in the original scraper.
var nonRelatedKeywords = []string{
	// Hentai/anime porn
	"hentai",
	"anime porn",
	"rule34",
	"cartoon porn",
	"animated porn",
	"ecchi",
	"doujin",
	"drawn porn",
	"manga porn",
	"anime girls",
	"waifu",
	"2d girls",
	"anime babes",
	// Extreme fetishes
	"bbw",
	"ssbbw",
	"feederism",
	"weight gain",
	"fat fetish",
	"scat",
	"watersports",
	"golden shower",
	"piss",
	"abdl",
	"diaper",
	"adult baby",
	"little space",
	"age play",
	"ddlg",
	"vore",
	"inflation",
	"transformation",
	"macro",
	"giantess",
	"furry",
	"yiff",
	"anthro",
	"fursuit",
	"anthropomorphic",
	"guro",
	"necro",
	"gore",
	"death",
	"snuff",
	"femdom",
	"findom",
	"financial domination",
	"paypig",
	"sissy",
	"pregnant",
	"breeding",
	"impregnation",
	"preggo",
	"cuckold",
	"cuck",
	"hotwife",
	"bull",
	"chastity",
	"denial",
	"locked",
	"keyholder",
	"ballbusting",
	"cbt",
	"cock torture",
	"latex",
	"rubber",
	"bondage gear",
	"bdsm equipment",
	// SFW content requiring nudity
	"nudity is required",
	"nudity required",
	"must be nude",
	"nudity mandatory",
	"nude only",
	"nudity is mandatory",
	"requires nudity",
	"no clothes allowed",
	"must show nudity",
	"nude content only",
	"full nudity required",
	"complete nudity",
	// Professional/career content
	"career advice",
	"job hunting",
	"resume help",
	"interview tips",
	"academic discussion",
	// Cooking/recipe content
	"cooking recipes",
	"baking recipes",
	"meal prep recipes",
	// Gaming communities
	"pc master race",
	"console gaming discussion",
	"indie game development",
	// Politics/government
	"government policy",
	"election discussion",
	"political debate",
	"city council",
	"local government",
	// Animal/pet care
	"veterinary advice",
	"pet care tips",
	"animal rescue",
	// Academic/research
	"scientific research",
	"academic papers",
	"peer review",
}

// verificationKeywords flags subreddits that require identity verification
// before posting — used to set Subreddit.VerificationRequired (§4.4.3
// step 6).
var verificationKeywords = []string{"verification", "verified", "verify"}

// ClassifyNonRelated scans concatenated rule text and description for the
// first matching Non-Related keyword, returning true and that keyword (for
// logging). Returns (false, "") when nothing matches — never an error
// (§7: "None is never an error").
func ClassifyNonRelated(rulesText, description string) (matched bool, keyword string) {
	combined := strings.ToLower(rulesText + " " + description)
	for _, kw := range nonRelatedKeywords {
		if strings.Contains(combined, kw) {
			return true, kw
		}
	}
	return false, ""
}

// RequiresVerification reports whether verification/verified/verify
// appears anywhere in the combined rules+description text.
func RequiresVerification(rulesText, description string) bool {
	combined := strings.ToLower(rulesText + " " + description)
	for _, kw := range verificationKeywords {
		if strings.Contains(combined, kw) {
			return true
		}
	}
	return false
}

// CombineRuleText joins rule descriptions with spaces, tolerating empty
// entries (§7 decode-tolerance policy).
func CombineRuleText(rules []Rule) string {
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Description != "" {
			parts = append(parts, r.Description)
		}
	}
	return strings.Join(parts, " ")
}
