// Package useragent implements C2: a per-request browser-like User-Agent
// generator drawing from a weighted mix of rotating browser strings and a
// static fallback pool, grounded on the original scraper's generate_user_agent
// (proxy_manager.py) — no example repo in the retrieval pack ships a
// user-agent generation library, so this stays on math/rand + a literal pool
// rather than reaching for an out-of-corpus dependency.
package useragent

import (
	"fmt"
	"math/rand"
)

// Generator produces random, plausible User-Agent strings.
type Generator struct {
	pool []string
}

// NewGenerator builds a Generator with the teacher-style static fallback
// pool plus a small rotating set per browser family, standing in for the
// "dynamic library" half of spec.md §4.1's 75/25 split.
func NewGenerator() *Generator {
	return &Generator{
		pool: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		},
	}
}

var chromeVersions = []string{"118.0.0.0", "119.0.0.0", "120.0.0.0", "121.0.0.0"}
var firefoxVersions = []string{"117.0", "118.0", "119.0", "120.0"}

// Next returns one randomly generated User-Agent string. 75% of the time it
// synthesizes a fresh Chrome/Firefox/Safari/Edge/Opera string (the "dynamic
// library" path); the remaining 25% draws from the static fallback pool —
// matching the 75/25 split the original scraper used.
func (g *Generator) Next() string {
	if rand.Float64() < 0.75 {
		return g.synthesize()
	}
	return g.pool[rand.Intn(len(g.pool))]
}

func (g *Generator) synthesize() string {
	roll := rand.Float64()
	switch {
	case roll < 0.50:
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
			chromeVersions[rand.Intn(len(chromeVersions))])
	case roll < 0.70:
		return fmt.Sprintf("Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/%s",
			firefoxVersions[rand.Intn(len(firefoxVersions))])
	case roll < 0.85:
		return "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	case roll < 0.95:
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0"
	default:
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) OPR/105.0.0.0"
	}
}
