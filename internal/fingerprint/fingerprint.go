// Package fingerprint turns a raw Observation into a weighted identification
// of the service behind it: vendor, product, version, and a 0-100 confidence
// score built from independently-matched evidence.
package fingerprint

import (
	"regexp"
	"strings"

	"github.com/snapetech/netindexer/internal/observation"
)

// Location names the part of an Observation an Evidence pattern searches.
type Location string

const (
	LocationBanner Location = "banner"
	LocationBody   Location = "body"
	LocationTitle  Location = "title"
	headerPrefix            = "header:"
)

// Header builds a Location that searches a specific response header.
func Header(name string) Location {
	return Location(headerPrefix + strings.ToLower(name))
}

// Evidence is one weighted regex check against one Location.
type Evidence struct {
	Location Location
	Pattern  *regexp.Regexp
	Weight   int
}

// Rule identifies one product or service family from accumulated Evidence.
// Evidence entries are independent: every matching entry contributes its
// weight, capped at 100 total.
type Rule struct {
	Name    string
	Type    string
	Vendor  string
	Product string
	Tags    []string

	Evidence []Evidence
}

// NewRule constructs a Rule ready to accumulate evidence via With.
func NewRule(name, typ, vendor, product string, tags ...string) *Rule {
	return &Rule{Name: name, Type: typ, Vendor: vendor, Product: product, Tags: tags}
}

// With adds a weighted evidence pattern and returns the Rule for chaining.
func (r *Rule) With(loc Location, pattern string, weight int) *Rule {
	r.Evidence = append(r.Evidence, Evidence{
		Location: loc,
		Pattern:  regexp.MustCompile("(?i)" + pattern),
		Weight:   weight,
	})
	return r
}

// evaluation is the per-rule outcome of matching a Rule against one
// Observation.
type evaluation struct {
	score       int
	matchedLocs []string
	lastGroups  []string
}

// evaluate scores obs against r. Every Evidence entry that matches
// contributes its Weight; the total is capped at 100. The capture groups of
// the last matching entry (in declaration order) that has any capture groups
// become version evidence; a later match without groups does not clear them.
func (r *Rule) evaluate(obs observation.Observation) evaluation {
	var ev evaluation
	for _, e := range r.Evidence {
		text, ok := textFor(obs, e.Location)
		if !ok || text == "" {
			continue
		}
		m := e.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		ev.score += e.Weight
		ev.matchedLocs = append(ev.matchedLocs, "Matched "+string(e.Location))
		if len(m) > 1 {
			ev.lastGroups = m[1:]
		}
	}
	if ev.score > 100 {
		ev.score = 100
	}
	return ev
}

// textFor resolves the text an Evidence's Location should search. The title
// location searches the body's rendered <title> text, not the raw markup.
func textFor(obs observation.Observation, loc Location) (string, bool) {
	switch {
	case loc == LocationBanner:
		return obs.Banner, true
	case loc == LocationBody:
		return obs.Body, true
	case loc == LocationTitle:
		return extractTitle(obs.Body), true
	case strings.HasPrefix(string(loc), headerPrefix):
		key := strings.TrimPrefix(string(loc), headerPrefix)
		return obs.Headers.Get(key), true
	default:
		return "", false
	}
}

// Result is the outcome of Analyze: the best-scoring Rule's identity, or the
// unknown zero value if nothing scored above zero.
type Result struct {
	ServiceType string
	Vendor      string
	Product     string
	Version     string
	Tags        []string
	Confidence  int
	Evidence    []string
}

func unknown() Result {
	return Result{ServiceType: "unknown", Vendor: "unknown", Product: "unknown"}
}

// Analyze scores obs against every rule in rules and returns the identity of
// the single highest-scoring rule. Ties favor whichever rule was declared
// first, since a later rule must strictly exceed the current best to win.
func Analyze(obs observation.Observation, rules []*Rule) Result {
	result := unknown()
	best := 0

	for _, r := range rules {
		ev := r.evaluate(obs)
		if ev.score > best {
			best = ev.score
			result.ServiceType = r.Type
			result.Vendor = orUnknown(r.Vendor)
			result.Product = orUnknown(r.Product)
			result.Tags = r.Tags
			result.Confidence = ev.score
			result.Evidence = ev.matchedLocs
			result.Version = ""
			if len(ev.lastGroups) > 0 {
				result.Version = ev.lastGroups[0]
			}
		}
	}
	return result
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
