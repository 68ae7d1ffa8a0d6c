// Package criteria derives canonical search criteria from free-form text and
// plans the search queries that feed retrieval.
package criteria

import (
	"regexp"
	"strings"
	"time"
)

// Range is an inclusive numeric range. Max == 0 means open-ended.
type Range struct {
	Min int
	Max int
}

// SearchCriteria is the canonical, structured form of a lead search. It is
// immutable once produced; only the query planner consumes it.
type SearchCriteria struct {
	RawText     string
	Positions   []string
	CompanyType string
	Industry    string
	Location    string

	// TeamSize is nil when the text carries no size signal.
	TeamSize *Range

	// FoundedWindow bounds the founding year. Nil when absent; Max is always
	// populated (relative phrases normalize against the current year).
	FoundedWindow *Range

	Keywords     []string
	CompanyNames []string
}

var positionKeywords = []string{
	"founder", "co-founder", "ceo", "cto", "cfo", "coo", "president",
	"vp", "vice president", "director", "manager", "lead", "head",
	"engineer", "developer", "designer", "architect", "analyst",
	"executive", "officer", "partner", "owner", "principal",
}

var companyTypeKeywords = []struct {
	canonical string
	aliases   []string
}{
	{"startup", []string{"startup", "start-up", "startups"}},
	{"enterprise", []string{"enterprise", "corporation", "corporate"}},
	{"agency", []string{"agency", "agencies"}},
	{"consulting", []string{"consulting", "consultancy"}},
	{"saas", []string{"saas", "software as a service"}},
	{"ecommerce", []string{"e-commerce", "ecommerce", "online store"}},
	{"fintech", []string{"fintech", "financial technology"}},
	{"healthtech", []string{"healthtech", "health tech", "healthcare technology"}},
}

var industryKeywords = []string{
	"tech", "technology", "software", "ai", "ml", "machine learning",
	"cloud", "saas", "fintech", "healthcare", "education", "edtech",
	"marketing", "sales", "finance", "hr", "recruiting", "legal",
	"real estate", "construction", "manufacturing", "retail",
	"hospitality", "travel", "entertainment", "media", "gaming",
}

var locationKeywords = []string{
	"san francisco", "sf", "bay area", "silicon valley", "new york",
	"nyc", "boston", "austin", "seattle", "los angeles", "la",
	"chicago", "denver", "miami", "atlanta", "london", "berlin",
	"singapore", "bangalore", "toronto", "remote", "worldwide",
}

var (
	positionRes = compileKeywordRes(positionKeywords)
	industryRes = compileKeywordRes(industryKeywords)
	locationRes = compileKeywordRes(locationKeywords)

	companyTypeRes = func() [][]*regexp.Regexp {
		out := make([][]*regexp.Regexp, len(companyTypeKeywords))
		for i, ct := range companyTypeKeywords {
			out[i] = compileKeywordRes(ct.aliases)
		}
		return out
	}()
)

func compileKeywordRes(keywords []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		res[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `s?\b`)
	}
	return res
}

var (
	teamSizeRes = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*[-–]\s*(\d+)\s*(?:employees?|people|team members?|members?)`),
		regexp.MustCompile(`team\s+of\s+(\d+)(?:\s*[-–]\s*(\d+))?`),
		regexp.MustCompile(`(\d+)\s+to\s+(\d+)\s+(?:employees?|people)`),
		regexp.MustCompile(`(\d+)\s*(?:employees?|people|team members?)`),
	}

	foundedLastYearsRe = regexp.MustCompile(`(?:in\s+(?:the\s+)?last|within)\s+(\d+)\s+years?`)
	foundedInYearRe    = regexp.MustCompile(`(?:started|founded)\s+in\s+(\d{4})`)
	foundedSinceRe     = regexp.MustCompile(`since\s+(\d{4})`)

	keywordRe     = regexp.MustCompile(`\b[a-z]{3,}\b`)
	companyNameRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\b`)
)

var stopWords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"that": true, "have": true, "has": true, "had": true, "are": true,
	"was": true, "were": true, "been": true, "being": true, "this": true,
	"these": true, "those": true, "find": true, "from": true, "who": true,
}

// Extract derives SearchCriteria from free text. It never fails: text with
// no recognizable signal yields a criteria record carrying only the raw text.
func Extract(text string) SearchCriteria {
	return ExtractAt(text, time.Now())
}

// ExtractAt is Extract with an explicit clock, so founding-window phrases
// normalize against a known year.
func ExtractAt(text string, now time.Time) SearchCriteria {
	lower := strings.ToLower(text)

	return SearchCriteria{
		RawText:       strings.TrimSpace(text),
		Positions:     extractPositions(lower),
		CompanyType:   extractCompanyType(lower),
		Industry:      firstKeywordByOffset(lower, industryKeywords, industryRes, false),
		Location:      firstKeywordByOffset(lower, locationKeywords, locationRes, true),
		TeamSize:      extractTeamSize(lower),
		FoundedWindow: extractFoundedWindow(lower, now.Year()),
		Keywords:      extractKeywords(lower),
		CompanyNames:  extractCompanyNames(text),
	}
}

// extractPositions returns every matched position keyword, ordered by first
// occurrence in the text so downstream query order is stable.
func extractPositions(lower string) []string {
	type hit struct {
		offset int
		title  string
	}
	var hits []hit
	seen := map[string]bool{}
	for i, re := range positionRes {
		loc := re.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		title := titleCase(positionKeywords[i])
		if seen[title] {
			continue
		}
		seen[title] = true
		hits = append(hits, hit{offset: loc[0], title: title})
	}
	// Insertion sort keeps ties in table order.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].offset < hits[j-1].offset; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.title
	}
	return out
}

// extractCompanyType resolves conflicting type keywords (say, both "startup"
// and "enterprise") by keeping the one occurring earliest in the text.
func extractCompanyType(lower string) string {
	best := ""
	bestOffset := -1
	for i, ct := range companyTypeKeywords {
		for _, re := range companyTypeRes[i] {
			loc := re.FindStringIndex(lower)
			if loc == nil {
				continue
			}
			if bestOffset < 0 || loc[0] < bestOffset {
				best = ct.canonical
				bestOffset = loc[0]
			}
		}
	}
	return best
}

func firstKeywordByOffset(lower string, keywords []string, res []*regexp.Regexp, title bool) string {
	best := ""
	bestOffset := -1
	for i, re := range res {
		loc := re.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		kw := keywords[i]
		// Prefer the earliest hit; on the same offset prefer the longer
		// keyword so "san francisco" beats its "sf"-style abbreviations.
		if bestOffset < 0 || loc[0] < bestOffset || (loc[0] == bestOffset && len(kw) > len(best)) {
			best = kw
			bestOffset = loc[0]
		}
	}
	if best == "" {
		return ""
	}
	if title {
		return titleCase(best)
	}
	return best
}

func extractTeamSize(lower string) *Range {
	for _, re := range teamSizeRes {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		nums := make([]int, 0, 2)
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			nums = append(nums, atoi(g))
		}
		switch len(nums) {
		case 2:
			return &Range{Min: nums[0], Max: nums[1]}
		case 1:
			// A lone qualifying number is a floor, not an exact size.
			return &Range{Min: nums[0]}
		}
	}
	return nil
}

func extractFoundedWindow(lower string, currentYear int) *Range {
	if m := foundedLastYearsRe.FindStringSubmatch(lower); m != nil {
		return &Range{Min: currentYear - atoi(m[1]), Max: currentYear}
	}
	if m := foundedInYearRe.FindStringSubmatch(lower); m != nil {
		y := atoi(m[1])
		return &Range{Min: y, Max: y}
	}
	if m := foundedSinceRe.FindStringSubmatch(lower); m != nil {
		return &Range{Min: atoi(m[1]), Max: currentYear}
	}
	return nil
}

func extractKeywords(lower string) []string {
	words := keywordRe.FindAllString(lower, -1)
	seen := map[string]bool{}
	var out []string
	for _, w := range words {
		if stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == 10 {
			break
		}
	}
	return out
}

func extractCompanyNames(text string) []string {
	matches := companyNameRe.FindAllString(text, -1)
	skip := map[string]bool{
		"The": true, "A": true, "An": true, "In": true, "On": true,
		"At": true, "To": true, "For": true, "Find": true,
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		if skip[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func titleCase(s string) string {
	var b strings.Builder
	prevBoundary := true
	for _, r := range s {
		switch {
		case r == ' ' || r == '-':
			prevBoundary = true
			b.WriteRune(r)
		case prevBoundary && r >= 'a' && r <= 'z':
			b.WriteRune(r - 32)
			prevBoundary = false
		default:
			b.WriteRune(r)
			prevBoundary = false
		}
	}
	return b.String()
}
