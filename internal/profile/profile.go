// Package profile parses fetched profile pages into structured person
// records. Markup on the source changes often, so every field is resolved
// through an ordered chain of extraction functions; the first that yields
// non-empty content wins and missing fields stay empty.
package profile

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/leadscout/leadscout/internal/retrieve"
)

// ExperienceEntry is one role in a profile's history, in page order (most
// recent first). Missing sub-fields default to empty.
type ExperienceEntry struct {
	Position  string `json:"position,omitempty"`
	Company   string `json:"company,omitempty"`
	DateRange string `json:"date_range,omitempty"`
}

// EducationEntry is one schooling record.
type EducationEntry struct {
	School string `json:"school,omitempty"`
	Degree string `json:"degree,omitempty"`
}

// PersonRecord is one extracted profile. Fields default to empty rather than
// null so merge logic never branches on absence.
type PersonRecord struct {
	Name            string            `json:"name"`
	Headline        string            `json:"headline,omitempty"`
	CurrentPosition string            `json:"current_position,omitempty"`
	CurrentCompany  string            `json:"current_company,omitempty"`
	Location        string            `json:"location,omitempty"`
	About           string            `json:"about,omitempty"`
	Experience      []ExperienceEntry `json:"experience,omitempty"`
	Education       []EducationEntry  `json:"education,omitempty"`
	SourceURL       string            `json:"source_url,omitempty"`
}

// Completeness counts populated fields; the aggregator prefers values from
// the more complete record when merged fields conflict.
func (r PersonRecord) Completeness() int {
	n := 0
	for _, f := range []string{r.Name, r.Headline, r.CurrentPosition, r.CurrentCompany, r.Location, r.About} {
		if f != "" {
			n++
		}
	}
	if len(r.Experience) > 0 {
		n++
	}
	if len(r.Education) > 0 {
		n++
	}
	return n
}

// ExtractionError reports a page that could not be turned into a record.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract profile from %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// fieldChain is an ordered list of pure extraction attempts for one field.
type fieldChain []func(*goquery.Document) string

func (c fieldChain) resolve(doc *goquery.Document) string {
	for _, fn := range c {
		if v := strings.TrimSpace(fn(doc)); v != "" {
			return v
		}
	}
	return ""
}

func text(selector string) func(*goquery.Document) string {
	return func(doc *goquery.Document) string {
		return doc.Find(selector).First().Text()
	}
}

func attr(selector, name string) func(*goquery.Document) string {
	return func(doc *goquery.Document) string {
		v, _ := doc.Find(selector).First().Attr(name)
		return v
	}
}

// boundedText rejects hits outside a length window; oversized matches mean
// the selector landed on a container, not the field.
func boundedText(selector string, maxLen int) func(*goquery.Document) string {
	return func(doc *goquery.Document) string {
		v := strings.TrimSpace(doc.Find(selector).First().Text())
		if v == "" || len(v) >= maxLen {
			return ""
		}
		return v
	}
}

var nameChain = fieldChain{
	text(`h1.text-heading-xlarge`),
	text(`h1[class*="top-card"]`),
	text(`h1.inline`),
	boundedText(`h1`, 120),
	func(doc *goquery.Document) string {
		v, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
		// og:title carries "Name - Headline | LinkedIn" style suffixes.
		for _, sep := range []string{" | ", " - "} {
			if i := strings.Index(v, sep); i > 0 {
				v = v[:i]
				break
			}
		}
		return v
	},
}

var headlineChain = fieldChain{
	boundedText(`div.text-body-medium`, 200),
	boundedText(`div[class*="headline"]`, 200),
	boundedText(`h2.mt1`, 200),
	boundedText(`div.mt1`, 200),
}

var aboutChain = fieldChain{
	text(`div[class*="pv-shared-text"] span[aria-hidden="true"]`),
	text(`section[class*="about"] p`),
	text(`section[class*="summary"] p`),
	attr(`meta[name="description"]`, "content"),
}

// Extract parses a fetched page into a PersonRecord. Absent fields stay
// empty; a page yielding no resolvable name at all is a malformed page.
func Extract(page *retrieve.Page) (PersonRecord, error) {
	rec := PersonRecord{SourceURL: page.URL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return rec, &ExtractionError{URL: page.URL, Err: err}
	}

	rec.Name = nameChain.resolve(doc)
	if rec.Name == "" {
		rec.Name = NameFromProfileURL(page.URL)
	}

	rec.Headline = headlineChain.resolve(doc)
	rec.CurrentPosition, rec.CurrentCompany = SplitHeadline(rec.Headline)
	rec.Location = extractLocation(doc)

	if about := aboutChain.resolve(doc); len(about) > 20 {
		if len(about) > 500 {
			about = about[:500]
		}
		rec.About = about
	}

	rec.Experience = extractExperience(doc)
	rec.Education = extractEducation(doc)

	if rec.Name == "" {
		return rec, &ExtractionError{URL: page.URL, Err: fmt.Errorf("no resolvable name")}
	}
	return rec, nil
}

// SplitHeadline splits a combined "position at company" headline on the
// first occurrence of the separator. Without a separator the whole string is
// the position; further occurrences stay inside the company part.
func SplitHeadline(headline string) (position, company string) {
	headline = strings.TrimSpace(headline)
	if headline == "" {
		return "", ""
	}
	parts := strings.SplitN(headline, " at ", 2)
	if len(parts) == 1 {
		return headline, ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func extractLocation(doc *goquery.Document) string {
	var out string
	doc.Find(`span.text-body-small, span[class*="location"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		v := strings.TrimSpace(sel.Text())
		// Locations read as "City, Region"; anything without a comma at this
		// selector depth is a badge or counter.
		if v != "" && len(v) < 100 && strings.Contains(v, ",") {
			out = v
			return false
		}
		return true
	})
	return out
}

var experienceSectionSelectors = []string{
	`section[data-section="experience"]`,
	`section#experience`,
	`div[id*="experience"]`,
}

func extractExperience(doc *goquery.Document) []ExperienceEntry {
	var out []ExperienceEntry
	for _, sectionSel := range experienceSectionSelectors {
		section := doc.Find(sectionSel).First()
		if section.Length() == 0 {
			continue
		}
		section.Find("li").EachWithBreak(func(_ int, item *goquery.Selection) bool {
			entry := ExperienceEntry{
				Position:  strings.TrimSpace(item.Find(`span[aria-hidden="true"]`).First().Text()),
				Company:   strings.TrimSpace(item.Find(`span.t-14, span[class*="t-normal"]`).First().Text()),
				DateRange: strings.TrimSpace(item.Find(`span[class*="date-range"], span.pvs-entity__caption-wrapper`).First().Text()),
			}
			if entry.Position == "" && entry.Company == "" {
				// Fall back to the item's own text as the position line.
				if v := strings.TrimSpace(item.Text()); v != "" && len(v) > 10 {
					if len(v) > 200 {
						v = v[:200]
					}
					entry.Position = v
				}
			}
			if entry != (ExperienceEntry{}) {
				out = append(out, entry)
			}
			return len(out) < 5
		})
		if len(out) > 0 {
			break
		}
	}
	return out
}

var educationSectionSelectors = []string{
	`section[data-section="education"]`,
	`section#education`,
	`div[id*="education"]`,
}

func extractEducation(doc *goquery.Document) []EducationEntry {
	var out []EducationEntry
	for _, sectionSel := range educationSectionSelectors {
		section := doc.Find(sectionSel).First()
		if section.Length() == 0 {
			continue
		}
		section.Find("li").EachWithBreak(func(_ int, item *goquery.Selection) bool {
			entry := EducationEntry{
				School: strings.TrimSpace(item.Find(`span[aria-hidden="true"]`).First().Text()),
				Degree: strings.TrimSpace(item.Find(`span.t-14, span[class*="degree"]`).First().Text()),
			}
			if entry.School == "" {
				entry.School = strings.TrimSpace(item.Text())
			}
			if entry.School != "" {
				out = append(out, entry)
			}
			return len(out) < 3
		})
		if len(out) > 0 {
			break
		}
	}
	return out
}

var trailingSlugJunkRe = regexp.MustCompile(`-?\b[0-9a-f]{6,}$|-?\d+$`)

// NameFromProfileURL derives a display name from a profile slug, e.g.
// "/in/jane-doe-123abc" becomes "Jane Doe". Empty when the URL has no slug.
func NameFromProfileURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "in" || parts[1] == "" {
		return ""
	}
	slug := trailingSlugJunkRe.ReplaceAllString(parts[1], "")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return ""
	}
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.TrimSpace(strings.Join(words, " "))
}
