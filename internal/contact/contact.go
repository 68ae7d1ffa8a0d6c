// Package contact scans page content for emails, phone numbers, and social
// profile links. Every channel runs the same three-stage shape: pattern
// match, exclusion/validation, dedupe. Invalid matches are expected noise
// and are dropped silently.
package contact

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/leadscout/leadscout/internal/retrieve"
)

// ContactInfo is the per-page contact yield. Sets are sorted for
// deterministic output; SocialLinks maps platform name to the first URL seen
// for that platform.
type ContactInfo struct {
	Emails      []string          `json:"emails,omitempty"`
	Phones      []string          `json:"phones,omitempty"`
	SocialLinks map[string]string `json:"social_links,omitempty"`
	ContactPage string            `json:"contact_page,omitempty"`
}

// IsEmpty reports whether enrichment found nothing on the page.
func (c ContactInfo) IsEmpty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0 && len(c.SocialLinks) == 0 && c.ContactPage == ""
}

// Union merges other into a copy of c. Sets union, platform links keep the
// first-seen URL. Never overwrites.
func (c ContactInfo) Union(other ContactInfo) ContactInfo {
	out := ContactInfo{
		Emails:      unionSorted(c.Emails, other.Emails),
		Phones:      unionSorted(c.Phones, other.Phones),
		ContactPage: c.ContactPage,
	}
	if len(c.SocialLinks) > 0 || len(other.SocialLinks) > 0 {
		out.SocialLinks = make(map[string]string, len(c.SocialLinks)+len(other.SocialLinks))
		for k, v := range c.SocialLinks {
			out.SocialLinks[k] = v
		}
		for k, v := range other.SocialLinks {
			if _, ok := out.SocialLinks[k]; !ok {
				out.SocialLinks[k] = v
			}
		}
	}
	if out.ContactPage == "" {
		out.ContactPage = other.ContactPage
	}
	return out
}

func unionSorted(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

var emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

// excludeRes filter matches that satisfy the email pattern but are asset
// names, placeholder domains, or resolution-suffix artifacts.
var excludeRes = []*regexp.Regexp{
	regexp.MustCompile(`\.png$`),
	regexp.MustCompile(`\.jpg$`),
	regexp.MustCompile(`\.jpeg$`),
	regexp.MustCompile(`\.gif$`),
	regexp.MustCompile(`\.svg$`),
	regexp.MustCompile(`\.webp$`),
	regexp.MustCompile(`example\.com$`),
	regexp.MustCompile(`test\.com$`),
	regexp.MustCompile(`sample\.com$`),
	regexp.MustCompile(`@sentry`),
	regexp.MustCompile(`@2x\.`),
	regexp.MustCompile(`@3x\.`),
}

// strictEmailRe is the validation stage: one @, sane local part, dotted
// domain with an alphabetic TLD.
var strictEmailRe = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9\-]+(\.[a-z0-9\-]+)*\.[a-z]{2,}$`)

var phoneRes = []*regexp.Regexp{
	regexp.MustCompile(`\(\d{3}\)\s*\d{3}-\d{4}`),
	regexp.MustCompile(`\d{3}-\d{3}-\d{4}`),
	regexp.MustCompile(`\+\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`),
}

var nonPhoneDigitsRe = regexp.MustCompile(`[^\d+]`)

var socialPlatforms = []struct {
	name string
	re   *regexp.Regexp
}{
	{"linkedin", regexp.MustCompile(`(?i)linkedin\.com/in/[\w\-]+`)},
	{"twitter", regexp.MustCompile(`(?i)(?:twitter|x)\.com/[\w\-]+`)},
	{"facebook", regexp.MustCompile(`(?i)facebook\.com/[\w.\-]+`)},
	{"github", regexp.MustCompile(`(?i)github\.com/[\w\-]+`)},
	{"instagram", regexp.MustCompile(`(?i)instagram\.com/[\w.\-]+`)},
}

var contactPageKeywords = []string{"contact", "about", "team", "people"}

// Enricher scans pages for contact data. The zero value is usable; Verifier
// optionally gates emails on a live domain check.
type Enricher struct {
	// Verifier, when set, drops emails whose domain fails verification
	// (see DomainVerifier). Nil skips the check.
	Verifier func(domain string) bool
}

// Enrich extracts contact information from one page. It never fails: a page
// with no extractable contacts yields an empty ContactInfo.
func (e *Enricher) Enrich(page *retrieve.Page) ContactInfo {
	info := ContactInfo{
		Emails: e.ExtractEmails(page.HTML),
		Phones: extractPhones(page.HTML),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return info
	}
	info.SocialLinks = extractSocialLinks(doc)
	info.ContactPage = findContactPage(doc, page.URL)
	return info
}

// ExtractEmails runs the full email pipeline over raw markup: pattern match
// (mailto: and attribute-embedded addresses included), exclusion filter,
// strict validation, case-insensitive dedupe. Output is sorted.
func (e *Enricher) ExtractEmails(content string) []string {
	// Unescape the common entity spellings before matching.
	content = strings.NewReplacer(
		"&at;", "@", "&#64;", "@",
		"&dot;", ".", "&#46;", ".",
	).Replace(content)

	matches := emailRe.FindAllString(content, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		email := strings.ToLower(m)
		if seen[email] {
			continue
		}
		seen[email] = true
		if !validEmail(email) {
			continue
		}
		if e.Verifier != nil {
			if at := strings.LastIndex(email, "@"); at >= 0 && !e.Verifier(email[at+1:]) {
				continue
			}
		}
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

func validEmail(lower string) bool {
	for _, re := range excludeRes {
		if re.MatchString(lower) {
			return false
		}
	}
	return strictEmailRe.MatchString(lower)
}

func extractPhones(content string) []string {
	seen := map[string]bool{}
	var out []string
	for _, re := range phoneRes {
		for _, m := range re.FindAllString(content, -1) {
			cleaned := nonPhoneDigitsRe.ReplaceAllString(m, "")
			if !validPhoneDigits(cleaned) {
				continue
			}
			display := strings.TrimSpace(m)
			if seen[cleaned] {
				continue
			}
			seen[cleaned] = true
			out = append(out, display)
		}
	}
	sort.Strings(out)
	return out
}

func validPhoneDigits(cleaned string) bool {
	digits := strings.TrimPrefix(cleaned, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return false
	}
	// Years and repeated-digit junk satisfy the patterns but are not phones.
	allSame := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	return !allSame
}

func extractSocialLinks(doc *goquery.Document) map[string]string {
	var links map[string]string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		for _, platform := range socialPlatforms {
			if !platform.re.MatchString(href) {
				continue
			}
			if links == nil {
				links = make(map[string]string)
			}
			if _, ok := links[platform.name]; !ok {
				links[platform.name] = href
			}
			break
		}
	})
	return links
}

// findContactPage returns the first same-site link whose href or text names
// a contact-ish page, resolved to an absolute URL.
func findContactPage(doc *goquery.Document, baseURL string) string {
	base, _ := url.Parse(baseURL)
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		lowerHref := strings.ToLower(href)
		lowerText := strings.ToLower(strings.TrimSpace(sel.Text()))
		for _, kw := range contactPageKeywords {
			if !strings.Contains(lowerHref, kw) && !strings.Contains(lowerText, kw) {
				continue
			}
			if strings.HasPrefix(lowerHref, "http") {
				found = href
				return false
			}
			if strings.HasPrefix(href, "/") && base != nil && base.Host != "" {
				found = base.Scheme + "://" + base.Host + href
				return false
			}
		}
		return true
	})
	return found
}
