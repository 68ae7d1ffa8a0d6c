// Package lead merges person records extracted across sources and queries
// into the final deduplicated lead set.
package lead

import (
	"strings"

	"github.com/leadscout/leadscout/internal/contact"
	"github.com/leadscout/leadscout/internal/profile"
	"github.com/leadscout/leadscout/internal/retrieve"
)

// Lead is the externally visible unit: one real-world person, merged from
// one or more extracted records plus the union of their contact data.
type Lead struct {
	Person  profile.PersonRecord `json:"person"`
	Contact contact.ContactInfo  `json:"contact"`

	// ProfileURL is the normalized profile source URL when known.
	ProfileURL string `json:"profile_url,omitempty"`

	// SourceQueries records which planned queries surfaced this lead.
	SourceQueries []string `json:"source_queries,omitempty"`
}

// Signature is the identity key for a record: the normalized profile URL
// when present, otherwise normalized name plus normalized current company.
// Records with neither a URL nor a name have no identity and merge nowhere.
func Signature(rec profile.PersonRecord) string {
	if rec.SourceURL != "" && retrieve.IsProfileURL(rec.SourceURL) {
		return "url:" + retrieve.NormalizeURL(rec.SourceURL)
	}
	name := normalizeIdentity(rec.Name)
	if name == "" {
		return ""
	}
	return "id:" + name + "|" + normalizeIdentity(rec.CurrentCompany)
}

// normalizeIdentity lowercases, strips punctuation, and collapses whitespace
// so "Jane  Doe," and "jane doe" key identically.
func normalizeIdentity(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == '\n':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Merge folds records and their per-page contact info into the deduplicated
// lead set. Two records are the same lead when they share a profile URL, or
// otherwise when normalized name and company both match. Output order is
// deterministic: leads appear in first-seen record order. Merging an
// already-merged set with itself yields the same set.
func Merge(records []profile.PersonRecord, contacts map[string]contact.ContactInfo) []Lead {
	byURL := map[string]int{}
	byIdentity := map[string]int{}
	var leads []Lead

	for _, rec := range records {
		urlKey := ""
		if retrieve.IsProfileURL(rec.SourceURL) {
			urlKey = retrieve.NormalizeURL(rec.SourceURL)
		}
		idKey := ""
		if name := normalizeIdentity(rec.Name); name != "" {
			idKey = name + "|" + normalizeIdentity(rec.CurrentCompany)
		}
		if urlKey == "" && idKey == "" {
			continue
		}

		info := contacts[rec.SourceURL]

		i, ok := -1, false
		if urlKey != "" {
			i, ok = byURL[urlKey]
		}
		if !ok && idKey != "" {
			i, ok = byIdentity[idKey]
		}

		if !ok {
			i = len(leads)
			leads = append(leads, Lead{
				Person:     rec,
				Contact:    contact.ContactInfo{}.Union(info),
				ProfileURL: urlKey,
			})
		} else {
			leads[i].Person = mergeRecords(leads[i].Person, rec)
			leads[i].Contact = leads[i].Contact.Union(info)
			if leads[i].ProfileURL == "" {
				leads[i].ProfileURL = urlKey
			}
		}

		if urlKey != "" {
			if _, exists := byURL[urlKey]; !exists {
				byURL[urlKey] = i
			}
		}
		if idKey != "" {
			if _, exists := byIdentity[idKey]; !exists {
				byIdentity[idKey] = i
			}
		}
	}
	return leads
}

// mergeRecords resolves field conflicts between two records of the same
// identity: non-empty beats empty; when both are non-empty and differ, the
// record with higher extraction completeness wins, ties going to the
// first-seen record. The result is deterministic for any retrieval order.
func mergeRecords(first, second profile.PersonRecord) profile.PersonRecord {
	secondWins := second.Completeness() > first.Completeness()

	out := first
	out.Name = pick(first.Name, second.Name, secondWins)
	out.Headline = pick(first.Headline, second.Headline, secondWins)
	out.CurrentPosition = pick(first.CurrentPosition, second.CurrentPosition, secondWins)
	out.CurrentCompany = pick(first.CurrentCompany, second.CurrentCompany, secondWins)
	out.Location = pick(first.Location, second.Location, secondWins)
	out.About = pick(first.About, second.About, secondWins)
	if len(out.Experience) == 0 || (secondWins && len(second.Experience) > 0) {
		out.Experience = second.Experience
	}
	if len(out.Education) == 0 || (secondWins && len(second.Education) > 0) {
		out.Education = second.Education
	}
	if out.SourceURL == "" {
		out.SourceURL = second.SourceURL
	}
	return out
}

func pick(a, b string, preferB bool) string {
	if a == "" {
		return b
	}
	if b == "" || !preferB {
		return a
	}
	return b
}
