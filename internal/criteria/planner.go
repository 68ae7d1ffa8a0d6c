package criteria

import "strings"

// DefaultMaxQueries bounds the planned query list when the caller does not.
const DefaultMaxQueries = 5

// profileSitePrefix restricts a query to the profile source.
const profileSitePrefix = "site:linkedin.com/in/"

// Plan expands criteria into an ordered query list. It is pure and
// deterministic: identical criteria yield an identical list, always at least
// one element, never more than max (DefaultMaxQueries when max <= 0).
func Plan(c SearchCriteria, max int) []string {
	if max <= 0 {
		max = DefaultMaxQueries
	}

	var queries []string

	positions := c.Positions
	if len(positions) > 3 {
		positions = positions[:3]
	}
	for _, pos := range positions {
		parts := []string{pos}
		if c.CompanyType != "" {
			parts = append(parts, c.CompanyType)
		}
		if c.Industry != "" {
			parts = append(parts, c.Industry)
		}
		if c.Location != "" {
			parts = append(parts, c.Location)
		}
		queries = append(queries, strings.Join(parts, " "))
	}

	// Profile-source-restricted variant of the leading query terms.
	if len(c.Positions) > 0 {
		parts := []string{profileSitePrefix, c.Positions[0]}
		if c.CompanyType != "" {
			parts = append(parts, c.CompanyType)
		}
		if c.Industry != "" {
			parts = append(parts, c.Industry)
		}
		queries = append(queries, strings.Join(parts, " "))
	}

	if len(queries) == 0 {
		if raw := strings.TrimSpace(c.RawText); raw != "" {
			queries = append(queries, raw)
		} else if len(c.Keywords) > 0 {
			kws := c.Keywords
			if len(kws) > 5 {
				kws = kws[:5]
			}
			queries = append(queries, strings.Join(kws, " "))
		} else {
			queries = append(queries, "")
		}
	}

	if len(queries) > max {
		queries = queries[:max]
	}
	return queries
}

// PlanPerson builds the profile-lookup query for a named person, optionally
// narrowed by company.
func PlanPerson(name, company string) string {
	parts := []string{profileSitePrefix, strings.TrimSpace(name)}
	if company = strings.TrimSpace(company); company != "" {
		parts = append(parts, company)
	}
	return strings.Join(parts, " ")
}

// PlanCompanyEmployees builds the employee-discovery query for a company,
// optionally narrowed by title.
func PlanCompanyEmployees(company, title string) string {
	parts := []string{profileSitePrefix, strings.TrimSpace(company)}
	if title = strings.TrimSpace(title); title != "" {
		parts = append(parts, title)
	}
	return strings.Join(parts, " ")
}
