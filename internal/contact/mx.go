package contact

import (
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// DomainVerifier checks that an email domain publishes MX records, caching
// verdicts so one run never asks twice about the same domain. Off by default;
// wire its Verify method into Enricher.Verifier to enable.
type DomainVerifier struct {
	// Resolvers are tried in order. Defaults to well-known public resolvers.
	Resolvers []string
	Timeout   time.Duration

	mu    sync.Mutex
	cache map[string]bool
}

// NewDomainVerifier builds a verifier with default resolvers.
func NewDomainVerifier() *DomainVerifier {
	return &DomainVerifier{
		Resolvers: []string{"8.8.8.8:53", "1.1.1.1:53"},
		Timeout:   3 * time.Second,
		cache:     make(map[string]bool),
	}
}

// Verify reports whether the domain has at least one MX record. Lookup
// failures count as verified: a flaky resolver must not eat real addresses.
func (v *DomainVerifier) Verify(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}

	v.mu.Lock()
	if verdict, ok := v.cache[domain]; ok {
		v.mu.Unlock()
		return verdict
	}
	v.mu.Unlock()

	verdict := v.lookup(domain)

	v.mu.Lock()
	v.cache[domain] = verdict
	v.mu.Unlock()
	return verdict
}

func (v *DomainVerifier) lookup(domain string) bool {
	client := &dns.Client{Timeout: v.Timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)

	for _, resolver := range v.Resolvers {
		resp, _, err := client.Exchange(msg, resolver)
		if err != nil || resp == nil {
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			return false
		}
		for _, ans := range resp.Answer {
			if _, ok := ans.(*dns.MX); ok {
				return true
			}
		}
		return false
	}
	// All resolvers unreachable; do not discard addresses on infra failure.
	return true
}
