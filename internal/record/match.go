package record

import (
	"strings"

	"github.com/miekg/dns"
)

// MatchHostname reports whether pattern matches hostname. Patterns are
// either literal hostnames (exact, case-insensitive) or wildcards of the
// form "*.domain" matching any name strictly below domain.
func MatchHostname(pattern, hostname string) bool {
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return len(hostname) > len(suffix)+1 &&
			strings.EqualFold(hostname[len(hostname)-len(suffix)-1:], "."+suffix)
	}
	return strings.EqualFold(pattern, hostname)
}

// Specificity scores a pattern for tie-breaking between multiple matches.
// Exact patterns always outrank wildcards; among wildcards, the one with
// the longest zone suffix (most labels) wins.
func Specificity(pattern string) int {
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return dns.CountLabel(dns.Fqdn(suffix))
	}
	// An exact hostname is more specific than any wildcard could be.
	return dns.CountLabel(dns.Fqdn(pattern)) + 1<<16
}

// BestOverride selects the enabled override whose hostname pattern matches
// hostname, preferring exact matches, then the most specific wildcard.
// Ties break by creation order, overrides being sorted oldest first.
// Returns nil when nothing matches.
func BestOverride(hostname string, overrides []HostnameOverride) *HostnameOverride {
	var best *HostnameOverride
	bestScore := -1
	for i := range overrides {
		o := &overrides[i]
		if !o.Enabled || !MatchHostname(o.Hostname, hostname) {
			continue
		}
		if score := Specificity(o.Hostname); score > bestScore {
			best = o
			bestScore = score
		}
	}
	return best
}

// IsPreserved reports whether hostname matches any preserved pattern.
func IsPreserved(hostname string, preserved []PreservedHostname) bool {
	for _, p := range preserved {
		if MatchHostname(p.Hostname, hostname) {
			return true
		}
	}
	return false
}
