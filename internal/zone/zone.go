package zone

import (
	"strings"

	"github.com/miekg/dns"

	"github.com/mstrel/dns-fanout/internal/provider"
	"github.com/mstrel/dns-fanout/internal/record"
)

// Catalog is a read-only view of configured providers and the zone each
// one owns.
type Catalog struct {
	providers []provider.Provider
}

func NewCatalog(providers []provider.Provider) *Catalog {
	return &Catalog{providers: providers}
}

// ZoneFor returns the zone of the enabled provider whose apex is a suffix
// of hostname, preferring the longest match.
func (c *Catalog) ZoneFor(hostname string) (string, bool) {
	best := ""
	for _, z := range c.zonesFor(hostname) {
		if best == "" || dns.CountLabel(dns.Fqdn(z)) > dns.CountLabel(dns.Fqdn(best)) {
			best = z
		}
	}
	return best, best != ""
}

// zonesFor collects every distinct enabled zone whose apex is a suffix of
// hostname.
func (c *Catalog) zonesFor(hostname string) []string {
	var zones []string
	for _, p := range c.providers {
		if !p.Enabled || p.Zone == "" {
			continue
		}
		if !dns.IsSubDomain(dns.Fqdn(p.Zone), dns.Fqdn(hostname)) {
			continue
		}
		seen := false
		for _, z := range zones {
			if strings.EqualFold(z, p.Zone) {
				seen = true
				break
			}
		}
		if !seen {
			zones = append(zones, p.Zone)
		}
	}
	return zones
}

// ContentZones lists the configured zones a content value is anchored in.
// Only meaningful for hostname-valued record types; short values like "*"
// or single labels are never treated as zone-bound. More than one zone
// means the anchoring is ambiguous and the caller must not convert.
func (c *Catalog) ContentZones(t record.Type, content string) []string {
	if !t.HostnameValued() || !ZoneBindable(content) {
		return nil
	}
	return c.zonesFor(content)
}

// ZoneBindable reports whether a value can belong to a zone at all.
func ZoneBindable(value string) bool {
	return value != "" && value != "*" && strings.Contains(value, ".")
}

// ConvertHostname re-anchors value from sourceZone into targetZone,
// preserving the subdomain prefix and its letter case. Suffix comparison
// is case-insensitive. A value outside sourceZone is returned unchanged
// with applied=false; this is a no-op, never a failure.
func ConvertHostname(value, sourceZone, targetZone string) (converted string, applied bool) {
	if value == "" || sourceZone == "" || targetZone == "" {
		return value, false
	}
	if strings.EqualFold(value, sourceZone) {
		return targetZone, true
	}
	suffix := "." + sourceZone
	if len(value) > len(suffix) && strings.EqualFold(value[len(value)-len(suffix):], suffix) {
		return value[:len(value)-len(sourceZone)] + targetZone, true
	}
	return value, false
}

// ConvertContent converts record content between zones when the record
// type's content is itself a hostname. Address-valued and opaque types
// are returned unchanged.
func ConvertContent(t record.Type, value, sourceZone, targetZone string) (string, bool) {
	if !t.HostnameValued() {
		return value, false
	}
	return ConvertHostname(value, sourceZone, targetZone)
}
