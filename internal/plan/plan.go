// Package plan turns one logical record intent into concrete per-provider
// record specifications. Planning is pure computation over already
// fetched inputs; one target's invalid configuration never blocks the
// others, so partial success is the expected steady state.
package plan

import (
	"fmt"
	"strings"

	"github.com/mstrel/dns-fanout/internal/override"
	"github.com/mstrel/dns-fanout/internal/provider"
	"github.com/mstrel/dns-fanout/internal/record"
	"github.com/mstrel/dns-fanout/internal/ttl"
	"github.com/mstrel/dns-fanout/internal/zone"
)

// ProviderTarget selects one provider for an intent, optionally carrying
// per-target manual overrides.
type ProviderTarget struct {
	ProviderID       string  `json:"providerId"`
	HostnameOverride *string `json:"hostname,omitempty"`
	ContentOverride  *string `json:"content,omitempty"`
	TTLOverride      *int    `json:"ttl,omitempty"`
	ProxiedOverride  *bool   `json:"proxied,omitempty"`
}

// RecordIntent is the logical request: one base record fanned out to a
// set of target providers.
type RecordIntent struct {
	BaseHostname      string           `json:"hostname"`
	RecordType        record.Type      `json:"type"`
	BaseContent       string           `json:"content"`
	PreserveRequested bool             `json:"preserve,omitempty"`
	Targets           []ProviderTarget `json:"targets"`
}

const (
	ReasonUnknownProvider  = "unknown provider"
	ReasonProviderDisabled = "provider disabled"
	ReasonUnsupportedType  = "unsupported record type"
	ReasonTTLOutOfBounds   = "ttl out of bounds"
	ReasonMissingField     = "missing field"
)

// Error reports why one target was excluded from the plan.
type Error struct {
	ProviderID string `json:"providerId"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

func (e Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("provider %s: %s", e.ProviderID, e.Reason)
	}
	return fmt.Sprintf("provider %s: %s: %s", e.ProviderID, e.Reason, e.Detail)
}

// Warning flags a planned spec for operator attention without excluding
// it, e.g. a hostname that could not be re-anchored into the target zone.
type Warning struct {
	ProviderID string `json:"providerId"`
	Message    string `json:"message"`
}

// Inputs carries everything planning reads. All values are fetched ahead
// of the call; Plan itself performs no I/O.
type Inputs struct {
	Providers          []provider.Provider
	Overrides          []record.HostnameOverride
	GlobalTTL          int
	TTLOverrideEnabled bool
	DefaultRecordType  record.Type
	DefaultContent     string
	DefaultProxied     bool
}

type Result struct {
	Specs    []provider.RecordSpec
	Errors   []Error
	Warnings []Warning
}

// Plan resolves intent into one spec per valid target. Specs and errors
// are returned together; callers submit the specs and report the errors.
func Plan(intent RecordIntent, in Inputs) Result {
	var res Result
	catalog := zone.NewCatalog(in.Providers)
	byID := make(map[string]provider.Provider, len(in.Providers))
	for _, p := range in.Providers {
		byID[p.ID] = p
	}

	baseZone, baseZoneFound := catalog.ZoneFor(intent.BaseHostname)

	for _, target := range intent.Targets {
		p, ok := byID[target.ProviderID]
		if !ok {
			res.Errors = append(res.Errors, Error{ProviderID: target.ProviderID, Reason: ReasonUnknownProvider})
			continue
		}
		if !p.Enabled {
			res.Errors = append(res.Errors, Error{ProviderID: p.ID, Reason: ReasonProviderDisabled})
			continue
		}

		spec, warnings, planErr := planTarget(intent, target, p, catalog, baseZone, baseZoneFound, in)
		res.Warnings = append(res.Warnings, warnings...)
		if planErr != nil {
			res.Errors = append(res.Errors, *planErr)
			continue
		}
		res.Specs = append(res.Specs, spec)
	}
	return res
}

func planTarget(intent RecordIntent, target ProviderTarget, p provider.Provider, catalog *zone.Catalog, baseZone string, baseZoneFound bool, in Inputs) (provider.RecordSpec, []Warning, *Error) {
	var warnings []Warning
	caps := p.Capabilities

	// Hostname: explicit per-target value, else re-anchor into the
	// provider's zone when it differs from the base zone.
	hostname := intent.BaseHostname
	switch {
	case target.HostnameOverride != nil:
		hostname = *target.HostnameOverride
	case !strings.EqualFold(p.Zone, baseZone):
		converted, applied := zone.ConvertHostname(intent.BaseHostname, baseZone, p.Zone)
		hostname = converted
		if !applied || !baseZoneFound {
			warnings = append(warnings, Warning{
				ProviderID: p.ID,
				Message:    fmt.Sprintf("hostname %s not converted into zone %s", intent.BaseHostname, p.Zone),
			})
		}
	}

	explicit := override.FieldValues{
		TTL:     target.TTLOverride,
		Proxied: target.ProxiedOverride,
	}
	if intent.RecordType != "" {
		rt := intent.RecordType
		explicit.RecordType = &rt
	}
	contentFromBase := false
	switch {
	case target.ContentOverride != nil:
		explicit.Content = target.ContentOverride
	case intent.BaseContent != "":
		content := intent.BaseContent
		explicit.Content = &content
		contentFromBase = true
	}

	effTTL := ttl.Effective(caps, in.GlobalTTL, in.TTLOverrideEnabled)
	providerValues := override.FieldValues{TTL: &effTTL}

	global := override.FieldValues{Proxied: &in.DefaultProxied}
	if in.DefaultRecordType != "" {
		rt := in.DefaultRecordType
		global.RecordType = &rt
	}
	if in.DefaultContent != "" {
		content := in.DefaultContent
		global.Content = &content
	}

	// An override carrying a providerId applies only to that provider's
	// target.
	entries := make([]record.HostnameOverride, 0, len(in.Overrides))
	for _, o := range in.Overrides {
		if o.ProviderID != nil && *o.ProviderID != p.ID {
			continue
		}
		entries = append(entries, o)
	}

	sources := []override.Source{
		override.StaticSource("explicit", explicit),
		override.EntrySource("hostnameOverride", entries),
		override.StaticSource("provider", providerValues),
		override.StaticSource("global", global),
	}

	resolved, err := override.Resolve(hostname, []override.Field{
		override.FieldRecordType,
		override.FieldContent,
		override.FieldTTL,
	}, sources)
	if err != nil {
		return provider.RecordSpec{}, warnings, &Error{ProviderID: p.ID, Reason: ReasonMissingField, Detail: err.Error()}
	}
	rt := resolved.RecordType
	content := resolved.Content

	// Content zone detection is independent of the hostname's zone: the
	// base content may itself be anchored in a configured zone. A value
	// anchored in more than one zone is left untouched and flagged for
	// operator confirmation.
	if contentFromBase && resolved.Origins[override.FieldContent] == "explicit" {
		switch contentZones := catalog.ContentZones(rt, intent.BaseContent); {
		case len(contentZones) > 1:
			warnings = append(warnings, Warning{
				ProviderID: p.ID,
				Message:    fmt.Sprintf("content %s matches zones %s, left unconverted", intent.BaseContent, strings.Join(contentZones, ", ")),
			})
		case len(contentZones) == 1 && !strings.EqualFold(contentZones[0], p.Zone):
			content, _ = zone.ConvertContent(rt, intent.BaseContent, contentZones[0], p.Zone)
		}
	}

	if !caps.Supports(rt) {
		return provider.RecordSpec{}, warnings, &Error{
			ProviderID: p.ID,
			Reason:     ReasonUnsupportedType,
			Detail:     fmt.Sprintf("record type %s not supported", rt),
		}
	}
	if ok, _, bound := ttl.ClampForValidation(resolved.TTL, caps); !ok {
		return provider.RecordSpec{}, warnings, &Error{
			ProviderID: p.ID,
			Reason:     ReasonTTLOutOfBounds,
			Detail:     fmt.Sprintf("ttl %d outside [%d, %d], hit %s bound", resolved.TTL, caps.TTLMin, caps.TTLMax, bound),
		}
	}

	spec := provider.RecordSpec{
		ProviderID: p.ID,
		Zone:       p.Zone,
		Hostname:   hostname,
		Type:       rt,
		Content:    content,
		TTL:        resolved.TTL,
	}

	// Proxied is only meaningful when the provider can proxy and the
	// record type is proxiable; otherwise it is omitted entirely.
	if caps.SupportsProxied && rt.Proxiable() {
		proxied, err := override.Resolve(hostname, []override.Field{override.FieldProxied}, sources)
		if err != nil {
			return provider.RecordSpec{}, warnings, &Error{ProviderID: p.ID, Reason: ReasonMissingField, Detail: err.Error()}
		}
		spec.Proxied = proxied.Proxied
	}
	return spec, warnings, nil
}
