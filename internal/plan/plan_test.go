package plan

import (
	"testing"
	"time"

	"github.com/mstrel/dns-fanout/internal/provider"
	"github.com/mstrel/dns-fanout/internal/record"
)

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }

func testCaps(types ...record.Type) provider.Capabilities {
	return provider.Capabilities{
		SupportedTypes: types,
		TTLMin:         120,
		TTLMax:         86400,
		TTLDefault:     3600,
	}
}

func testInputs() Inputs {
	return Inputs{
		Providers: []provider.Provider{
			{ID: "p1", Enabled: true, Zone: "example.com", Capabilities: testCaps(record.TypeA, record.TypeAAAA, record.TypeCNAME, record.TypeTXT)},
			{ID: "p2", Enabled: true, Zone: "example.org", Capabilities: testCaps(record.TypeA, record.TypeAAAA, record.TypeCNAME)},
			{ID: "p3", Enabled: true, Zone: "example.net", Capabilities: testCaps(record.TypeA)},
		},
		GlobalTTL:         300,
		DefaultRecordType: record.TypeA,
		DefaultProxied:    false,
	}
}

func specFor(t *testing.T, res Result, providerID string) provider.RecordSpec {
	t.Helper()
	for _, spec := range res.Specs {
		if spec.ProviderID == providerID {
			return spec
		}
	}
	t.Fatalf("no spec planned for provider %s", providerID)
	return provider.RecordSpec{}
}

func TestPlanMultiZoneFanout(t *testing.T) {
	intent := RecordIntent{
		BaseHostname: "app.example.com",
		RecordType:   record.TypeA,
		BaseContent:  "192.168.1.10",
		Targets: []ProviderTarget{
			{ProviderID: "p1"},
			{ProviderID: "p2"},
		},
	}

	res := Plan(intent, testInputs())
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.Specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(res.Specs))
	}

	if spec := specFor(t, res, "p1"); spec.Hostname != "app.example.com" {
		t.Errorf("p1 hostname = %q, want app.example.com", spec.Hostname)
	}
	if spec := specFor(t, res, "p2"); spec.Hostname != "app.example.org" {
		t.Errorf("p2 hostname = %q, want app.example.org", spec.Hostname)
	}
	// Address content is never converted.
	for _, spec := range res.Specs {
		if spec.Content != "192.168.1.10" {
			t.Errorf("%s content = %q, want 192.168.1.10", spec.ProviderID, spec.Content)
		}
		if spec.TTL != 3600 {
			t.Errorf("%s ttl = %d, want provider default 3600", spec.ProviderID, spec.TTL)
		}
	}
}

func TestPlanPartialFailure(t *testing.T) {
	intent := RecordIntent{
		BaseHostname: "app.example.com",
		RecordType:   record.TypeCNAME,
		BaseContent:  "origin.example.com",
		Targets: []ProviderTarget{
			{ProviderID: "p1"},
			{ProviderID: "p3"}, // does not support CNAME
			{ProviderID: "p2"},
		},
	}

	res := Plan(intent, testInputs())
	if len(res.Specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(res.Specs))
	}
	if len(res.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(res.Errors))
	}
	if res.Errors[0].ProviderID != "p3" || res.Errors[0].Reason != ReasonUnsupportedType {
		t.Errorf("error = %+v, want unsupported type for p3", res.Errors[0])
	}
}

func TestPlanContentConversion(t *testing.T) {
	intent := RecordIntent{
		BaseHostname: "app.example.com",
		RecordType:   record.TypeCNAME,
		BaseContent:  "origin.example.com",
		Targets: []ProviderTarget{
			{ProviderID: "p1"},
			{ProviderID: "p2"},
		},
	}

	res := Plan(intent, testInputs())
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if spec := specFor(t, res, "p1"); spec.Content != "origin.example.com" {
		t.Errorf("p1 content = %q, want origin.example.com", spec.Content)
	}
	// Content anchored in example.com is re-anchored for the example.org
	// provider, independently of the hostname conversion.
	if spec := specFor(t, res, "p2"); spec.Content != "origin.example.org" {
		t.Errorf("p2 content = %q, want origin.example.org", spec.Content)
	}
}

func TestPlanAmbiguousContentZoneUnconverted(t *testing.T) {
	in := testInputs()
	in.Providers = append(in.Providers, provider.Provider{
		ID: "p4", Enabled: true, Zone: "internal.example.com",
		Capabilities: testCaps(record.TypeA, record.TypeCNAME),
	})

	// db.internal.example.com is anchored in both example.com and
	// internal.example.com, so the planner must not pick one.
	intent := RecordIntent{
		BaseHostname: "svc.example.org",
		RecordType:   record.TypeCNAME,
		BaseContent:  "db.internal.example.com",
		Targets:      []ProviderTarget{{ProviderID: "p2"}},
	}

	res := Plan(intent, in)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if got := res.Specs[0].Content; got != "db.internal.example.com" {
		t.Errorf("content = %q, ambiguous anchoring must not convert", got)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one for the ambiguous content", res.Warnings)
	}
}

func TestPlanProviderScopedOverride(t *testing.T) {
	p1 := "p1"
	in := testInputs()
	in.Overrides = []record.HostnameOverride{
		{
			Hostname:   "app.example.com",
			TTL:        intPtr(900),
			ProviderID: &p1,
			Enabled:    true,
			CreatedAt:  time.Unix(1, 0),
		},
		// Matches p2's converted hostname but is scoped to p1, so it
		// must not leak into p2's target.
		{
			Hostname:   "app.example.org",
			TTL:        intPtr(700),
			ProviderID: &p1,
			Enabled:    true,
			CreatedAt:  time.Unix(2, 0),
		},
	}

	intent := RecordIntent{
		BaseHostname: "app.example.com",
		RecordType:   record.TypeA,
		BaseContent:  "10.0.0.1",
		Targets: []ProviderTarget{
			{ProviderID: "p1"},
			{ProviderID: "p2"},
		},
	}

	res := Plan(intent, in)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if got := specFor(t, res, "p1").TTL; got != 900 {
		t.Errorf("p1 ttl = %d, want scoped override 900", got)
	}
	if got := specFor(t, res, "p2").TTL; got != 3600 {
		t.Errorf("p2 ttl = %d, want provider default 3600", got)
	}
}

func TestPlanExplicitOverridesSkipConversion(t *testing.T) {
	intent := RecordIntent{
		BaseHostname: "app.example.com",
		RecordType:   record.TypeCNAME,
		BaseContent:  "origin.example.com",
		Targets: []ProviderTarget{
			{ProviderID: "p2", HostnameOverride: strPtr("custom.example.org"), ContentOverride: strPtr("cdn.example.com")},
		},
	}

	res := Plan(intent, testInputs())
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	spec := specFor(t, res, "p2")
	if spec.Hostname != "custom.example.org" {
		t.Errorf("hostname = %q, want explicit custom.example.org", spec.Hostname)
	}
	if spec.Content != "cdn.example.com" {
		t.Errorf("content = %q, explicit overrides are never converted", spec.Content)
	}
}

func TestPlanTTL(t *testing.T) {
	tests := []struct {
		name            string
		target          ProviderTarget
		overrides       []record.HostnameOverride
		ttlOverride     bool
		wantTTL         int
		wantErrorReason string
	}{
		{
			name:    "provider default when no layer defines ttl",
			target:  ProviderTarget{ProviderID: "p1"},
			wantTTL: 3600,
		},
		{
			name:        "global setting when override enabled",
			target:      ProviderTarget{ProviderID: "p1"},
			ttlOverride: true,
			wantTTL:     300,
		},
		{
			name:    "explicit target ttl wins",
			target:  ProviderTarget{ProviderID: "p1", TTLOverride: intPtr(600)},
			wantTTL: 600,
		},
		{
			name:   "hostname override ttl beats provider default",
			target: ProviderTarget{ProviderID: "p1"},
			overrides: []record.HostnameOverride{{
				Hostname:  "app.example.com",
				TTL:       intPtr(900),
				Enabled:   true,
				CreatedAt: time.Unix(1, 0),
			}},
			wantTTL: 900,
		},
		{
			name:            "explicit ttl below provider minimum excluded",
			target:          ProviderTarget{ProviderID: "p1", TTLOverride: intPtr(10)},
			wantErrorReason: ReasonTTLOutOfBounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testInputs()
			in.Overrides = tt.overrides
			in.TTLOverrideEnabled = tt.ttlOverride

			intent := RecordIntent{
				BaseHostname: "app.example.com",
				RecordType:   record.TypeA,
				BaseContent:  "10.0.0.1",
				Targets:      []ProviderTarget{tt.target},
			}
			res := Plan(intent, in)

			if tt.wantErrorReason != "" {
				if len(res.Errors) != 1 || res.Errors[0].Reason != tt.wantErrorReason {
					t.Fatalf("errors = %v, want one %s", res.Errors, tt.wantErrorReason)
				}
				if len(res.Specs) != 0 {
					t.Fatalf("invalid target must be excluded from specs")
				}
				return
			}
			if len(res.Errors) != 0 {
				t.Fatalf("unexpected errors: %v", res.Errors)
			}
			if got := res.Specs[0].TTL; got != tt.wantTTL {
				t.Errorf("ttl = %d, want %d", got, tt.wantTTL)
			}
		})
	}
}

func TestPlanProxied(t *testing.T) {
	in := testInputs()
	in.Providers = append(in.Providers, provider.Provider{
		ID: "cf", Enabled: true, Zone: "example.dev",
		Capabilities: provider.Capabilities{
			SupportedTypes:  []record.Type{record.TypeA, record.TypeTXT},
			TTLMin:          60, TTLMax: 86400, TTLDefault: 300,
			SupportsProxied: true,
		},
	})

	tests := []struct {
		name        string
		recordType  record.Type
		content     string
		target      ProviderTarget
		wantProxied *bool
	}{
		{
			name:       "proxiable type on proxying provider gets global default",
			recordType: record.TypeA,
			content:    "10.0.0.1",
			target:     ProviderTarget{ProviderID: "cf"},
			wantProxied: boolPtr(false),
		},
		{
			name:       "explicit proxied override",
			recordType: record.TypeA,
			content:    "10.0.0.1",
			target:     ProviderTarget{ProviderID: "cf", ProxiedOverride: boolPtr(true)},
			wantProxied: boolPtr(true),
		},
		{
			name:       "non-proxiable type omits the flag",
			recordType: record.TypeTXT,
			content:    "token=abc",
			target:     ProviderTarget{ProviderID: "cf", ProxiedOverride: boolPtr(true)},
			wantProxied: nil,
		},
		{
			name:       "provider without proxy support omits the flag",
			recordType: record.TypeA,
			content:    "10.0.0.1",
			target:     ProviderTarget{ProviderID: "p1", ProxiedOverride: boolPtr(true)},
			wantProxied: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := RecordIntent{
				BaseHostname: "app.example.dev",
				RecordType:   tt.recordType,
				BaseContent:  tt.content,
				Targets:      []ProviderTarget{tt.target},
			}
			res := Plan(intent, in)
			if len(res.Errors) != 0 {
				t.Fatalf("unexpected errors: %v", res.Errors)
			}
			got := res.Specs[0].Proxied
			switch {
			case tt.wantProxied == nil && got != nil:
				t.Errorf("proxied = %v, want omitted", *got)
			case tt.wantProxied != nil && got == nil:
				t.Errorf("proxied omitted, want %v", *tt.wantProxied)
			case tt.wantProxied != nil && got != nil && *got != *tt.wantProxied:
				t.Errorf("proxied = %v, want %v", *got, *tt.wantProxied)
			}
		})
	}
}

func TestPlanUnknownAndDisabledProviders(t *testing.T) {
	in := testInputs()
	in.Providers = append(in.Providers, provider.Provider{ID: "off", Enabled: false, Zone: "off.example"})

	intent := RecordIntent{
		BaseHostname: "app.example.com",
		RecordType:   record.TypeA,
		BaseContent:  "10.0.0.1",
		Targets: []ProviderTarget{
			{ProviderID: "nope"},
			{ProviderID: "off"},
			{ProviderID: "p1"},
		},
	}

	res := Plan(intent, in)
	if len(res.Specs) != 1 || res.Specs[0].ProviderID != "p1" {
		t.Fatalf("specs = %v, want only p1", res.Specs)
	}
	reasons := map[string]string{}
	for _, e := range res.Errors {
		reasons[e.ProviderID] = e.Reason
	}
	if reasons["nope"] != ReasonUnknownProvider {
		t.Errorf("nope reason = %q", reasons["nope"])
	}
	if reasons["off"] != ReasonProviderDisabled {
		t.Errorf("off reason = %q", reasons["off"])
	}
}

func TestPlanMissingContent(t *testing.T) {
	intent := RecordIntent{
		BaseHostname: "app.example.com",
		RecordType:   record.TypeA,
		Targets:      []ProviderTarget{{ProviderID: "p1"}},
	}
	res := Plan(intent, testInputs())
	if len(res.Errors) != 1 || res.Errors[0].Reason != ReasonMissingField {
		t.Fatalf("errors = %v, want missing field", res.Errors)
	}
}

func TestPlanHostnameOutsideAnyZone(t *testing.T) {
	intent := RecordIntent{
		BaseHostname: "app.unrelated.dev",
		RecordType:   record.TypeA,
		BaseContent:  "10.0.0.1",
		Targets:      []ProviderTarget{{ProviderID: "p1"}},
	}
	res := Plan(intent, testInputs())
	if len(res.Specs) != 1 {
		t.Fatalf("specs = %v, want 1", res.Specs)
	}
	if res.Specs[0].Hostname != "app.unrelated.dev" {
		t.Errorf("hostname = %q, want unchanged", res.Specs[0].Hostname)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a conversion warning for hostname outside every zone")
	}
}
