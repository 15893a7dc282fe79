package record

import (
	"testing"
	"time"
)

func TestMatchHostname(t *testing.T) {
	tests := []struct {
		pattern  string
		hostname string
		expected bool
	}{
		{"app.example.com", "app.example.com", true},
		{"app.example.com", "APP.Example.COM", true},
		{"app.example.com", "other.example.com", false},
		{"*.example.com", "app.example.com", true},
		{"*.example.com", "a.b.example.com", true},
		{"*.example.com", "example.com", false}, // wildcard does not match the apex
		{"*.example.com", "badexample.com", false},
		{"*.staging.example.com", "api.staging.example.com", true},
		{"*.staging.example.com", "api.prod.example.com", false},
	}

	for _, tt := range tests {
		if got := MatchHostname(tt.pattern, tt.hostname); got != tt.expected {
			t.Errorf("MatchHostname(%q, %q) = %v, want %v", tt.pattern, tt.hostname, got, tt.expected)
		}
	}
}

func intPtr(v int) *int { return &v }

func TestBestOverride(t *testing.T) {
	overrides := []HostnameOverride{
		{ID: "wide", Hostname: "*.example.com", TTL: intPtr(100), Enabled: true, CreatedAt: time.Unix(1, 0)},
		{ID: "narrow", Hostname: "*.staging.example.com", TTL: intPtr(200), Enabled: true, CreatedAt: time.Unix(2, 0)},
		{ID: "exact", Hostname: "api.staging.example.com", TTL: intPtr(300), Enabled: true, CreatedAt: time.Unix(3, 0)},
		{ID: "disabled", Hostname: "api.staging.example.com", TTL: intPtr(400), Enabled: false, CreatedAt: time.Unix(0, 0)},
	}

	tests := []struct {
		name     string
		hostname string
		pool     []HostnameOverride
		wantID   string
	}{
		{"exact beats wildcards", "api.staging.example.com", overrides, "exact"},
		{"longest wildcard wins", "web.staging.example.com", overrides, "narrow"},
		{"falls back to wide wildcard", "app.example.com", overrides, "wide"},
		{"no match", "app.other.net", overrides, ""},
		{"disabled skipped entirely", "api.staging.example.com", overrides[3:], ""},
		{
			name:     "tie broken by declaration order",
			hostname: "app.example.com",
			pool: []HostnameOverride{
				{ID: "first", Hostname: "*.example.com", Enabled: true, CreatedAt: time.Unix(1, 0)},
				{ID: "second", Hostname: "*.example.com", Enabled: true, CreatedAt: time.Unix(2, 0)},
			},
			wantID: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BestOverride(tt.hostname, tt.pool)
			gotID := ""
			if got != nil {
				gotID = got.ID
			}
			if gotID != tt.wantID {
				t.Errorf("got override %q, want %q", gotID, tt.wantID)
			}
		})
	}
}

func TestIsPreserved(t *testing.T) {
	preserved := []PreservedHostname{
		{Hostname: "keep.example.com"},
		{Hostname: "*.important.example.com"},
	}

	tests := []struct {
		hostname string
		expected bool
	}{
		{"keep.example.com", true},
		{"KEEP.example.com", true},
		{"db.important.example.com", true},
		{"app.example.com", false},
	}

	for _, tt := range tests {
		if got := IsPreserved(tt.hostname, preserved); got != tt.expected {
			t.Errorf("IsPreserved(%q) = %v, want %v", tt.hostname, got, tt.expected)
		}
	}
}
