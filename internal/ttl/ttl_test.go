package ttl

import (
	"testing"

	"github.com/mstrel/dns-fanout/internal/provider"
)

var testCaps = provider.Capabilities{
	TTLMin:     120,
	TTLMax:     86400,
	TTLDefault: 3600,
}

func TestEffective(t *testing.T) {
	tests := []struct {
		name            string
		globalTTL       int
		overrideEnabled bool
		expected        int
	}{
		{"override disabled uses provider default", 300, false, 3600},
		{"override enabled uses global", 300, true, 300},
		{"override enabled clamps below min", 10, true, 120},
		{"override enabled clamps above max", 1000000, true, 86400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Effective(testCaps, tt.globalTTL, tt.overrideEnabled); got != tt.expected {
				t.Errorf("got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestClampIdempotent(t *testing.T) {
	values := []int{-100, 0, 119, 120, 3600, 86400, 86401, 1 << 30}
	for _, v := range values {
		once := Clamp(v, 120, 86400)
		twice := Clamp(once, 120, 86400)
		if once != twice {
			t.Errorf("clamp not idempotent for %d: %d != %d", v, once, twice)
		}
		if once < 120 || once > 86400 {
			t.Errorf("clamp(%d) = %d outside bounds", v, once)
		}
	}
}

func TestClampForValidation(t *testing.T) {
	tests := []struct {
		name     string
		ttl      int
		ok       bool
		clamped  int
		bound    Bound
	}{
		{"within bounds", 3600, true, 3600, BoundNone},
		{"at min", 120, true, 120, BoundNone},
		{"below min", 60, false, 120, BoundMin},
		{"above max", 100000, false, 86400, BoundMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, clamped, bound := ClampForValidation(tt.ttl, testCaps)
			if ok != tt.ok || clamped != tt.clamped || bound != tt.bound {
				t.Errorf("got (%v, %d, %s), want (%v, %d, %s)", ok, clamped, bound, tt.ok, tt.clamped, tt.bound)
			}
		})
	}
}
