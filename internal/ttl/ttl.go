package ttl

import (
	"github.com/mstrel/dns-fanout/internal/provider"
)

// Bound reports which provider limit a TTL value hit during validation.
type Bound string

const (
	BoundNone Bound = "none"
	BoundMin  Bound = "min"
	BoundMax  Bound = "max"
)

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Effective computes the default TTL for a provider. When the global
// override is off the provider's own default wins; when on, the global
// value is clamped into the provider's bounds.
func Effective(caps provider.Capabilities, globalTTL int, globalOverrideEnabled bool) int {
	if !globalOverrideEnabled {
		return caps.TTLDefault
	}
	return Clamp(globalTTL, caps.TTLMin, caps.TTLMax)
}

// ClampForValidation checks an operator-supplied TTL against provider
// bounds, reporting which bound was hit so it can be surfaced before
// submission.
func ClampForValidation(ttl int, caps provider.Capabilities) (ok bool, clamped int, bound Bound) {
	switch {
	case ttl < caps.TTLMin:
		return false, caps.TTLMin, BoundMin
	case ttl > caps.TTLMax:
		return false, caps.TTLMax, BoundMax
	default:
		return true, ttl, BoundNone
	}
}
