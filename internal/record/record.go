package record

import (
	"time"
)

type Type string

const (
	TypeA     Type = "A"
	TypeAAAA  Type = "AAAA"
	TypeCNAME Type = "CNAME"
	TypeTXT   Type = "TXT"
	TypeMX    Type = "MX"
	TypeNS    Type = "NS"
	TypeSRV   Type = "SRV"
)

// HostnameValued reports whether the record's content is itself a hostname
// and therefore eligible for zone conversion. Address-valued and opaque
// types are never converted.
func (t Type) HostnameValued() bool {
	switch t {
	case TypeCNAME, TypeNS:
		return true
	}
	return false
}

// Proxiable reports whether a proxied flag is meaningful for this type.
func (t Type) Proxiable() bool {
	switch t {
	case TypeA, TypeAAAA, TypeCNAME:
		return true
	}
	return false
}

type Status string

const (
	StatusActive   Status = "active"
	StatusOrphaned Status = "orphaned"
	// StatusError marks a tracked target whose provider-side creation
	// failed. The row converges to Active when a retry succeeds; until
	// then it is outside the orphan lifecycle and may be deleted manually.
	StatusError Status = "error"
)

type DNSRecord struct {
	ID               string     `json:"id"`
	Hostname         string     `json:"hostname"`
	Type             Type       `json:"type"`
	Content          string     `json:"content"`
	TTL              int        `json:"ttl"`
	Proxied          *bool      `json:"proxied,omitempty"`
	ProviderID       string     `json:"providerId"`
	ProviderRecordID string     `json:"providerRecordId,omitempty"`
	Managed          bool       `json:"managed"`
	Status           Status     `json:"status"`
	OrphanedAt       *time.Time `json:"orphanedAt,omitempty"`
	FirstOrphanedAt  *time.Time `json:"firstOrphanedAt,omitempty"`
	Source           string     `json:"source"`
	LastSyncedAt     time.Time  `json:"lastSyncedAt"`
}

// HostnameOverride is a persisted per-hostname configuration consulted by
// the override resolver. Hostname is a literal or a "*.domain" wildcard.
// Nil fields are undefined and fall through to lower-precedence sources.
type HostnameOverride struct {
	ID         string    `json:"id"`
	Hostname   string    `json:"hostname"`
	Proxied    *bool     `json:"proxied,omitempty"`
	TTL        *int      `json:"ttl,omitempty"`
	RecordType *Type     `json:"recordType,omitempty"`
	Content    *string   `json:"content,omitempty"`
	ProviderID *string   `json:"providerId,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PreservedHostname exempts matching records from orphan-driven deletion.
type PreservedHostname struct {
	Hostname  string    `json:"hostname"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
