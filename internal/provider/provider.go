package provider

import (
	"context"

	"github.com/mstrel/dns-fanout/internal/record"
)

// Capabilities describes what a DNS backend accepts. TTLMin <= TTLDefault <= TTLMax.
type Capabilities struct {
	SupportedTypes  []record.Type
	TTLMin          int
	TTLMax          int
	TTLDefault      int
	SupportsProxied bool
}

func (c Capabilities) Supports(t record.Type) bool {
	for _, s := range c.SupportedTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Provider is the configured identity of a DNS backend. Treated as an
// immutable input for the duration of a planning call.
type Provider struct {
	ID           string
	Name         string
	Type         string
	Enabled      bool
	Zone         string
	Capabilities Capabilities
}

// RecordSpec is one concrete per-provider record, fully resolved by the
// planner and ready to submit.
type RecordSpec struct {
	ProviderID string      `json:"providerId"`
	Zone       string      `json:"zone"`
	Hostname   string      `json:"hostname"`
	Type       record.Type `json:"type"`
	Content    string      `json:"content"`
	TTL        int         `json:"ttl"`
	Proxied    *bool       `json:"proxied,omitempty"`
}

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	// OutcomeDuplicate means an equivalent record already exists at the
	// provider. Idempotent convergence, not an error.
	OutcomeDuplicate Outcome = "duplicate"
)

type CreateResult struct {
	Outcome Outcome
	// ProviderRecordID identifies the record at the provider, for later deletion.
	ProviderRecordID string
}

type Client interface {
	Create(ctx context.Context, spec RecordSpec) (CreateResult, error)
	Delete(ctx context.Context, zone, providerRecordID string) error
	Capabilities() Capabilities
}

// Registry pairs configured providers with their clients. Providers
// preserves registration order.
type Registry struct {
	order     []string
	providers map[string]Provider
	clients   map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		clients:   make(map[string]Client),
	}
}

// Register adds a provider with its client. A nil client is allowed for
// providers that are configured but not connectable, e.g. disabled ones.
func (r *Registry) Register(p Provider, c Client) {
	if _, exists := r.providers[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.providers[p.ID] = p
	r.clients[p.ID] = c
}

func (r *Registry) Provider(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

func (r *Registry) Client(id string) (Client, bool) {
	c, ok := r.clients[id]
	if !ok || c == nil {
		return nil, false
	}
	return c, true
}

func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}
