// Package libdnsadapter exposes any libdns implementation as a provider
// client, so backends beyond the built-in ones can be wired in without
// touching the engine.
package libdnsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/libdns/libdns"

	"github.com/mstrel/dns-fanout/internal/metrics"
	"github.com/mstrel/dns-fanout/internal/provider"
	"github.com/mstrel/dns-fanout/internal/record"
)

// Backend is the subset of libdns interfaces the adapter needs.
type Backend interface {
	libdns.RecordGetter
	libdns.RecordAppender
	libdns.RecordDeleter
}

type Adapter struct {
	providerID string
	backend    Backend
	caps       provider.Capabilities
	metrics    *metrics.Metrics
}

func New(providerID string, backend Backend, caps provider.Capabilities, metrics *metrics.Metrics) *Adapter {
	return &Adapter{
		providerID: providerID,
		backend:    backend,
		caps:       caps,
		metrics:    metrics,
	}
}

func (a *Adapter) Capabilities() provider.Capabilities {
	return a.caps
}

func (a *Adapter) Create(ctx context.Context, spec provider.RecordSpec) (provider.CreateResult, error) {
	slog.Info("Creating DNS record", "zone", spec.Zone, "name", spec.Hostname, "type", spec.Type, "content", spec.Content)

	existing, err := a.backend.GetRecords(ctx, spec.Zone)
	if err != nil {
		a.metrics.IncProviderRequest("read", a.providerID, false)
		return provider.CreateResult{}, fmt.Errorf("get records: %w", err)
	}
	a.metrics.IncProviderRequest("read", a.providerID, true)

	for _, r := range existing {
		got := provider.FromLibdns(r, spec.Zone)
		if strings.EqualFold(got.Hostname, spec.Hostname) && got.Type == spec.Type && got.Content == spec.Content {
			return provider.CreateResult{
				Outcome:          provider.OutcomeDuplicate,
				ProviderRecordID: recordID(got),
			}, nil
		}
	}

	rec, err := provider.ToLibdns(spec)
	if err != nil {
		return provider.CreateResult{}, err
	}
	if _, err := a.backend.AppendRecords(ctx, spec.Zone, []libdns.Record{rec}); err != nil {
		a.metrics.IncProviderRequest("create", a.providerID, false)
		return provider.CreateResult{}, fmt.Errorf("append records: %w", err)
	}
	a.metrics.IncProviderRequest("create", a.providerID, true)
	return provider.CreateResult{Outcome: provider.OutcomeCreated, ProviderRecordID: recordID(spec)}, nil
}

func (a *Adapter) Delete(ctx context.Context, zone, providerRecordID string) error {
	hostname, rtype, content, err := parseRecordID(providerRecordID)
	if err != nil {
		return err
	}
	rec, err := provider.ToLibdns(provider.RecordSpec{
		Zone:     zone,
		Hostname: hostname,
		Type:     rtype,
		Content:  content,
	})
	if err != nil {
		return err
	}

	if _, err := a.backend.DeleteRecords(ctx, zone, []libdns.Record{rec}); err != nil {
		a.metrics.IncProviderRequest("delete", a.providerID, false)
		return fmt.Errorf("delete records: %w", err)
	}
	a.metrics.IncProviderRequest("delete", a.providerID, true)
	return nil
}

// libdns records carry no provider-side id, so the adapter synthesizes
// one from the identifying tuple.
func recordID(spec provider.RecordSpec) string {
	return strings.Join([]string{spec.Hostname, string(spec.Type), spec.Content}, "|")
}

func parseRecordID(id string) (hostname string, rtype record.Type, content string, err error) {
	parts := strings.SplitN(id, "|", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("malformed libdns record id %q", id)
	}
	return parts[0], record.Type(parts[1]), parts[2], nil
}
