package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudflare/cloudflare-go"

	"github.com/mstrel/dns-fanout/internal/metrics"
	"github.com/mstrel/dns-fanout/internal/provider"
)

type Client struct {
	providerID string
	api        *cloudflare.API
	caps       provider.Capabilities
	metrics    *metrics.Metrics
	zones      map[string]string // Cache zone name to ID mapping
}

func New(providerID, token string, zones []string, caps provider.Capabilities, metrics *metrics.Metrics) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("cloudflare api token empty")
	}

	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("create cloudflare client: %w", err)
	}

	// Pre-cache zone IDs for all configured zones
	zoneCache := make(map[string]string)
	for _, zone := range zones {
		id, err := api.ZoneIDByName(zone)
		if err != nil {
			return nil, fmt.Errorf("get zone ID for %s: %w", zone, err)
		}
		zoneCache[zone] = id
	}

	return &Client{
		providerID: providerID,
		api:        api,
		caps:       caps,
		metrics:    metrics,
		zones:      zoneCache,
	}, nil
}

func (c *Client) Capabilities() provider.Capabilities {
	return c.caps
}

// Create submits the spec, first checking for an equivalent existing
// record so convergence is reported as a duplicate instead of an error.
func (c *Client) Create(ctx context.Context, spec provider.RecordSpec) (provider.CreateResult, error) {
	slog.Info("Creating DNS record", "zone", spec.Zone, "name", spec.Hostname, "type", spec.Type, "content", spec.Content)
	start := time.Now()

	zoneID, ok := c.zones[spec.Zone]
	if !ok {
		return provider.CreateResult{}, fmt.Errorf("zone %s not found in configuration", spec.Zone)
	}
	rc := cloudflare.ZoneIdentifier(zoneID)

	existing, _, err := c.api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{
		Name: spec.Hostname,
		Type: string(spec.Type),
	})
	if err != nil {
		c.metrics.IncProviderRequest("read", c.providerID, false)
		return provider.CreateResult{}, fmt.Errorf("list DNS records: %w", err)
	}
	c.metrics.IncProviderRequest("read", c.providerID, true)
	for _, r := range existing {
		if r.Content == spec.Content {
			slog.Debug("Record already exists", "zone", spec.Zone, "name", spec.Hostname, "id", r.ID)
			return provider.CreateResult{Outcome: provider.OutcomeDuplicate, ProviderRecordID: r.ID}, nil
		}
	}

	params := cloudflare.CreateDNSRecordParams{
		Type:    string(spec.Type),
		Name:    spec.Hostname,
		Content: spec.Content,
		TTL:     spec.TTL,
		Proxied: spec.Proxied,
	}

	created, err := c.api.CreateDNSRecord(ctx, rc, params)
	if err != nil {
		c.metrics.IncProviderRequest("create", c.providerID, false)
		return provider.CreateResult{}, fmt.Errorf("create DNS record: %w", err)
	}

	c.metrics.IncProviderRequest("create", c.providerID, true)
	slog.Debug("Created DNS record", "zone", spec.Zone, "name", spec.Hostname, "type", spec.Type, "duration", time.Since(start))
	return provider.CreateResult{Outcome: provider.OutcomeCreated, ProviderRecordID: created.ID}, nil
}

func (c *Client) Delete(ctx context.Context, zone, providerRecordID string) error {
	slog.Info("Deleting DNS record", "zone", zone, "id", providerRecordID)
	start := time.Now()

	zoneID, ok := c.zones[zone]
	if !ok {
		return fmt.Errorf("zone %s not found in configuration", zone)
	}

	if err := c.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), providerRecordID); err != nil {
		c.metrics.IncProviderRequest("delete", c.providerID, false)
		return fmt.Errorf("delete DNS record: %w", err)
	}

	c.metrics.IncProviderRequest("delete", c.providerID, true)
	slog.Debug("Deleted DNS record", "zone", zone, "id", providerRecordID, "duration", time.Since(start))
	return nil
}
