// Package orphan drives record status transitions: Active -> Orphaned
// when a record's backing host disappears, back to Active on
// resurrection, and Orphaned -> deleted once the grace period runs out.
// Only this package deletes managed records.
package orphan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mstrel/dns-fanout/internal/metrics"
	"github.com/mstrel/dns-fanout/internal/provider"
	"github.com/mstrel/dns-fanout/internal/record"
	"github.com/mstrel/dns-fanout/internal/settings"
	"github.com/mstrel/dns-fanout/internal/store"
)

var (
	ErrNotOrphaned = errors.New("orphan: record is not orphaned")
	// ErrGraceExceeded means an extension would push the deadline past
	// the configured maximum total grace window.
	ErrGraceExceeded = errors.New("orphan: extension exceeds maximum grace window")
)

type Manager struct {
	store    *store.Store
	registry *provider.Registry
	settings *settings.Service
	metrics  *metrics.Metrics
	now      func() time.Time

	// Single-writer sweep discipline: concurrent sweeps must not both
	// claim the same record.
	mu sync.Mutex
}

func New(st *store.Store, registry *provider.Registry, settings *settings.Service, metrics *metrics.Metrics) *Manager {
	return &Manager{
		store:    st,
		registry: registry,
		settings: settings,
		metrics:  metrics,
		now:      time.Now,
	}
}

// TimeRemaining is the lazy grace evaluation: non-positive means the
// record is eligible for deletion on the next sweep.
func TimeRemaining(orphanedAt time.Time, gracePeriod time.Duration, now time.Time) time.Duration {
	return orphanedAt.Add(gracePeriod).Sub(now)
}

// HostAbsent handles a discovery signal that the backing host for
// hostname has disappeared. Managed, unpreserved active records move to
// Orphaned; everything else is left alone.
func (m *Manager) HostAbsent(ctx context.Context, hostname string) ([]record.DNSRecord, error) {
	records, err := m.store.RecordsByHostname(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("load records for %s: %w", hostname, err)
	}
	preserved, err := m.store.ListPreserved(ctx)
	if err != nil {
		return nil, fmt.Errorf("load preserved hostnames: %w", err)
	}

	var transitioned []record.DNSRecord
	for _, rec := range records {
		if !rec.Managed || rec.Status != record.StatusActive {
			continue
		}
		if record.IsPreserved(rec.Hostname, preserved) {
			slog.Debug("Host absent but record preserved", "hostname", rec.Hostname, "id", rec.ID)
			continue
		}
		updated, err := m.store.TransitionStatus(ctx, rec.ID, record.StatusActive, func(r *record.DNSRecord) error {
			now := m.now()
			r.Status = record.StatusOrphaned
			r.OrphanedAt = &now
			r.FirstOrphanedAt = &now
			return nil
		})
		if err != nil {
			if errors.Is(err, store.ErrStatusConflict) {
				continue
			}
			return transitioned, err
		}
		slog.Info("Record orphaned", "hostname", rec.Hostname, "id", rec.ID)
		m.metrics.IncOrphanTransition("orphaned")
		transitioned = append(transitioned, updated)
	}
	return transitioned, nil
}

// HostPresent handles a discovery signal that the host reappeared before
// deletion, resurrecting its orphaned records.
func (m *Manager) HostPresent(ctx context.Context, hostname string) ([]record.DNSRecord, error) {
	records, err := m.store.RecordsByHostname(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("load records for %s: %w", hostname, err)
	}

	var transitioned []record.DNSRecord
	for _, rec := range records {
		if rec.Status != record.StatusOrphaned {
			continue
		}
		updated, err := m.store.TransitionStatus(ctx, rec.ID, record.StatusOrphaned, func(r *record.DNSRecord) error {
			r.Status = record.StatusActive
			r.OrphanedAt = nil
			r.FirstOrphanedAt = nil
			return nil
		})
		if err != nil {
			if errors.Is(err, store.ErrStatusConflict) {
				continue
			}
			return transitioned, err
		}
		slog.Info("Record resurrected", "hostname", rec.Hostname, "id", rec.ID)
		m.metrics.IncOrphanTransition("resurrected")
		transitioned = append(transitioned, updated)
	}
	return transitioned, nil
}

// ExtendGrace advances the record's orphanedAt by minutes, re-arming the
// deletion deadline relative to the original orphan time. The record must
// be orphaned, and the extended deadline may not exceed the configured
// maximum total grace window.
func (m *Manager) ExtendGrace(ctx context.Context, id string, minutes int) (record.DNSRecord, error) {
	if minutes <= 0 {
		return record.DNSRecord{}, fmt.Errorf("extension minutes must be positive, got %d", minutes)
	}

	grace := m.settings.GracePeriod(ctx)
	maxGrace := m.settings.MaxGracePeriod(ctx)

	updated, err := m.store.TransitionStatus(ctx, id, record.StatusOrphaned, func(r *record.DNSRecord) error {
		if r.OrphanedAt == nil {
			return ErrNotOrphaned
		}
		extended := r.OrphanedAt.Add(time.Duration(minutes) * time.Minute)
		first := *r.OrphanedAt
		if r.FirstOrphanedAt != nil {
			first = *r.FirstOrphanedAt
		}
		if extended.Add(grace).Sub(first) > maxGrace {
			return fmt.Errorf("%w: %d minutes past %s", ErrGraceExceeded, minutes, first)
		}
		r.OrphanedAt = &extended
		return nil
	})
	if errors.Is(err, store.ErrStatusConflict) {
		return record.DNSRecord{}, fmt.Errorf("%w: %s", ErrNotOrphaned, id)
	}
	return updated, err
}

type SweepResult struct {
	Examined int `json:"examined"`
	Deleted  int `json:"deleted"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Sweep deletes orphaned records whose grace deadline has passed.
// Each candidate is re-read and re-checked immediately before the
// destructive provider call, so extensions and resurrections racing the
// sweep win. Failed deletions stay Orphaned and come back next cycle.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.now()
	defer func() {
		m.metrics.SetSweepDuration(time.Since(start))
	}()

	var res SweepResult
	records, err := m.store.ListRecords(ctx)
	if err != nil {
		m.metrics.IncSweepRun(false)
		return res, fmt.Errorf("list records: %w", err)
	}
	preserved, err := m.store.ListPreserved(ctx)
	if err != nil {
		m.metrics.IncSweepRun(false)
		return res, fmt.Errorf("load preserved hostnames: %w", err)
	}
	grace := m.settings.GracePeriod(ctx)

	for _, candidate := range records {
		if candidate.Status != record.StatusOrphaned {
			continue
		}
		res.Examined++

		// Fresh read: the candidate may have been extended or
		// resurrected since listing.
		rec, err := m.store.GetRecord(ctx, candidate.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			res.Failed++
			continue
		}
		if rec.Status != record.StatusOrphaned || rec.OrphanedAt == nil {
			res.Skipped++
			continue
		}
		if !rec.Managed || record.IsPreserved(rec.Hostname, preserved) {
			res.Skipped++
			continue
		}
		if TimeRemaining(*rec.OrphanedAt, grace, m.now()) > 0 {
			res.Skipped++
			continue
		}

		if err := m.deleteAtProvider(ctx, rec); err != nil {
			slog.Error("Failed to delete orphaned record, will retry next sweep",
				"hostname", rec.Hostname, "id", rec.ID, "provider", rec.ProviderID, "error", err)
			m.metrics.IncOrphanTransition("delete_failed")
			res.Failed++
			continue
		}

		if err := m.store.DeleteRecordIfUnchanged(ctx, rec.ID, record.StatusOrphaned, rec.OrphanedAt); err != nil {
			if errors.Is(err, store.ErrStatusConflict) || errors.Is(err, store.ErrNotFound) {
				res.Skipped++
				continue
			}
			res.Failed++
			continue
		}
		slog.Info("Deleted orphaned record", "hostname", rec.Hostname, "id", rec.ID, "provider", rec.ProviderID)
		m.metrics.IncOrphanTransition("deleted")
		res.Deleted++
	}

	m.metrics.IncSweepRun(res.Failed == 0)
	return res, nil
}

func (m *Manager) deleteAtProvider(ctx context.Context, rec record.DNSRecord) error {
	if rec.ProviderRecordID == "" {
		// Nothing to delete remotely, e.g. a record tracked before the
		// provider accepted it.
		return nil
	}
	client, ok := m.registry.Client(rec.ProviderID)
	if !ok {
		return fmt.Errorf("no client registered for provider %s", rec.ProviderID)
	}
	p, _ := m.registry.Provider(rec.ProviderID)
	return client.Delete(ctx, p.Zone, rec.ProviderRecordID)
}
