// Package store persists records, hostname overrides, preserved
// hostnames and settings in BadgerDB. Status transitions happen inside a
// single transaction so two sweeps cannot both claim the same record.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"github.com/mstrel/dns-fanout/internal/metrics"
	"github.com/mstrel/dns-fanout/internal/record"
)

const (
	recordPrefix    = "record:"
	overridePrefix  = "override:"
	preservedPrefix = "preserved:"
	settingPrefix   = "setting:"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrStatusConflict means a transition's expected current status no
	// longer holds; the caller lost the race and must re-read.
	ErrStatusConflict = errors.New("store: status conflict")
)

type Store struct {
	db      *badger.DB
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(path string, metrics *metrics.Metrics) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db, metrics: metrics, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Records

func (s *Store) PutRecord(ctx context.Context, rec record.DNSRecord) (record.DNSRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := s.setJSON(recordPrefix+rec.ID, rec)
	s.metrics.IncStoreRequest("update", err == nil)
	return rec, err
}

func (s *Store) GetRecord(ctx context.Context, id string) (record.DNSRecord, error) {
	var rec record.DNSRecord
	err := s.getJSON(recordPrefix+id, &rec)
	s.metrics.IncStoreRequest("read", err == nil || errors.Is(err, ErrNotFound))
	return rec, err
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(recordPrefix + id))
	})
	s.metrics.IncStoreRequest("delete", err == nil)
	return err
}

// DeleteRecordIfUnchanged removes the record only if its status and
// orphan deadline still match what the caller read. Used by the deletion
// sweep after the provider-side delete, so a grace extension landing
// in between keeps the record.
func (s *Store) DeleteRecordIfUnchanged(ctx context.Context, id string, status record.Status, orphanedAt *time.Time) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecordTxn(txn, id)
		if err != nil {
			return err
		}
		if rec.Status != status || !timePtrEqual(rec.OrphanedAt, orphanedAt) {
			return ErrStatusConflict
		}
		return txn.Delete([]byte(recordPrefix + id))
	})
	s.metrics.IncStoreRequest("delete", err == nil)
	return err
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (s *Store) ListRecords(ctx context.Context) ([]record.DNSRecord, error) {
	var records []record.DNSRecord
	err := s.list(recordPrefix, func(val []byte) error {
		var rec record.DNSRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	s.metrics.IncStoreRequest("read", err == nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Hostname < records[j].Hostname })
	return records, nil
}

func (s *Store) RecordsByHostname(ctx context.Context, hostname string) ([]record.DNSRecord, error) {
	all, err := s.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	var out []record.DNSRecord
	for _, rec := range all {
		if strings.EqualFold(rec.Hostname, hostname) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// FindRecord looks up the tracked record for a provider-side identity,
// the same tuple providers use for duplicate detection.
func (s *Store) FindRecord(ctx context.Context, providerID, hostname string, t record.Type, content string) (record.DNSRecord, error) {
	all, err := s.ListRecords(ctx)
	if err != nil {
		return record.DNSRecord{}, err
	}
	for _, rec := range all {
		if rec.ProviderID == providerID && strings.EqualFold(rec.Hostname, hostname) &&
			rec.Type == t && rec.Content == content {
			return rec, nil
		}
	}
	return record.DNSRecord{}, fmt.Errorf("%w: record %s/%s %s", ErrNotFound, providerID, hostname, t)
}

// TransitionStatus performs an atomic read-decide-write: the record must
// currently be in from, then mutate runs against the fresh copy and the
// result is written back, all inside one transaction.
func (s *Store) TransitionStatus(ctx context.Context, id string, from record.Status, mutate func(*record.DNSRecord) error) (record.DNSRecord, error) {
	var updated record.DNSRecord
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecordTxn(txn, id)
		if err != nil {
			return err
		}
		if rec.Status != from {
			return fmt.Errorf("%w: record %s is %s, want %s", ErrStatusConflict, id, rec.Status, from)
		}
		if err := mutate(&rec); err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(recordPrefix+id), data); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	s.metrics.IncStoreRequest("update", err == nil)
	return updated, err
}

func getRecordTxn(txn *badger.Txn, id string) (record.DNSRecord, error) {
	var rec record.DNSRecord
	item, err := txn.Get([]byte(recordPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, fmt.Errorf("%w: record %s", ErrNotFound, id)
	}
	if err != nil {
		return rec, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return rec, err
}

// Hostname overrides

func (s *Store) PutOverride(ctx context.Context, o record.HostnameOverride) (record.HostnameOverride, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	err := s.setJSON(overridePrefix+o.ID, o)
	s.metrics.IncStoreRequest("update", err == nil)
	return o, err
}

func (s *Store) DeleteOverride(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(overridePrefix + id))
	})
	s.metrics.IncStoreRequest("delete", err == nil)
	return err
}

// ListOverrides returns overrides oldest first, so match tie-breaking
// follows declaration order.
func (s *Store) ListOverrides(ctx context.Context) ([]record.HostnameOverride, error) {
	var overrides []record.HostnameOverride
	err := s.list(overridePrefix, func(val []byte) error {
		var o record.HostnameOverride
		if err := json.Unmarshal(val, &o); err != nil {
			return err
		}
		overrides = append(overrides, o)
		return nil
	})
	s.metrics.IncStoreRequest("read", err == nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(overrides, func(i, j int) bool { return overrides[i].CreatedAt.Before(overrides[j].CreatedAt) })
	return overrides, nil
}

// Preserved hostnames

func (s *Store) PutPreserved(ctx context.Context, p record.PreservedHostname) (record.PreservedHostname, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	err := s.setJSON(preservedPrefix+strings.ToLower(p.Hostname), p)
	s.metrics.IncStoreRequest("update", err == nil)
	return p, err
}

func (s *Store) DeletePreserved(ctx context.Context, hostname string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(preservedPrefix + strings.ToLower(hostname)))
	})
	s.metrics.IncStoreRequest("delete", err == nil)
	return err
}

func (s *Store) ListPreserved(ctx context.Context) ([]record.PreservedHostname, error) {
	var preserved []record.PreservedHostname
	err := s.list(preservedPrefix, func(val []byte) error {
		var p record.PreservedHostname
		if err := json.Unmarshal(val, &p); err != nil {
			return err
		}
		preserved = append(preserved, p)
		return nil
	})
	s.metrics.IncStoreRequest("read", err == nil)
	return preserved, err
}

// Settings

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(settingPrefix+key), []byte(value))
	})
	s.metrics.IncStoreRequest("update", err == nil)
	return err
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(settingPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: setting %s", ErrNotFound, key)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	s.metrics.IncStoreRequest("read", err == nil || errors.Is(err, ErrNotFound))
	return value, err
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(settingPrefix + key))
	})
	s.metrics.IncStoreRequest("delete", err == nil)
	return err
}

// Helpers

func (s *Store) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) getJSON(key string, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

func (s *Store) list(prefix string, each func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(each); err != nil {
				return err
			}
		}
		return nil
	})
}
