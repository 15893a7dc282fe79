package libdnsadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/libdns/libdns"

	"github.com/mstrel/dns-fanout/internal/metrics"
	"github.com/mstrel/dns-fanout/internal/provider"
	"github.com/mstrel/dns-fanout/internal/record"
)

type fakeBackend struct {
	records  []libdns.Record
	getErr   error
	appended []libdns.Record
	deleted  []libdns.Record
}

func (f *fakeBackend) GetRecords(ctx context.Context, zone string) ([]libdns.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.records, nil
}

func (f *fakeBackend) AppendRecords(ctx context.Context, zone string, recs []libdns.Record) ([]libdns.Record, error) {
	f.appended = append(f.appended, recs...)
	return recs, nil
}

func (f *fakeBackend) DeleteRecords(ctx context.Context, zone string, recs []libdns.Record) ([]libdns.Record, error) {
	f.deleted = append(f.deleted, recs...)
	return recs, nil
}

func testSpec() provider.RecordSpec {
	return provider.RecordSpec{
		ProviderID: "backend",
		Zone:       "example.com.",
		Hostname:   "app.example.com.",
		Type:       record.TypeA,
		Content:    "10.0.0.1",
		TTL:        300,
	}
}

func TestCreateAppends(t *testing.T) {
	backend := &fakeBackend{}
	a := New("backend", backend, provider.Capabilities{}, metrics.New(false))

	res, err := a.Create(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Outcome != provider.OutcomeCreated {
		t.Errorf("outcome = %s, want created", res.Outcome)
	}
	if res.ProviderRecordID == "" {
		t.Error("no synthesized record id")
	}
	if len(backend.appended) != 1 {
		t.Fatalf("appended = %v", backend.appended)
	}
	rr := backend.appended[0].RR()
	if rr.Type != "A" || rr.Data != "10.0.0.1" || rr.TTL != 300*time.Second {
		t.Errorf("appended rr = %+v", rr)
	}
}

func TestCreateDetectsDuplicate(t *testing.T) {
	existing, err := provider.ToLibdns(testSpec())
	if err != nil {
		t.Fatalf("to libdns: %v", err)
	}
	backend := &fakeBackend{records: []libdns.Record{existing}}
	a := New("backend", backend, provider.Capabilities{}, metrics.New(false))

	res, err := a.Create(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Outcome != provider.OutcomeDuplicate {
		t.Errorf("outcome = %s, want duplicate", res.Outcome)
	}
	if len(backend.appended) != 0 {
		t.Errorf("duplicate must not append, got %v", backend.appended)
	}
}

func TestCreateSameNameDifferentContent(t *testing.T) {
	other := testSpec()
	other.Content = "10.0.0.2"
	existing, err := provider.ToLibdns(other)
	if err != nil {
		t.Fatalf("to libdns: %v", err)
	}
	backend := &fakeBackend{records: []libdns.Record{existing}}
	a := New("backend", backend, provider.Capabilities{}, metrics.New(false))

	res, err := a.Create(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Outcome != provider.OutcomeCreated {
		t.Errorf("outcome = %s, differing content is a new record", res.Outcome)
	}
}

func TestCreateBackendError(t *testing.T) {
	backend := &fakeBackend{getErr: errors.New("backend down")}
	a := New("backend", backend, provider.Capabilities{}, metrics.New(false))

	if _, err := a.Create(context.Background(), testSpec()); err == nil {
		t.Fatal("expected error from backend")
	}
}

func TestDeleteRoundTrip(t *testing.T) {
	backend := &fakeBackend{}
	a := New("backend", backend, provider.Capabilities{}, metrics.New(false))

	res, err := a.Create(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.Delete(context.Background(), "example.com.", res.ProviderRecordID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(backend.deleted) != 1 {
		t.Fatalf("deleted = %v", backend.deleted)
	}
	rr := backend.deleted[0].RR()
	if rr.Type != "A" || rr.Data != "10.0.0.1" {
		t.Errorf("deleted rr = %+v", rr)
	}
}

func TestDeleteMalformedID(t *testing.T) {
	a := New("backend", &fakeBackend{}, provider.Capabilities{}, metrics.New(false))
	if err := a.Delete(context.Background(), "example.com.", "bogus"); err == nil {
		t.Fatal("malformed id accepted")
	}
}
